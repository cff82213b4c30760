// Package store defines the persisted data model of the social app and the Store
// interface every persistence backend implements.
//
// Two collections exist: users and posts. They reference each other by id. A user
// owns an ordered list of post ids and two follow lists; a post records its owner,
// the ids of users who liked it and an append-only list of comments.
//
// Operations that touch more than one record (creating or deleting a post, follow and
// unfollow, deleting an account) are a single unit in every backend, so the follow
// graph and the post lists never end up half-written by this code. Reconcile repairs
// data written by older deployments that did not have that guarantee.
package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
)

// DefaultProfileImage is the profile reference given to every new account.
const DefaultProfileImage = "default.png"

var (
	// ErrNotFound is returned when a user or post does not exist, including when
	// the id is malformed for the backend.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a unique key (email, username) is already taken.
	ErrDuplicate = errors.New("store: duplicate key")
)

// User is an account.
type User struct {
	ID           string
	Name         string
	Username     string
	Email        string
	PasswordHash string
	Age          int
	ProfileImage string
	Posts        []string // owned post ids, oldest first
	Followers    []string
	Following    []string
}

// HasCustomImage reports whether the user replaced the default profile image.
func (u *User) HasCustomImage() bool {
	return u.ProfileImage != "" && u.ProfileImage != DefaultProfileImage
}

// IsFollowing reports whether u follows the user with the given id.
func (u *User) IsFollowing(id string) bool {
	return slices.Contains(u.Following, id)
}

// Comment is one entry of a post's comment list. Author is the commenter's email
// as free text, not a reference.
type Comment struct {
	Author    string
	Text      string
	CreatedAt time.Time
}

// Post is a piece of user content.
type Post struct {
	ID        string
	UserID    string
	Content   string
	Image     string // optional upload reference
	Likes     []string
	Comments  []Comment
	CreatedAt time.Time
}

// LikedBy reports whether the user with the given id likes p.
func (p *Post) LikedBy(userID string) bool {
	return slices.Contains(p.Likes, userID)
}

// PostView is a post with its owner resolved. Author is nil when the owner no
// longer exists.
type PostView struct {
	Post
	Author *User
}

// ProfileUpdate carries the editable profile fields. Every field is overwritten.
type ProfileUpdate struct {
	Name     string
	Username string
	Email    string
	Age      int
}

// RepairReport counts what Reconcile fixed.
type RepairReport struct {
	FollowEdgesAdded      int // followee side of a Following entry restored
	DanglingEdgesRemoved  int // follow entries pointing at deleted users
	StaleFollowersRemoved int // Followers entries the follower no longer lists
	PostRefsAdded         int // owned posts missing from the owner's list
	PostRefsRemoved       int // list entries pointing at deleted or foreign posts
}

// Total is the number of individual repairs.
func (r RepairReport) Total() int {
	return r.FollowEdgesAdded + r.DanglingEdgesRemoved + r.StaleFollowersRemoved + r.PostRefsAdded + r.PostRefsRemoved
}

// Store is the persistence contract shared by all backends.
type Store interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	// CreateUser inserts u and sets u.ID. Returns ErrDuplicate when the email or
	// username is taken.
	CreateUser(ctx context.Context, u *User) error
	UserByID(ctx context.Context, id string) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByUsername(ctx context.Context, username string) (*User, error)
	CountUsers(ctx context.Context) (int64, error)
	// UpdateProfile overwrites the profile fields. Returns ErrDuplicate when the
	// new email or username belongs to another user.
	UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) error
	SetProfileImage(ctx context.Context, userID, image string) error
	// DeleteUser removes the user, the posts they own, their likes and their
	// entries on other users' follow lists.
	DeleteUser(ctx context.Context, userID string) error

	// Follow records followerID -> followeeID on both users. Following twice is a no-op.
	Follow(ctx context.Context, followerID, followeeID string) error
	// Unfollow removes the edge from both users. Unfollowing a non-followed user is a no-op.
	Unfollow(ctx context.Context, followerID, followeeID string) error

	// CreatePost inserts p, sets p.ID and p.CreatedAt and appends the id to the
	// owner's post list.
	CreatePost(ctx context.Context, p *Post) error
	PostByID(ctx context.Context, id string) (*Post, error)
	// PostsByIDs resolves ids in order, skipping ids that no longer exist.
	PostsByIDs(ctx context.Context, ids []string) ([]Post, error)
	UpdatePostContent(ctx context.Context, id, content string) error
	// DeletePost removes the post and pulls its id from the owner's post list.
	DeletePost(ctx context.Context, id string) error
	// ToggleLike adds userID to the post's likes when absent and removes it when
	// present. It returns whether the post is liked afterwards.
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)
	AddComment(ctx context.Context, postID string, c Comment) error
	// ListPosts returns every post with its owner, newest first.
	ListPosts(ctx context.Context) ([]PostView, error)

	// SearchUsers matches query as a case-insensitive literal substring of the
	// name or username.
	SearchUsers(ctx context.Context, query string) ([]User, error)
	// SearchPosts matches query as a case-insensitive literal substring of the content.
	SearchPosts(ctx context.Context, query string) ([]PostView, error)

	// Reconcile repairs one-sided follow edges, dangling follow entries and
	// post lists that disagree with post ownership.
	Reconcile(ctx context.Context) (RepairReport, error)
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Remove returns ids without any occurrence of id, and whether something was removed.
func Remove(ids []string, id string) ([]string, bool) {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out, len(out) != len(ids)
}
