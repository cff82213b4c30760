// Package memstore is an in-process store.Store. It backs STORE_DRIVER=memory for
// local development and is the store used by the handler tests.
package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/socialapp/store"
)

// Store keeps users and posts in maps guarded by one mutex. Every method holds the
// lock for its whole duration, which makes multi-record operations atomic.
type Store struct {
	mu    sync.RWMutex
	users map[string]*store.User
	posts map[string]*store.Post
	now   func() time.Time
	last  time.Time // CreatedAt of the newest post, keeps creation order strict
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		users: make(map[string]*store.User),
		posts: make(map[string]*store.Post),
		now:   time.Now,
	}
}

// Ping reports only context cancellation.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Close is a no-op.
func (s *Store) Close(ctx context.Context) error { return nil }

func cloneUser(u *store.User) *store.User {
	c := *u
	c.Posts = slices.Clone(u.Posts)
	c.Followers = slices.Clone(u.Followers)
	c.Following = slices.Clone(u.Following)
	return &c
}

func clonePost(p *store.Post) *store.Post {
	c := *p
	c.Likes = slices.Clone(p.Likes)
	c.Comments = slices.Clone(p.Comments)
	return &c
}

// taken reports whether email or username belongs to a user other than exceptID.
// Email comparison ignores case.
func (s *Store) taken(email, username, exceptID string) bool {
	for id, u := range s.users {
		if id == exceptID {
			continue
		}
		if strings.EqualFold(u.Email, email) || u.Username == username {
			return true
		}
	}
	return false
}

// CreateUser stores a copy of u under a new uuid.
func (s *Store) CreateUser(ctx context.Context, u *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.taken(u.Email, u.Username, "") {
		return store.ErrDuplicate
	}
	u.ID = uuid.NewString()
	s.users[u.ID] = cloneUser(u)
	return nil
}

// UserByID returns a copy of the user.
func (s *Store) UserByID(ctx context.Context, id string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(u), nil
}

// UserByEmail matches the email case-insensitively.
func (s *Store) UserByEmail(ctx context.Context, email string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, store.ErrNotFound
}

// UserByUsername matches the username exactly.
func (s *Store) UserByUsername(ctx context.Context, username string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, store.ErrNotFound
}

// CountUsers returns the number of accounts.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

// UpdateProfile overwrites the profile fields unless the email or username
// belongs to someone else.
func (s *Store) UpdateProfile(ctx context.Context, userID string, upd store.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	if s.taken(upd.Email, upd.Username, userID) {
		return store.ErrDuplicate
	}
	u.Name = upd.Name
	u.Username = upd.Username
	u.Email = upd.Email
	u.Age = upd.Age
	return nil
}

// SetProfileImage replaces the profile image reference.
func (s *Store) SetProfileImage(ctx context.Context, userID, image string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.ProfileImage = image
	return nil
}

// DeleteUser removes the user with their posts, likes and follow edges.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, userID)

	for id, p := range s.posts {
		if p.UserID == userID {
			delete(s.posts, id)
			continue
		}
		p.Likes, _ = store.Remove(p.Likes, userID)
	}
	for _, u := range s.users {
		u.Followers, _ = store.Remove(u.Followers, userID)
		u.Following, _ = store.Remove(u.Following, userID)
	}
	return nil
}

// Follow adds the edge on both users under one lock.
func (s *Store) Follow(ctx context.Context, followerID, followeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	follower, ok := s.users[followerID]
	if !ok {
		return store.ErrNotFound
	}
	followee, ok := s.users[followeeID]
	if !ok {
		return store.ErrNotFound
	}
	if !slices.Contains(follower.Following, followeeID) {
		follower.Following = append(follower.Following, followeeID)
	}
	if !slices.Contains(followee.Followers, followerID) {
		followee.Followers = append(followee.Followers, followerID)
	}
	return nil
}

// Unfollow removes the edge from both users under one lock.
func (s *Store) Unfollow(ctx context.Context, followerID, followeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	follower, ok := s.users[followerID]
	if !ok {
		return store.ErrNotFound
	}
	followee, ok := s.users[followeeID]
	if !ok {
		return store.ErrNotFound
	}
	follower.Following, _ = store.Remove(follower.Following, followeeID)
	followee.Followers, _ = store.Remove(followee.Followers, followerID)
	return nil
}

// CreatePost stores p and appends it to the owner's list. CreatedAt is strictly
// increasing across posts.
func (s *Store) CreatePost(ctx context.Context, p *store.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.users[p.UserID]
	if !ok {
		return store.ErrNotFound
	}
	p.ID = uuid.NewString()
	p.CreatedAt = s.now().UTC()
	if !p.CreatedAt.After(s.last) {
		p.CreatedAt = s.last.Add(time.Microsecond)
	}
	s.last = p.CreatedAt
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.Comments == nil {
		p.Comments = []store.Comment{}
	}
	s.posts[p.ID] = clonePost(p)
	owner.Posts = append(owner.Posts, p.ID)
	return nil
}

// PostByID returns a copy of the post.
func (s *Store) PostByID(ctx context.Context, id string) (*store.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clonePost(p), nil
}

// PostsByIDs resolves ids in order, skipping missing ones.
func (s *Store) PostsByIDs(ctx context.Context, ids []string) ([]store.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := make([]store.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.posts[id]; ok {
			posts = append(posts, *clonePost(p))
		}
	}
	return posts, nil
}

// UpdatePostContent overwrites the post text.
func (s *Store) UpdatePostContent(ctx context.Context, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Content = content
	return nil
}

// DeletePost removes the post and pulls it from the owner's list.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.posts, id)
	if owner, ok := s.users[p.UserID]; ok {
		owner.Posts, _ = store.Remove(owner.Posts, id)
	}
	return nil
}

// ToggleLike flips userID's membership in the post likes.
func (s *Store) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return false, store.ErrNotFound
	}
	var removed bool
	if p.Likes, removed = store.Remove(p.Likes, userID); removed {
		return false, nil
	}
	p.Likes = append(p.Likes, userID)
	return true, nil
}

// AddComment appends c to the post.
func (s *Store) AddComment(ctx context.Context, postID string, c store.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return store.ErrNotFound
	}
	p.Comments = append(p.Comments, c)
	return nil
}

// views resolves owners and orders newest first. Callers hold the read lock.
func (s *Store) views(match func(*store.Post) bool) []store.PostView {
	out := make([]store.PostView, 0, len(s.posts))
	for _, p := range s.posts {
		if !match(p) {
			continue
		}
		v := store.PostView{Post: *clonePost(p)}
		if u, ok := s.users[p.UserID]; ok {
			v.Author = cloneUser(u)
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ListPosts returns all posts, newest first.
func (s *Store) ListPosts(ctx context.Context) ([]store.PostView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.views(func(*store.Post) bool { return true }), nil
}

// SearchUsers matches name or username, ordered by username.
func (s *Store) SearchUsers(ctx context.Context, query string) ([]store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.User
	for _, u := range s.users {
		if store.ContainsFold(u.Name, query) || store.ContainsFold(u.Username, query) {
			out = append(out, *cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// SearchPosts matches post content, newest first.
func (s *Store) SearchPosts(ctx context.Context, query string) ([]store.PostView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.views(func(p *store.Post) bool { return store.ContainsFold(p.Content, query) }), nil
}

// Reconcile applies PlanRepair to the stored users.
func (s *Store) Reconcile(ctx context.Context) (store.RepairReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]store.UserRefs, 0, len(s.users))
	for id, u := range s.users {
		users = append(users, store.UserRefs{ID: id, Posts: u.Posts, Followers: u.Followers, Following: u.Following})
	}
	posts := make([]store.PostRef, 0, len(s.posts))
	for id, p := range s.posts {
		posts = append(posts, store.PostRef{ID: id, UserID: p.UserID, CreatedAt: p.CreatedAt})
	}

	fixed, report := store.PlanRepair(users, posts)
	for _, f := range fixed {
		u := s.users[f.ID]
		u.Posts = f.Posts
		u.Followers = f.Followers
		u.Following = f.Following
	}
	return report, nil
}
