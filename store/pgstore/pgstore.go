// Package pgstore is the PostgreSQL store.Store, built on a pgx pool.
//
// Follow edges, likes and post ownership are rows with foreign keys, so the
// reference lists on store.User and store.Post are derived at read time and
// cannot disagree with each other.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/socialapp/store"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

const userSelect = `
	SELECT u.id, u.name, u.username, u.email, u.password, u.age, u.profile,
		COALESCE((SELECT array_agg(p.id ORDER BY p.seq) FROM posts p WHERE p.user_id = u.id), '{}'),
		COALESCE((SELECT array_agg(f.follower_id ORDER BY f.seq) FROM follows f WHERE f.followee_id = u.id), '{}'),
		COALESCE((SELECT array_agg(f.followee_id ORDER BY f.seq) FROM follows f WHERE f.follower_id = u.id), '{}')
	FROM users u`

// Comment dates are rendered as RFC 3339 in UTC so they decode into time.Time
// regardless of the session time zone.
const postSelect = `
	SELECT p.id, p.user_id, p.content, p.image, p.created_at,
		COALESCE((SELECT array_agg(l.user_id ORDER BY l.seq) FROM post_likes l WHERE l.post_id = p.id), '{}'),
		COALESCE((SELECT json_agg(json_build_object(
				'user', c.author,
				'text', c.body,
				'date', to_char(c.created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"')
			) ORDER BY c.id) FROM comments c WHERE c.post_id = p.id), '[]'),
		u.id, u.name, u.username, u.email, u.age, u.profile
	FROM posts p
	JOIN users u ON u.id = p.user_id`

type commentRow struct {
	User string    `json:"user"`
	Text string    `json:"text"`
	Date time.Time `json:"date"`
}

// Store implements store.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New wraps an open pool. The schema must already be migrated.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close closes the pool.
func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

// mapError translates driver errors into the store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", store.ErrDuplicate, pgErr.ConstraintName)
		case codeForeignKeyViolation:
			return store.ErrNotFound
		}
	}
	return err
}

// withTx runs fn in a transaction, committing when fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()
	return fn(tx)
}

func scanUser(row pgx.Row) (*store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Name, &u.Username, &u.Email, &u.PasswordHash, &u.Age, &u.ProfileImage,
		&u.Posts, &u.Followers, &u.Following)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func scanPostView(row pgx.Row) (*store.PostView, error) {
	var (
		v        store.PostView
		author   store.User
		comments []commentRow
	)
	err := row.Scan(&v.ID, &v.UserID, &v.Content, &v.Image, &v.CreatedAt, &v.Likes, &comments,
		&author.ID, &author.Name, &author.Username, &author.Email, &author.Age, &author.ProfileImage)
	if err != nil {
		return nil, mapError(err)
	}
	v.CreatedAt = v.CreatedAt.UTC()
	v.Comments = make([]store.Comment, 0, len(comments))
	for _, c := range comments {
		v.Comments = append(v.Comments, store.Comment{Author: c.User, Text: c.Text, CreatedAt: c.Date})
	}
	v.Author = &author
	return &v, nil
}

func (s *Store) queryUser(ctx context.Context, where string, arg any) (*store.User, error) {
	return scanUser(s.pool.QueryRow(ctx, userSelect+" WHERE "+where, arg))
}

func (s *Store) queryPostViews(ctx context.Context, sql string, args ...any) ([]store.PostView, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	views := []store.PostView{}
	for rows.Next() {
		v, err := scanPostView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, rows.Err()
}

// CreateUser inserts u with a new uuid. The unique index on lower(email) makes
// emails case-insensitive.
func (s *Store) CreateUser(ctx context.Context, u *store.User) error {
	id := uuid.NewString()
	image := u.ProfileImage
	if image == "" {
		image = store.DefaultProfileImage
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, username, email, password, age, profile)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, u.Name, u.Username, u.Email, u.PasswordHash, u.Age, image)
	if err != nil {
		return mapError(err)
	}
	u.ID = id
	u.ProfileImage = image
	return nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*store.User, error) {
	return s.queryUser(ctx, "u.id = $1", id)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.queryUser(ctx, "lower(u.email) = lower($1)", email)
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*store.User, error) {
	return s.queryUser(ctx, "u.username = $1", username)
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// UpdateProfile overwrites the profile columns.
func (s *Store) UpdateProfile(ctx context.Context, userID string, upd store.ProfileUpdate) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET name = $2, username = $3, email = $4, age = $5
		WHERE id = $1`,
		userID, upd.Name, upd.Username, upd.Email, upd.Age)
	if err != nil {
		return mapError(err)
	}
	return requireRow(tag)
}

func (s *Store) SetProfileImage(ctx context.Context, userID, image string) error {
	tag, err := s.pool.Exec(ctx, "UPDATE users SET profile = $2 WHERE id = $1", userID, image)
	if err != nil {
		return mapError(err)
	}
	return requireRow(tag)
}

// DeleteUser relies on ON DELETE CASCADE for posts, likes and follow rows.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", userID)
	if err != nil {
		return mapError(err)
	}
	return requireRow(tag)
}

func requireRow(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Follow inserts the edge; an existing edge is left alone.
func (s *Store) Follow(ctx context.Context, followerID, followeeID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, followerID, followeeID)
	return mapError(err)
}

// Unfollow deletes the edge after checking both users exist.
func (s *Store) Unfollow(ctx context.Context, followerID, followeeID string) error {
	var n int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users WHERE id = $1 OR id = $2",
		followerID, followeeID).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to check follow users: %w", err)
	}
	if (followerID == followeeID && n != 1) || (followerID != followeeID && n != 2) {
		return store.ErrNotFound
	}
	_, err = s.pool.Exec(ctx, "DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2",
		followerID, followeeID)
	return mapError(err)
}

// CreatePost inserts p and takes CreatedAt from the database clock.
func (s *Store) CreatePost(ctx context.Context, p *store.Post) error {
	id := uuid.NewString()
	var createdAt time.Time
	err := s.pool.QueryRow(ctx, `
		INSERT INTO posts (id, user_id, content, image, created_at)
		VALUES ($1, $2, $3, $4, clock_timestamp())
		RETURNING created_at`,
		id, p.UserID, p.Content, p.Image).Scan(&createdAt)
	if err != nil {
		return mapError(err)
	}
	p.ID = id
	p.CreatedAt = createdAt.UTC()
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.Comments == nil {
		p.Comments = []store.Comment{}
	}
	return nil
}

func (s *Store) PostByID(ctx context.Context, id string) (*store.Post, error) {
	v, err := scanPostView(s.pool.QueryRow(ctx, postSelect+" WHERE p.id = $1", id))
	if err != nil {
		return nil, err
	}
	return &v.Post, nil
}

// PostsByIDs keeps the order of ids.
func (s *Store) PostsByIDs(ctx context.Context, ids []string) ([]store.Post, error) {
	views, err := s.queryPostViews(ctx, postSelect+" WHERE p.id = ANY($1)", ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]store.Post, len(views))
	for _, v := range views {
		byID[v.ID] = v.Post
	}
	posts := make([]store.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

func (s *Store) UpdatePostContent(ctx context.Context, id, content string) error {
	tag, err := s.pool.Exec(ctx, "UPDATE posts SET content = $2 WHERE id = $1", id, content)
	if err != nil {
		return mapError(err)
	}
	return requireRow(tag)
}

// DeletePost deletes the post; likes and comments go with it by cascade.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM posts WHERE id = $1", id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(tag)
}

// ToggleLike locks the post row so concurrent toggles by the same user serialize.
func (s *Store) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	var liked bool
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var locked string
		if err := tx.QueryRow(ctx, "SELECT id FROM posts WHERE id = $1 FOR UPDATE", postID).Scan(&locked); err != nil {
			return mapError(err)
		}
		tag, err := tx.Exec(ctx, "DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2", postID, userID)
		if err != nil {
			return mapError(err)
		}
		if tag.RowsAffected() > 0 {
			liked = false
			return nil
		}
		if _, err := tx.Exec(ctx, "INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2)", postID, userID); err != nil {
			return mapError(err)
		}
		liked = true
		return nil
	})
	return liked, err
}

func (s *Store) AddComment(ctx context.Context, postID string, c store.Comment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO comments (post_id, author, body, created_at) VALUES ($1, $2, $3, $4)`,
		postID, c.Author, c.Text, c.CreatedAt.UTC())
	return mapError(err)
}

func (s *Store) ListPosts(ctx context.Context) ([]store.PostView, error) {
	return s.queryPostViews(ctx, postSelect+" ORDER BY p.created_at DESC, p.seq DESC")
}

// likePattern escapes LIKE metacharacters so query matches literally.
func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(query) + "%"
}

// SearchUsers matches name or username with an escaped ILIKE pattern.
func (s *Store) SearchUsers(ctx context.Context, query string) ([]store.User, error) {
	rows, err := s.pool.Query(ctx, userSelect+`
		WHERE u.name ILIKE $1 ESCAPE '\' OR u.username ILIKE $1 ESCAPE '\'
		ORDER BY u.username`, likePattern(query))
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	users := []store.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// SearchPosts matches content with an escaped ILIKE pattern.
func (s *Store) SearchPosts(ctx context.Context, query string) ([]store.PostView, error) {
	return s.queryPostViews(ctx, postSelect+`
		WHERE p.content ILIKE $1 ESCAPE '\'
		ORDER BY p.created_at DESC, p.seq DESC`, likePattern(query))
}

// Reconcile has nothing to repair: every reference is a constrained row.
func (s *Store) Reconcile(ctx context.Context) (store.RepairReport, error) {
	return store.RepairReport{}, s.pool.Ping(ctx)
}
