// Package mongostore is the MongoDB store.Store. It reads and writes the users and
// posts collections in the document layout the app has always used, so it can be
// pointed at an existing database.
//
// Writes spanning both collections run in a session transaction, which requires
// the server to be a replica set member.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/user/socialapp/store"
)

// emailCollation compares emails case-insensitively; the unique email index and
// email lookups share it.
var emailCollation = &options.Collation{Locale: "en", Strength: 2}

// Store implements store.Store on MongoDB.
type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	posts  *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// New opens the database and makes sure the indexes exist.
func New(ctx context.Context, client *mongo.Client, database string) (*Store, error) {
	db := client.Database(database)
	s := &Store{
		client: client,
		users:  db.Collection(usersCollection),
		posts:  db.Collection(postsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetCollation(emailCollation),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	_, err = s.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "user", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create post indexes: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	}
	return err
}

// withTx runs fn inside a session transaction. The driver retries fn on
// transient transaction errors.
func (s *Store) withTx(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// updateOne applies update to the document with the given id and fails with
// store.ErrNotFound when there is none.
func updateOne(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID, update any) error {
	res, err := coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func emptyIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	if ids == nil {
		return []primitive.ObjectID{}
	}
	return ids
}

// CreateUser inserts u. The email index uses a case-insensitive collation.
func (s *Store) CreateUser(ctx context.Context, u *store.User) error {
	doc := userDoc{
		ID:        primitive.NewObjectID(),
		Name:      u.Name,
		Username:  u.Username,
		Email:     u.Email,
		Password:  u.PasswordHash,
		Age:       u.Age,
		Profile:   u.ProfileImage,
		Posts:     emptyIDs(parseIDs(u.Posts)),
		Followers: emptyIDs(parseIDs(u.Followers)),
		Following: emptyIDs(parseIDs(u.Following)),
	}
	if doc.Profile == "" {
		doc.Profile = store.DefaultProfileImage
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		return mapError(err)
	}
	u.ID = doc.ID.Hex()
	u.ProfileImage = doc.Profile
	return nil
}

func (s *Store) findUser(ctx context.Context, filter any, opts ...*options.FindOneOptions) (*store.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toUser(), nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*store.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

// UserByEmail looks the email up through the collated index.
func (s *Store) UserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.findUser(ctx, bson.M{"email": email}, options.FindOne().SetCollation(emailCollation))
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*store.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID string, upd store.ProfileUpdate) error {
	oid, err := parseID(userID)
	if err != nil {
		return err
	}
	return updateOne(ctx, s.users, oid, bson.M{"$set": bson.M{
		"name":     upd.Name,
		"username": upd.Username,
		"email":    upd.Email,
		"age":      upd.Age,
	}})
}

func (s *Store) SetProfileImage(ctx context.Context, userID, image string) error {
	oid, err := parseID(userID)
	if err != nil {
		return err
	}
	return updateOne(ctx, s.users, oid, bson.M{"$set": bson.M{"profile": image}})
}

// DeleteUser removes the user, their posts, their likes and their follow edges
// in one transaction.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	oid, err := parseID(userID)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(sc mongo.SessionContext) error {
		res, err := s.users.DeleteOne(sc, bson.M{"_id": oid})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return store.ErrNotFound
		}
		if _, err := s.posts.DeleteMany(sc, bson.M{"user": oid}); err != nil {
			return err
		}
		if _, err := s.posts.UpdateMany(sc, bson.M{"likes": oid}, bson.M{"$pull": bson.M{"likes": oid}}); err != nil {
			return err
		}
		_, err = s.users.UpdateMany(sc,
			bson.M{"$or": bson.A{bson.M{"followers": oid}, bson.M{"following": oid}}},
			bson.M{"$pull": bson.M{"followers": oid, "following": oid}})
		return err
	})
}

// Follow updates both users in one transaction with $addToSet.
func (s *Store) Follow(ctx context.Context, followerID, followeeID string) error {
	return s.setFollow(ctx, followerID, followeeID, "$addToSet")
}

// Unfollow pulls the edge from both users in one transaction.
func (s *Store) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return s.setFollow(ctx, followerID, followeeID, "$pull")
}

// setFollow applies op to both sides of the follower -> followee edge.
func (s *Store) setFollow(ctx context.Context, followerID, followeeID, op string) error {
	follower, err := parseID(followerID)
	if err != nil {
		return err
	}
	followee, err := parseID(followeeID)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(sc mongo.SessionContext) error {
		if err := updateOne(sc, s.users, follower, bson.M{op: bson.M{"following": followee}}); err != nil {
			return err
		}
		return updateOne(sc, s.users, followee, bson.M{op: bson.M{"followers": follower}})
	})
}

// CreatePost inserts p and pushes its id onto the owner's list in one transaction.
func (s *Store) CreatePost(ctx context.Context, p *store.Post) error {
	owner, err := parseID(p.UserID)
	if err != nil {
		return err
	}
	doc := postDoc{
		ID:        primitive.NewObjectID(),
		User:      owner,
		Content:   p.Content,
		Image:     p.Image,
		Likes:     []primitive.ObjectID{},
		Comments:  []commentDoc{},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	err = s.withTx(ctx, func(sc mongo.SessionContext) error {
		if _, err := s.posts.InsertOne(sc, doc); err != nil {
			return err
		}
		return updateOne(sc, s.users, owner, bson.M{"$push": bson.M{"posts": doc.ID}})
	})
	if err != nil {
		return err
	}
	p.ID = doc.ID.Hex()
	p.CreatedAt = doc.CreatedAt
	p.Likes = []string{}
	p.Comments = []store.Comment{}
	return nil
}

func (s *Store) PostByID(ctx context.Context, id string) (*store.Post, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var doc postDoc
	if err := s.posts.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toPost(), nil
}

func (s *Store) PostsByIDs(ctx context.Context, ids []string) ([]store.Post, error) {
	oids := parseIDs(ids)
	if len(oids) == 0 {
		return []store.Post{}, nil
	}
	cur, err := s.posts.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("failed to find posts: %w", err)
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}

	byID := make(map[primitive.ObjectID]*postDoc, len(docs))
	for i := range docs {
		byID[docs[i].ID] = &docs[i]
	}
	posts := make([]store.Post, 0, len(oids))
	for _, oid := range oids {
		if d, ok := byID[oid]; ok {
			posts = append(posts, *d.toPost())
		}
	}
	return posts, nil
}

func (s *Store) UpdatePostContent(ctx context.Context, id, content string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	return updateOne(ctx, s.posts, oid, bson.M{"$set": bson.M{"content": content}})
}

// DeletePost deletes the post and pulls its id from the owner in one transaction.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(sc mongo.SessionContext) error {
		var doc postDoc
		if err := s.posts.FindOneAndDelete(sc, bson.M{"_id": oid}).Decode(&doc); err != nil {
			return mapError(err)
		}
		_, err := s.users.UpdateOne(sc, bson.M{"_id": doc.User}, bson.M{"$pull": bson.M{"posts": oid}})
		return err
	})
}

// ToggleLike flips membership in a single pipeline update, so the check and the
// write cannot interleave with another toggle.
func (s *Store) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	pid, err := parseID(postID)
	if err != nil {
		return false, err
	}
	uid, err := parseID(userID)
	if err != nil {
		return false, err
	}

	likes := bson.M{"$ifNull": bson.A{"$likes", bson.A{}}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"likes": bson.M{"$cond": bson.A{
				bson.M{"$in": bson.A{uid, likes}},
				bson.M{"$filter": bson.M{"input": likes, "cond": bson.M{"$ne": bson.A{"$$this", uid}}}},
				bson.M{"$concatArrays": bson.A{likes, bson.A{uid}}},
			}},
		}}},
	}

	var doc postDoc
	err = s.posts.FindOneAndUpdate(ctx, bson.M{"_id": pid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return false, mapError(err)
	}
	return slices.Contains(doc.Likes, uid), nil
}

func (s *Store) AddComment(ctx context.Context, postID string, c store.Comment) error {
	oid, err := parseID(postID)
	if err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return updateOne(ctx, s.posts, oid, bson.M{"$push": bson.M{"comments": commentDoc{
		User: c.Author,
		Text: c.Text,
		Date: c.CreatedAt.UTC(),
	}}})
}

// postViews runs match through the newest-first pipeline with the owner joined.
func (s *Store) postViews(ctx context.Context, match bson.M) ([]store.PostView, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         usersCollection,
			"localField":   "user",
			"foreignField": "_id",
			"as":           "author",
		}}},
	}
	cur, err := s.posts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate posts: %w", err)
	}
	var docs []postViewDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}

	views := make([]store.PostView, 0, len(docs))
	for i := range docs {
		views = append(views, docs[i].toView())
	}
	return views, nil
}

// ListPosts joins each post with its owner via $lookup.
func (s *Store) ListPosts(ctx context.Context) ([]store.PostView, error) {
	return s.postViews(ctx, bson.M{})
}

// literal matches query as a case-insensitive substring.
func literal(query string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
}

func (s *Store) SearchUsers(ctx context.Context, query string) ([]store.User, error) {
	re := literal(query)
	filter := bson.M{"$or": bson.A{bson.M{"name": re}, bson.M{"username": re}}}
	cur, err := s.users.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	users := make([]store.User, 0, len(docs))
	for i := range docs {
		users = append(users, *docs[i].toUser())
	}
	return users, nil
}

// SearchPosts matches content with a quoted case-insensitive regex.
func (s *Store) SearchPosts(ctx context.Context, query string) ([]store.PostView, error) {
	return s.postViews(ctx, bson.M{"content": literal(query)})
}

// Reconcile repairs reference lists left inconsistent by deployments that wrote
// both sides of an edge without a transaction. Each fix is applied only if the
// user's lists are unchanged since they were read, so concurrent requests win.
func (s *Store) Reconcile(ctx context.Context) (store.RepairReport, error) {
	userCur, err := s.users.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"posts": 1, "followers": 1, "following": 1}))
	if err != nil {
		return store.RepairReport{}, fmt.Errorf("failed to load users: %w", err)
	}
	var userDocs []userDoc
	if err := userCur.All(ctx, &userDocs); err != nil {
		return store.RepairReport{}, fmt.Errorf("failed to decode users: %w", err)
	}

	postCur, err := s.posts.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"user": 1, "createdAt": 1}))
	if err != nil {
		return store.RepairReport{}, fmt.Errorf("failed to load posts: %w", err)
	}
	var postDocs []postDoc
	if err := postCur.All(ctx, &postDocs); err != nil {
		return store.RepairReport{}, fmt.Errorf("failed to decode posts: %w", err)
	}

	original := make(map[string]*userDoc, len(userDocs))
	users := make([]store.UserRefs, 0, len(userDocs))
	for i := range userDocs {
		d := &userDocs[i]
		original[d.ID.Hex()] = d
		users = append(users, store.UserRefs{
			ID:        d.ID.Hex(),
			Posts:     hexIDs(d.Posts),
			Followers: hexIDs(d.Followers),
			Following: hexIDs(d.Following),
		})
	}
	posts := make([]store.PostRef, 0, len(postDocs))
	for _, d := range postDocs {
		posts = append(posts, store.PostRef{ID: d.ID.Hex(), UserID: d.User.Hex(), CreatedAt: d.CreatedAt})
	}

	fixed, report := store.PlanRepair(users, posts)
	for _, f := range fixed {
		old := original[f.ID]
		filter := bson.M{
			"_id":       old.ID,
			"posts":     old.Posts,
			"followers": old.Followers,
			"following": old.Following,
		}
		update := bson.M{"$set": bson.M{
			"posts":     emptyIDs(parseIDs(f.Posts)),
			"followers": emptyIDs(parseIDs(f.Followers)),
			"following": emptyIDs(parseIDs(f.Following)),
		}}
		res, err := s.users.UpdateOne(ctx, filter, update)
		if err != nil {
			return report, fmt.Errorf("failed to repair user %s: %w", f.ID, err)
		}
		if res.MatchedCount == 0 {
			slog.Warn("user changed during reconcile, skipping", "user_id", f.ID)
		}
	}
	return report, nil
}
