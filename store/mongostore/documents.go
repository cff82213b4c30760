package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/user/socialapp/store"
)

const (
	usersCollection = "users"
	postsCollection = "posts"
)

// userDoc is the users collection layout. Field names match documents written by
// earlier deployments of the app.
type userDoc struct {
	ID        primitive.ObjectID   `bson:"_id"`
	Name      string               `bson:"name"`
	Username  string               `bson:"username"`
	Email     string               `bson:"email"`
	Password  string               `bson:"password"`
	Age       int                  `bson:"age"`
	Profile   string               `bson:"profile"`
	Posts     []primitive.ObjectID `bson:"posts"`
	Followers []primitive.ObjectID `bson:"followers"`
	Following []primitive.ObjectID `bson:"following"`
}

type commentDoc struct {
	User string    `bson:"user"`
	Text string    `bson:"text"`
	Date time.Time `bson:"date"`
}

type postDoc struct {
	ID        primitive.ObjectID   `bson:"_id"`
	User      primitive.ObjectID   `bson:"user"`
	Content   string               `bson:"content"`
	Image     string               `bson:"image,omitempty"`
	Likes     []primitive.ObjectID `bson:"likes"`
	Comments  []commentDoc         `bson:"comments"`
	CreatedAt time.Time            `bson:"createdAt"`
}

// postViewDoc is a post with its owner joined in by $lookup.
type postViewDoc struct {
	Post   postDoc   `bson:",inline"`
	Author []userDoc `bson:"author"`
}

// parseID converts a hex id. Malformed ids cannot name a document.
func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, store.ErrNotFound
	}
	return oid, nil
}

// parseIDs converts ids, dropping malformed ones.
func parseIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

func hexIDs(oids []primitive.ObjectID) []string {
	out := make([]string, 0, len(oids))
	for _, oid := range oids {
		out = append(out, oid.Hex())
	}
	return out
}

func (d *userDoc) toUser() *store.User {
	return &store.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.Password,
		Age:          d.Age,
		ProfileImage: d.Profile,
		Posts:        hexIDs(d.Posts),
		Followers:    hexIDs(d.Followers),
		Following:    hexIDs(d.Following),
	}
}

func (d *postDoc) toPost() *store.Post {
	p := &store.Post{
		ID:        d.ID.Hex(),
		UserID:    d.User.Hex(),
		Content:   d.Content,
		Image:     d.Image,
		Likes:     hexIDs(d.Likes),
		Comments:  make([]store.Comment, 0, len(d.Comments)),
		CreatedAt: d.CreatedAt.UTC(),
	}
	for _, c := range d.Comments {
		p.Comments = append(p.Comments, store.Comment{Author: c.User, Text: c.Text, CreatedAt: c.Date.UTC()})
	}
	return p
}

func (d *postViewDoc) toView() store.PostView {
	v := store.PostView{Post: *d.Post.toPost()}
	if len(d.Author) > 0 {
		v.Author = d.Author[0].toUser()
	}
	return v
}
