package comments

// NewCommentRequest is the comment form posted under a post.
type NewCommentRequest struct {
	Text string `form:"comment" validate:"required,max=1000"`
}
