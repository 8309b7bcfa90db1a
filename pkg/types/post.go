package types

import "time"

// Post is a top-level message authored by an identity, optionally directed
// at a recipient. Known is local bookkeeping and is not part of the
// published state.
type Post struct {
	ID          string
	AuthorID    string
	RecipientID string // empty when the post has no recipient
	Time        time.Time
	Text        string
	Known       bool
}

// NewPost builds a Post. Returns ErrInvalidID if id or author is empty and
// ErrSelfRecipient if the recipient equals the author.
func NewPost(id, authorID, recipientID string, t time.Time, text string) (Post, error) {
	if id == "" || authorID == "" {
		return Post{}, ErrInvalidID
	}
	if recipientID == authorID {
		return Post{}, ErrSelfRecipient
	}
	return Post{ID: id, AuthorID: authorID, RecipientID: recipientID, Time: t, Text: text}, nil
}

// HasRecipient reports whether the post is directed at someone.
func (p Post) HasRecipient() bool { return p.RecipientID != "" }

// SameContent compares the published fields of two posts.
func (p Post) SameContent(o Post) bool {
	return p.ID == o.ID && p.AuthorID == o.AuthorID && p.RecipientID == o.RecipientID &&
		p.Time.Equal(o.Time) && p.Text == o.Text
}

// PostReply is a reply to a Post, possibly authored by a different identity.
type PostReply struct {
	ID       string
	AuthorID string
	PostID   string
	Time     time.Time
	Text     string
	Known    bool
}

// NewPostReply builds a PostReply.
func NewPostReply(id, authorID, postID string, t time.Time, text string) (PostReply, error) {
	if id == "" || authorID == "" || postID == "" {
		return PostReply{}, ErrInvalidID
	}
	return PostReply{ID: id, AuthorID: authorID, PostID: postID, Time: t, Text: text}, nil
}

// SameContent compares the published fields of two replies.
func (r PostReply) SameContent(o PostReply) bool {
	return r.ID == o.ID && r.AuthorID == o.AuthorID && r.PostID == o.PostID &&
		r.Time.Equal(o.Time) && r.Text == o.Text
}
