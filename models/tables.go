package models

import "time"

// Role is the ordered access level of a user. Comparisons go through
// AtLeast instead of raw string comparison.
type Role string

const (
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

var roleRank = map[Role]int{
	RoleUser:      0,
	RoleModerator: 1,
	RoleAdmin:     2,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r satisfies the minimum role min. Unknown roles
// never satisfy anything.
func (r Role) AtLeast(min Role) bool {
	rr, ok := roleRank[r]
	if !ok {
		return false
	}
	return rr >= roleRank[min]
}

// ReactionType is the vote direction on a post or comment.
type ReactionType string

const (
	ReactionUpvote   ReactionType = "UPVOTE"
	ReactionDownvote ReactionType = "DOWNVOTE"
)

func (t ReactionType) Valid() bool {
	return t == ReactionUpvote || t == ReactionDownvote
}

type User struct {
	ID           int       `gorm:"primary_key;autoIncrement" json:"id"`
	Email        string    `gorm:"unique;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"` // json:"-" prevents password from being exposed in API
	Name         string    `gorm:"not null" json:"name"`
	Role         Role      `gorm:"not null;default:'USER'" json:"role"`
	Banned       bool      `gorm:"default:false" json:"banned"`
	CreatedAt    time.Time `json:"created_at"`
}

type Post struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	AuthorID  int       `gorm:"not null;index" json:"author_id"` // auto-filled from the token subject
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Title     string    `gorm:"not null" json:"title"`
	Body      string    `gorm:"type:text" json:"body"`
	Author    *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Tags      []Tag     `gorm:"many2many:post_tags" json:"tags"`
	Files     []File    `gorm:"foreignKey:PostID" json:"files"`
	Comments  []Comment `gorm:"foreignKey:PostID" json:"comments,omitempty"`
}

type Comment struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	AuthorID  int       `gorm:"not null;index" json:"author_id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Author    *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Files     []File    `gorm:"foreignKey:CommentID" json:"files"`
}

type Category struct {
	ID   uint   `gorm:"primary_key" json:"id"`
	Name string `gorm:"unique;not null" json:"name"`
}

// Tag is unique on (key, category_id). Reconciliation always resolves to the
// existing row for that pair, never a duplicate.
type Tag struct {
	ID         uint   `gorm:"primary_key" json:"id"`
	Key        string `gorm:"not null;uniqueIndex:idx_tag_key_category" json:"key"`
	CategoryID uint   `gorm:"not null;uniqueIndex:idx_tag_key_category" json:"category_id"`
}

// PostReaction is unique on (author_id, post_id); re-reacting overwrites Type.
type PostReaction struct {
	ID        uint         `gorm:"primary_key" json:"id"`
	AuthorID  int          `gorm:"not null;uniqueIndex:idx_post_reaction_author_post" json:"author_id"`
	PostID    uint         `gorm:"not null;uniqueIndex:idx_post_reaction_author_post" json:"post_id"`
	Type      ReactionType `gorm:"not null" json:"type"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type CommentReaction struct {
	ID        uint         `gorm:"primary_key" json:"id"`
	AuthorID  int          `gorm:"not null;uniqueIndex:idx_comment_reaction_author_comment" json:"author_id"`
	CommentID uint         `gorm:"not null;uniqueIndex:idx_comment_reaction_author_comment" json:"comment_id"`
	Type      ReactionType `gorm:"not null" json:"type"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// PostReport is unique on (author_id, post_id); upsert overwrites Reason and
// fully replaces the tag set.
type PostReport struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	AuthorID  int       `gorm:"not null;uniqueIndex:idx_post_report_author_post" json:"author_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_report_author_post" json:"post_id"`
	Reason    string    `gorm:"not null" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Tags      []Tag     `gorm:"many2many:post_report_tags" json:"tags"`
}

type CommentReport struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	AuthorID  int       `gorm:"not null;uniqueIndex:idx_comment_report_author_comment" json:"author_id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_comment_report_author_comment" json:"comment_id"`
	Reason    string    `gorm:"not null" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Tags      []Tag     `gorm:"many2many:comment_report_tags" json:"tags"`
}

// File is a metadata row pointing at an externally hosted object. The row is
// created only after the upload to the object store succeeded.
type File struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	RemoteURL string    `gorm:"not null" json:"remote_url"`
	PostID    *uint     `gorm:"index" json:"post_id,omitempty"`
	CommentID *uint     `gorm:"index" json:"comment_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
