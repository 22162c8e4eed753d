package models

import "time"

// ArticleStatus distinguishes drafts from published articles.
type ArticleStatus int16

const (
	ArticleDraft     ArticleStatus = 0
	ArticlePublished ArticleStatus = 1
)

// Category groups articles; categories may nest via ParentID.
// Soft-deleted rows stay in place with IsDeleted set.
type Category struct {
	ID          int64
	Name        string
	Description string
	ParentID    *int64
	IsActive    bool
	IsDeleted   bool
}

// Article is one news item. CreatedByID/UpdatedByID reference accounts.
type Article struct {
	ID          int64
	Title       string
	Headline    string
	Content     string
	Source      string
	Status      ArticleStatus
	CategoryID  int64
	CreatedByID int64
	UpdatedByID *int64
	CreatedDate time.Time
	IsDeleted   bool
	TagIDs      []int64
}

// Tag labels articles; the article↔tag link lives in a join table.
type Tag struct {
	ID        int64
	Name      string
	Note      string
	IsDeleted bool
}
