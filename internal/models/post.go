package models

import (
	"time"

	"github.com/google/uuid"
)

// Categories a post can belong to.
const (
	CategoryComics = "comics"
	CategoryManga  = "manga"
	CategoryArt    = "art"
)

func IsValidCategory(c string) bool {
	return c == CategoryComics || c == CategoryManga || c == CategoryArt
}

type Post struct {
	ID            uuid.UUID    `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	ImageURL      string       `json:"image_url"`
	Category      string       `json:"category"`
	UserID        uuid.UUID    `json:"user_id"`
	User          *UserSummary `json:"user,omitempty"`
	CommentsCount int          `json:"comments_count"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type CreatePostRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Category    string `json:"category"`
}
