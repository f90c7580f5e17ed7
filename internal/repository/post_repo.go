package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"vineta-backend/internal/models"
)

type PostRepo struct {
	pool *pgxpool.Pool
}

func NewPostRepo(pool *pgxpool.Pool) *PostRepo {
	return &PostRepo{pool: pool}
}

const postColumns = `
	p.id, p.title, p.description, p.image_url, p.category, p.user_id,
	p.created_at, p.updated_at,
	u.id, u.username, u.avatar_url,
	(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comments_count`

func scanPost(row interface{ Scan(...any) error }) (*models.Post, error) {
	post := &models.Post{User: &models.UserSummary{}}
	err := row.Scan(
		&post.ID, &post.Title, &post.Description, &post.ImageURL, &post.Category, &post.UserID,
		&post.CreatedAt, &post.UpdatedAt,
		&post.User.ID, &post.User.Username, &post.User.AvatarURL,
		&post.CommentsCount,
	)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// List returns posts newest first, optionally filtered by category.
func (r *PostRepo) List(ctx context.Context, category string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.user_id`
	args := []any{}
	if category != "" {
		query += ` WHERE p.category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY p.created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []*models.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *PostRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	query := `SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.id = $1`

	return scanPost(r.pool.QueryRow(ctx, query, id))
}

func (r *PostRepo) Create(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (id, title, description, image_url, category, user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	post.ID = uuid.New()

	return r.pool.QueryRow(ctx, query,
		post.ID, post.Title, post.Description, post.ImageURL, post.Category, post.UserID,
	).Scan(&post.CreatedAt, &post.UpdatedAt)
}

// Recommendations returns up to limit other posts, preferring the same
// category, newest first.
func (r *PostRepo) Recommendations(ctx context.Context, postID uuid.UUID, category string, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.id <> $1
		ORDER BY (p.category = $2) DESC, p.created_at DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, postID, category, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []*models.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}
