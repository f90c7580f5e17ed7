package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"vineta-backend/internal/models"
)

type CommentRepo struct {
	pool *pgxpool.Pool
}

func NewCommentRepo(pool *pgxpool.Pool) *CommentRepo {
	return &CommentRepo{pool: pool}
}

// ListByPost returns a post's comments oldest first with their authors.
func (r *CommentRepo) ListByPost(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error) {
	query := `
		SELECT c.id, c.content, c.post_id, c.user_id, c.created_at,
			u.id, u.username, u.avatar_url
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.post_id = $1
		ORDER BY c.created_at ASC`

	rows, err := r.pool.Query(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []*models.Comment{}
	for rows.Next() {
		comment := &models.Comment{User: &models.UserSummary{}}
		err := rows.Scan(
			&comment.ID, &comment.Content, &comment.PostID, &comment.UserID, &comment.CreatedAt,
			&comment.User.ID, &comment.User.Username, &comment.User.AvatarURL,
		)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

func (r *CommentRepo) Create(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments (id, content, post_id, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	comment.ID = uuid.New()

	return r.pool.QueryRow(ctx, query,
		comment.ID, comment.Content, comment.PostID, comment.UserID,
	).Scan(&comment.CreatedAt)
}
