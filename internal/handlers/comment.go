package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"vineta-backend/internal/middleware"
	"vineta-backend/internal/models"
	"vineta-backend/internal/repository"
)

type CommentHandler struct {
	commentRepo *repository.CommentRepo
	postRepo    *repository.PostRepo
	userRepo    *repository.UserRepo
	redis       *redis.Client
}

func NewCommentHandler(commentRepo *repository.CommentRepo, postRepo *repository.PostRepo, userRepo *repository.UserRepo, redisClient *redis.Client) *CommentHandler {
	return &CommentHandler{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		userRepo:    userRepo,
		redis:       redisClient,
	}
}

func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	postID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid post ID", r))
		return
	}

	comments, err := h.commentRepo.ListByPost(r.Context(), postID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch comments", r))
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	postID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid post ID", r))
		return
	}

	var req models.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Content is required", r))
		return
	}

	if _, err := h.postRepo.GetByID(r.Context(), postID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Post not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch post", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	comment := &models.Comment{
		Content: strings.TrimSpace(req.Content),
		PostID:  postID,
		UserID:  userID,
	}

	if err := h.commentRepo.Create(r.Context(), comment); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create comment", r))
		return
	}

	// Attach the author for the response and the live feed
	if user, err := h.userRepo.GetByID(r.Context(), userID); err == nil {
		comment.User = &models.UserSummary{ID: user.ID, Username: user.Username, AvatarURL: user.AvatarURL}
	}

	h.publishComment(r.Context(), comment)

	writeJSON(w, http.StatusCreated, comment)
}

// publishComment fans a new comment out to websocket subscribers on
// its post. A failed publish only costs the live update, so it is
// logged and the request still succeeds.
func (h *CommentHandler) publishComment(ctx context.Context, comment *models.Comment) {
	data, err := json.Marshal(comment)
	if err != nil {
		return
	}
	if err := h.redis.Publish(ctx, fmt.Sprintf("post_comments:%s", comment.PostID), string(data)).Err(); err != nil {
		log.Printf("Failed to publish comment %s for post %s: %v", comment.ID, comment.PostID, err)
	}
}
