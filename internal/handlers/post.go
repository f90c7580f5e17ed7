package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"vineta-backend/internal/middleware"
	"vineta-backend/internal/models"
	"vineta-backend/internal/repository"
)

type PostHandler struct {
	postRepo *repository.PostRepo
}

func NewPostHandler(postRepo *repository.PostRepo) *PostHandler {
	return &PostHandler{postRepo: postRepo}
}

func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category != "" && !models.IsValidCategory(category) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Unknown category", r))
		return
	}

	posts, err := h.postRepo.List(r.Context(), category)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch posts", r))
		return
	}

	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	postID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid post ID", r))
		return
	}

	post, err := h.postRepo.GetByID(r.Context(), postID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Post not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch post", r))
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	fields := make(map[string]string)
	if strings.TrimSpace(req.Title) == "" {
		fields["title"] = "Title is required"
	}
	if strings.TrimSpace(req.Description) == "" {
		fields["description"] = "Description is required"
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		fields["image_url"] = "Image is required"
	}
	if !models.IsValidCategory(req.Category) {
		fields["category"] = "Category must be comics, manga or art"
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	post := &models.Post{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		ImageURL:    req.ImageURL,
		Category:    req.Category,
		UserID:      middleware.GetUserID(r.Context()),
	}

	if err := h.postRepo.Create(r.Context(), post); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create post", r))
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	postID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid post ID", r))
		return
	}

	post, err := h.postRepo.GetByID(r.Context(), postID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Post not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch post", r))
		return
	}

	recommendations, err := h.postRepo.Recommendations(r.Context(), postID, post.Category, 3)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch recommendations", r))
		return
	}

	writeJSON(w, http.StatusOK, recommendations)
}
