package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/listing"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/review"
)

// Rating ranges are checked by the review service so that they surface as
// domain errors.
type SubmitReviewRequest struct {
	OrderID   string `json:"order_id" validate:"required,uuid"`
	ProductID string `json:"product_id" validate:"required,uuid"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment" validate:"max=2000"`
}

type EditReviewRequest struct {
	Rating  *int    `json:"rating,omitempty"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

type ReviewHandler struct {
	service  review.Service
	validate *validator.Validate
}

func NewReviewHandler(service review.Service) *ReviewHandler {
	return &ReviewHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *ReviewHandler) RegisterPublicRoutes(router chi.Router) {
	router.Get("/products/{id}/reviews", h.handleProductReviews)
}

func (h *ReviewHandler) RegisterRoutes(router chi.Router) {
	router.Post("/reviews", h.handleSubmit)
	router.Patch("/reviews/{id}", h.handleEdit)
	router.Delete("/reviews/{id}", h.handleDeactivate)
}

func (h *ReviewHandler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/reviews", h.handleListReviews)
}

func (h *ReviewHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req SubmitReviewRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	created, err := h.service.Submit(r.Context(), user, review.SubmitInput{
		OrderID:   uuid.FromStringOrNil(req.OrderID),
		ProductID: uuid.FromStringOrNil(req.ProductID),
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to submit review")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *ReviewHandler) handleEdit(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	reviewID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req EditReviewRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	updated, err := h.service.Edit(r.Context(), reviewID, user, review.EditInput{Rating: req.Rating, Comment: req.Comment})
	if err != nil {
		respondWithServiceError(w, err, "Failed to edit review")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *ReviewHandler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	reviewID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Deactivate(r.Context(), reviewID, user); err != nil {
		respondWithServiceError(w, err, "Failed to delete review")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ReviewHandler) handleProductReviews(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	params := listing.NewReviewQuery(listing.FromValues(r.URL.Query())).Params
	result, err := h.service.ProductReviews(r.Context(), productID, params)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get product reviews")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ReviewHandler) handleListReviews(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	productID := uuid.Nil
	if raw := values.Get("productId"); raw != "" {
		id, err := uuid.FromString(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid productId parameter")
			return
		}
		productID = id
	}

	page, err := h.service.ListReviews(r.Context(), listing.NewReviewQuery(listing.FromValues(values)), productID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list reviews")
		return
	}

	respondWithJSON(w, http.StatusOK, page)
}
