package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/analytics"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/catalog"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/identity"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/order"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/review"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := strings.ToLower(fe.Field())

		switch fe.Tag() {
		case "required":
			details[field] = fmt.Sprintf("%s is required", field)
		case "min":
			details[field] = fmt.Sprintf("%s must be at least %s", field, fe.Param())
		case "max":
			details[field] = fmt.Sprintf("%s must be at most %s", field, fe.Param())
		case "gte":
			details[field] = fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
		case "lte":
			details[field] = fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
		case "oneof":
			details[field] = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
		case "uuid":
			details[field] = fmt.Sprintf("%s must be a valid UUID", field)
		default:
			details[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return details
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the error response itself and reports whether to continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		log.Warn().Err(err).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return false
	}

	return true
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.FromString(raw)
	if err != nil {
		log.Warn().Err(err).Str(name, raw).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s parameter", name))
		return uuid.Nil, false
	}
	return id, true
}

func currentUser(w http.ResponseWriter, r *http.Request) (*identity.User, bool) {
	u, ok := identity.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return u, true
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, review.ErrReviewNotFound),
		errors.Is(err, review.ErrOrderNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, identity.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrForbidden),
		errors.Is(err, review.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, order.ErrPreconditionFailed):
		return http.StatusPreconditionFailed
	case errors.Is(err, order.ErrInvalidReference),
		errors.Is(err, order.ErrInvalidPrice),
		errors.Is(err, order.ErrInvalidInput),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, review.ErrInvalidRating),
		errors.Is(err, review.ErrInvalidInput),
		errors.Is(err, review.ErrInvalidReference),
		errors.Is(err, analytics.ErrInvalidPeriod):
		return http.StatusUnprocessableEntity
	case errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrAlreadyDelivered),
		errors.Is(err, review.ErrInvalidState),
		errors.Is(err, review.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError logs err and writes the mapped status. Domain
// errors are echoed to the client; anything else is hidden behind fallback.
func respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	statusCode := mapErrorToStatusCode(err)
	if statusCode == http.StatusInternalServerError {
		log.Error().Err(err).Msg(fallback)
		respondWithError(w, statusCode, fallback)
		return
	}

	log.Warn().Err(err).Int("status", statusCode).Msg(fallback)
	respondWithError(w, statusCode, err.Error())
}
