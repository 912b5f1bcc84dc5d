package response

import (
	"errors"
	"net/http"

	"github.com/meaze0507/itchysats/internal/api/middleware"
	"github.com/meaze0507/itchysats/internal/domain/cfd"
	"github.com/rs/zerolog/log"
)

// Problem is the error body of the daemon API
type Problem struct {
	Title     string `json:"title"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Error sends a problem response
func Error(w http.ResponseWriter, r *http.Request, status int, title, detail string) {
	p := Problem{
		Title:     title,
		Detail:    detail,
		RequestID: middleware.GetRequestID(r.Context()),
	}

	event := log.Warn()
	if status >= 500 {
		event = log.Error()
	}
	event.
		Str("request_id", p.RequestID).
		Str("title", title).
		Str("detail", detail).
		Int("status", status).
		Msg("API error response")

	JSON(w, status, p)
}

// BadRequest sends a 400 response
func BadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, http.StatusBadRequest, "Bad request", detail)
}

// FromError maps a domain error to a problem response
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cfd.ErrNoOffer),
		errors.Is(err, cfd.ErrOfferNotFound):
		Error(w, r, http.StatusNotFound, "Offer not found", err.Error())
	case errors.Is(err, cfd.ErrInvalidQuantity),
		errors.Is(err, cfd.ErrQuantityOutOfRange):
		Error(w, r, http.StatusUnprocessableEntity, "Invalid quantity", err.Error())
	case errors.Is(err, cfd.ErrInvalidOfferParams):
		Error(w, r, http.StatusBadRequest, "Invalid offer", err.Error())
	case errors.Is(err, cfd.ErrInsufficientBalance):
		Error(w, r, http.StatusConflict, "Insufficient balance", err.Error())
	default:
		Error(w, r, http.StatusInternalServerError, "Internal server error", err.Error())
	}
}
