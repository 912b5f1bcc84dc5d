package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/meaze0507/itchysats/internal/api/response"
	"github.com/meaze0507/itchysats/internal/domain/cfd"
	"github.com/meaze0507/itchysats/internal/service/sandbox"
	"github.com/rs/zerolog/log"
)

// maxBodyBytes bounds command request bodies
const maxBodyBytes = 1 << 20

// CommandHandler handles take and publish commands against the offer book
type CommandHandler struct {
	book *sandbox.OfferBook
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(book *sandbox.OfferBook) *CommandHandler {
	return &CommandHandler{book: book}
}

// TakeOffer takes the current offer
// POST /cfd
func (h *CommandHandler) TakeOffer(w http.ResponseWriter, r *http.Request) {
	var req cfd.TakeOfferRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body: "+err.Error())
		return
	}

	c, err := h.book.TakeOffer(req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	log.Debug().
		Str("order_id", c.OrderID).
		Msg("Take request accepted")

	response.Created(w, r, c, "take request accepted")
}

// PublishOffer publishes new offer parameters
// PUT /api/offer
func (h *CommandHandler) PublishOffer(w http.ResponseWriter, r *http.Request) {
	var params cfd.OfferParams
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&params); err != nil {
		response.BadRequest(w, r, "invalid request body: "+err.Error())
		return
	}

	offer, err := h.book.PublishOffer(params)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, r, offer)
}

// GetOffer returns the current offer
// GET /api/offer
func (h *CommandHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	offer := h.book.Offer()
	if offer == nil {
		response.FromError(w, r, cfd.ErrNoOffer)
		return
	}
	response.Success(w, r, offer)
}
