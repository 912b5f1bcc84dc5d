package maker

import (
	"context"

	"github.com/meaze0507/itchysats/internal/domain/cfd"
	"github.com/meaze0507/itchysats/internal/domain/feed"
	"github.com/meaze0507/itchysats/internal/service/projection"
	"github.com/rs/zerolog/log"
)

// Publisher publishes offer parameters to the daemon
type Publisher interface {
	PublishOffer(ctx context.Context, params cfd.OfferParams) error
}

// View projects the channels the maker consumes from one connection
type View struct {
	Offer  *projection.Latest[*cfd.Offer]
	Cfds   *projection.Latest[[]cfd.Cfd]
	Wallet *projection.Latest[cfd.WalletInfo]
	Quote  *projection.Latest[cfd.Quote]

	conn      feed.Connection
	publisher Publisher
}

// NewView binds the maker projections on conn
func NewView(conn feed.Connection, publisher Publisher) *View {
	return &View{
		Offer:     projection.New[*cfd.Offer](conn, cfd.EventOffer),
		Cfds:      projection.New[[]cfd.Cfd](conn, cfd.EventCfds),
		Wallet:    projection.New[cfd.WalletInfo](conn, cfd.EventWallet),
		Quote:     projection.New[cfd.Quote](conn, cfd.EventQuote),
		conn:      conn,
		publisher: publisher,
	}
}

// Link returns the connection status
func (v *View) Link() feed.Status {
	return v.conn.Status()
}

// PublishOffer validates params and publishes them
func (v *View) PublishOffer(ctx context.Context, params cfd.OfferParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	if err := v.publisher.PublishOffer(ctx, params); err != nil {
		log.Error().Err(err).Msg("Publishing offer failed")
		return err
	}
	return nil
}

// Pending returns the CFDs that wait for a maker decision
func (v *View) Pending() []cfd.Cfd {
	cfds, _ := v.Cfds.Value()

	var pending []cfd.Cfd
	for _, c := range cfds {
		if c.Can(cfd.ActionAccept) || c.Can(cfd.ActionReject) {
			pending = append(pending, c)
		}
	}
	return pending
}

// Close releases every projection
func (v *View) Close() {
	v.Offer.Close()
	v.Cfds.Close()
	v.Wallet.Close()
	v.Quote.Close()
}
