package taker

import (
	"context"
	"fmt"

	"github.com/meaze0507/itchysats/internal/domain/cfd"
	"github.com/meaze0507/itchysats/internal/domain/feed"
	"github.com/meaze0507/itchysats/internal/service/projection"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DefaultQuantity is the quantity proposed when the caller gives none
var DefaultQuantity = decimal.NewFromInt(10000)

// Commander submits take requests to the daemon
type Commander interface {
	TakeOffer(ctx context.Context, req cfd.TakeOfferRequest) error
}

// View projects every channel the taker consumes from one connection
type View struct {
	Cfds             *projection.Latest[[]cfd.Cfd]
	Offer            *projection.Latest[*cfd.Offer]
	Balance          *projection.Latest[decimal.Decimal]
	Wallet           *projection.Latest[cfd.WalletInfo]
	MakerStatus      *projection.Latest[cfd.MakerStatus]
	NextFundingEvent *projection.Latest[string]
	Quote            *projection.Latest[cfd.Quote]

	conn     feed.Connection
	commands Commander
}

// NewView binds the taker projections on conn
func NewView(conn feed.Connection, commands Commander) *View {
	return &View{
		Cfds:             projection.New[[]cfd.Cfd](conn, cfd.EventCfds),
		Offer:            projection.New[*cfd.Offer](conn, cfd.EventOffer),
		Balance:          projection.New[decimal.Decimal](conn, cfd.EventBalance),
		Wallet:           projection.New[cfd.WalletInfo](conn, cfd.EventWallet),
		MakerStatus:      projection.New[cfd.MakerStatus](conn, cfd.EventMakerStatus),
		NextFundingEvent: projection.New[string](conn, cfd.EventNextFundingEvent),
		Quote:            projection.New[cfd.Quote](conn, cfd.EventQuote),
		conn:             conn,
		commands:         commands,
	}
}

// CurrentOffer returns the offer currently on the feed
func (v *View) CurrentOffer() (*cfd.Offer, error) {
	offer, ok := v.Offer.Value()
	if !ok || offer == nil {
		return nil, cfd.ErrNoOffer
	}
	return offer, nil
}

// TakeOffer takes the current offer for quantity and returns the offer
// the request was built from
func (v *View) TakeOffer(ctx context.Context, quantity decimal.Decimal) (*cfd.Offer, error) {
	offer, err := v.CurrentOffer()
	if err != nil {
		return nil, err
	}

	if !quantity.IsPositive() {
		return nil, cfd.ErrInvalidQuantity
	}
	if !offer.Accepts(quantity) {
		return nil, fmt.Errorf("%w: %s not in [%s, %s]",
			cfd.ErrQuantityOutOfRange, quantity, offer.MinQuantity, offer.MaxQuantity)
	}

	req := cfd.TakeOfferRequest{OfferID: offer.ID, Quantity: quantity}
	if err := v.commands.TakeOffer(ctx, req); err != nil {
		log.Error().
			Err(err).
			Str("offer_id", offer.ID).
			Msg("Take request failed")
		return nil, err
	}

	return offer, nil
}

// Summary is a flat, render ready view of the taker state
type Summary struct {
	Link        feed.Status
	Balance     *decimal.Decimal
	Offer       *cfd.Offer
	OpenCfds    int
	TotalCfds   int
	Maker       cfd.StatusSummary
	NextFunding string
	Reference   *decimal.Decimal
	Stale       bool
}

// Summary reads every projection once
func (v *View) Summary() Summary {
	s := Summary{
		Link:  v.conn.Status(),
		Maker: cfd.MakerStatus{}.Describe(),
	}

	if balance, ok := v.Balance.Value(); ok {
		s.Balance = &balance
	}
	if offer, ok := v.Offer.Value(); ok {
		s.Offer = offer
	}
	if cfds, ok := v.Cfds.Value(); ok {
		s.TotalCfds = len(cfds)
		for _, c := range cfds {
			if c.IsOpen() {
				s.OpenCfds++
			}
		}
	}
	if status, ok := v.MakerStatus.Value(); ok {
		s.Maker = status.Describe()
	}
	if next, ok := v.NextFundingEvent.Value(); ok {
		s.NextFunding = next
	}
	if quote, ok := v.Quote.Value(); ok {
		ref := quote.ReferencePrice()
		s.Reference = &ref
	}

	s.Stale = v.Balance.Get().Stale() || v.Offer.Get().Stale()
	return s
}

// Close releases every projection
func (v *View) Close() {
	v.Cfds.Close()
	v.Offer.Close()
	v.Balance.Close()
	v.Wallet.Close()
	v.MakerStatus.Close()
	v.NextFundingEvent.Close()
	v.Quote.Close()
}
