package sandbox

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meaze0507/itchysats/internal/domain/cfd"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	defaultTradingPair = "BTCUSD"
	defaultLeverage    = 2
	defaultTerm        = 24 * time.Hour
)

// BookConfig holds offer book configuration
type BookConfig struct {
	InitialBalance decimal.Decimal // BTC
	WalletAddress  string
	Leverage       int
}

// DefaultBookConfig returns default configuration
func DefaultBookConfig() BookConfig {
	return BookConfig{
		InitialBalance: decimal.NewFromInt(1),
		WalletAddress:  "bcrt1qsandbox0000000000000000000000000000",
		Leverage:       defaultLeverage,
	}
}

// OfferBook is the in-memory state of the sandbox daemon.
// Every change is published on the hub.
type OfferBook struct {
	mu sync.Mutex

	hub    *Hub
	config BookConfig

	offer   *cfd.Offer
	cfds    []cfd.Cfd
	balance decimal.Decimal
}

// NewOfferBook creates an offer book and publishes its initial state
func NewOfferBook(hub *Hub, config BookConfig) *OfferBook {
	if config.Leverage <= 0 {
		config.Leverage = defaultLeverage
	}

	b := &OfferBook{
		hub:     hub,
		config:  config,
		cfds:    []cfd.Cfd{},
		balance: config.InitialBalance,
	}

	b.mu.Lock()
	b.publishLocked(cfd.EventOffer, b.offer)
	b.publishLocked(cfd.EventCfds, b.cfds)
	b.publishBalanceLocked()
	b.mu.Unlock()

	return b
}

// Offer returns the current offer, nil when there is none
func (b *OfferBook) Offer() *cfd.Offer {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.offer == nil {
		return nil
	}
	o := *b.offer
	return &o
}

// Cfds returns a copy of every CFD
func (b *OfferBook) Cfds() []cfd.Cfd {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]cfd.Cfd(nil), b.cfds...)
}

// Balance returns the wallet balance
func (b *OfferBook) Balance() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.balance
}

// PublishOffer replaces the current offer with one built from params
func (b *OfferBook) PublishOffer(params cfd.OfferParams) (*cfd.Offer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	// The maker sells when it quotes a short price
	position, price, funding := cfd.PositionShort, decimal.Zero, params.DailyFundingRateShort
	if params.PriceShort != nil {
		price = *params.PriceShort
	} else {
		position, price, funding = cfd.PositionLong, *params.PriceLong, params.DailyFundingRateLong
	}

	offer := &cfd.Offer{
		ID:                uuid.New().String(),
		TradingPair:       defaultTradingPair,
		Position:          position,
		Price:             price,
		MinQuantity:       params.MinQuantity,
		MaxQuantity:       params.MaxQuantity,
		Leverage:          b.config.Leverage,
		LiquidationPrice:  liquidationPrice(position.Counter(), price, b.config.Leverage),
		CreationTimestamp: time.Now().Unix(),
		TermInSecs:        int64(defaultTerm / time.Second),
		FundingRateDaily:  funding,
	}
	if params.OpeningFee != nil {
		offer.OpeningFee = *params.OpeningFee
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.offer = offer
	b.publishLocked(cfd.EventOffer, offer)

	log.Info().
		Str("offer_id", offer.ID).
		Str("position", string(offer.Position)).
		Str("price", offer.Price.String()).
		Msg("New offer published")

	o := *offer
	return &o, nil
}

// TakeOffer opens a CFD against the current offer
func (b *OfferBook) TakeOffer(req cfd.TakeOfferRequest) (*cfd.Cfd, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.offer == nil {
		return nil, cfd.ErrNoOffer
	}
	if b.offer.ID != req.OfferID {
		return nil, fmt.Errorf("%w: %s", cfd.ErrOfferNotFound, req.OfferID)
	}
	if !b.offer.Accepts(req.Quantity) {
		return nil, fmt.Errorf("%w: %s not in [%s, %s]",
			cfd.ErrQuantityOutOfRange, req.Quantity, b.offer.MinQuantity, b.offer.MaxQuantity)
	}

	margin := Margin(b.offer.Price, req.Quantity, b.offer.Leverage)
	if margin.GreaterThan(b.balance) {
		return nil, fmt.Errorf("%w: need %s, have %s", cfd.ErrInsufficientBalance, margin, b.balance)
	}

	position := b.offer.Position.Counter()
	c := cfd.Cfd{
		OrderID:          uuid.New().String(),
		TradingPair:      b.offer.TradingPair,
		Position:         position,
		InitialPrice:     b.offer.Price,
		Leverage:         b.offer.Leverage,
		LiquidationPrice: liquidationPrice(position, b.offer.Price, b.offer.Leverage),
		QuantityUSD:      req.Quantity,
		Margin:           margin,
		ProfitBTC:        decimal.Zero,
		ProfitPercent:    decimal.Zero,
		State:            cfd.StatePendingSetup,
		Actions:          []cfd.Action{},
		ExpiryTimestamp:  time.Now().Add(time.Duration(b.offer.TermInSecs) * time.Second).Unix(),
	}

	b.cfds = append(b.cfds, c)
	b.balance = b.balance.Sub(margin)

	b.publishLocked(cfd.EventCfds, b.cfds)
	b.publishBalanceLocked()

	log.Info().
		Str("order_id", c.OrderID).
		Str("offer_id", req.OfferID).
		Str("quantity", req.Quantity.String()).
		Str("margin", margin.String()).
		Msg("Offer taken")

	return &c, nil
}

func (b *OfferBook) publishBalanceLocked() {
	b.publishLocked(cfd.EventBalance, b.balance)
	b.publishLocked(cfd.EventWallet, cfd.WalletInfo{
		Balance:       b.balance,
		Address:       b.config.WalletAddress,
		LastUpdatedAt: time.Now().Unix(),
	})
}

func (b *OfferBook) publishLocked(name string, payload any) {
	if err := b.hub.Publish(name, payload); err != nil {
		log.Error().Err(err).Str("event", name).Msg("Failed to publish book update")
	}
}

// Margin returns the BTC margin for quantity USD at price and leverage
func Margin(price, quantity decimal.Decimal, leverage int) decimal.Decimal {
	if !price.IsPositive() || leverage <= 0 {
		return decimal.Zero
	}
	return quantity.Div(price.Mul(decimal.NewFromInt(int64(leverage)))).Round(8)
}

// liquidationPrice returns the price at which position loses its margin
func liquidationPrice(position cfd.Position, price decimal.Decimal, leverage int) decimal.Decimal {
	l := decimal.NewFromInt(int64(leverage))
	one := decimal.NewFromInt(1)

	if position == cfd.PositionLong {
		return price.Mul(l).Div(l.Add(one)).Round(2)
	}
	if leverage <= 1 {
		return decimal.Zero
	}
	return price.Mul(l).Div(l.Sub(one)).Round(2)
}
