package cfd

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Position represents the side of a contract
type Position string

const (
	PositionLong  Position = "long"
	PositionShort Position = "short"
)

// IsValid checks if position is valid
func (p Position) IsValid() bool {
	switch p {
	case PositionLong, PositionShort:
		return true
	default:
		return false
	}
}

// Counter returns the opposite side
func (p Position) Counter() Position {
	if p == PositionLong {
		return PositionShort
	}
	return PositionLong
}

// State represents the lifecycle state of a CFD as reported by the daemon
type State string

const (
	StatePendingSetup  State = "pending_setup"
	StateContractSetup State = "contract_setup"
	StateRejected      State = "rejected"
	StatePendingOpen   State = "pending_open"
	StateOpen          State = "open"
	StatePendingClose  State = "pending_close"
	StateClosed        State = "closed"
	StateRefunded      State = "refunded"
	StateSetupFailed   State = "setup_failed"
)

// Action represents a user action the daemon currently allows on a CFD
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
	ActionSettle Action = "settle"
	ActionCommit Action = "commit"
)

// Offer represents the current terms a maker is willing to trade at
type Offer struct {
	ID                string          `json:"id"`
	TradingPair       string          `json:"trading_pair"`
	Position          Position        `json:"position"`
	Price             decimal.Decimal `json:"price"`
	MinQuantity       decimal.Decimal `json:"min_quantity"`
	MaxQuantity       decimal.Decimal `json:"max_quantity"`
	Leverage          int             `json:"leverage"`
	LiquidationPrice  decimal.Decimal `json:"liquidation_price"`
	CreationTimestamp int64           `json:"creation_timestamp"`
	TermInSecs        int64           `json:"term_in_secs"`
	FundingRateDaily  decimal.Decimal `json:"funding_rate_daily"`
	OpeningFee        decimal.Decimal `json:"opening_fee"`
}

// Accepts checks whether quantity is within the offer bounds (inclusive).
// Zero bounds are treated as unbounded.
func (o Offer) Accepts(quantity decimal.Decimal) bool {
	if !o.MinQuantity.IsZero() && quantity.LessThan(o.MinQuantity) {
		return false
	}
	if !o.MaxQuantity.IsZero() && quantity.GreaterThan(o.MaxQuantity) {
		return false
	}
	return true
}

// Cfd represents one contract as projected by the daemon
type Cfd struct {
	OrderID          string          `json:"order_id"`
	TradingPair      string          `json:"trading_pair"`
	Position         Position        `json:"position"`
	InitialPrice     decimal.Decimal `json:"initial_price"`
	Leverage         int             `json:"leverage"`
	LiquidationPrice decimal.Decimal `json:"liquidation_price"`
	QuantityUSD      decimal.Decimal `json:"quantity_usd"`
	Margin           decimal.Decimal `json:"margin"`
	ProfitBTC        decimal.Decimal `json:"profit_btc"`
	ProfitPercent    decimal.Decimal `json:"profit_percent"`
	State            State           `json:"state"`
	Actions          []Action        `json:"actions"`
	ExpiryTimestamp  int64           `json:"expiry_timestamp,omitempty"`
}

// IsOpen returns whether the contract is live on chain or about to be
func (c Cfd) IsOpen() bool {
	switch c.State {
	case StatePendingOpen, StateOpen, StatePendingClose:
		return true
	default:
		return false
	}
}

// IsClosed returns whether the contract reached a final state
func (c Cfd) IsClosed() bool {
	switch c.State {
	case StateClosed, StateRefunded, StateRejected, StateSetupFailed:
		return true
	default:
		return false
	}
}

// Can checks whether an action is currently offered
func (c Cfd) Can(action Action) bool {
	for _, a := range c.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// WalletInfo represents the local wallet as reported by the daemon
type WalletInfo struct {
	Balance       decimal.Decimal `json:"balance"`
	Address       string          `json:"address"`
	LastUpdatedAt int64           `json:"last_updated_at"`
}

// Quote represents the latest reference quote of the price feed
type Quote struct {
	Bid           decimal.Decimal `json:"bid"`
	Ask           decimal.Decimal `json:"ask"`
	LastUpdatedAt int64           `json:"last_updated_at"`
}

// ReferencePrice returns the mid price of the quote
func (q Quote) ReferencePrice() decimal.Decimal {
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}

// TakeOfferRequest is the payload of a take-offer command
type TakeOfferRequest struct {
	OfferID  string          `json:"offer_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// MarshalJSON writes the quantity as a JSON number, as the daemon expects
func (r TakeOfferRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		OfferID  string      `json:"offer_id"`
		Quantity json.Number `json:"quantity"`
	}{
		OfferID:  r.OfferID,
		Quantity: json.Number(r.Quantity.String()),
	})
}

// Validate checks the request before it is sent
func (r TakeOfferRequest) Validate() error {
	if r.OfferID == "" {
		return ErrOfferNotFound
	}
	if !r.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	return nil
}

// OfferParams is the payload a maker publishes to set new offer terms
type OfferParams struct {
	PriceShort            *decimal.Decimal `json:"price_short,omitempty"`
	PriceLong             *decimal.Decimal `json:"price_long,omitempty"`
	MinQuantity           decimal.Decimal  `json:"min_quantity"`
	MaxQuantity           decimal.Decimal  `json:"max_quantity"`
	DailyFundingRateLong  decimal.Decimal  `json:"daily_funding_rate_long"`
	DailyFundingRateShort decimal.Decimal  `json:"daily_funding_rate_short"`
	TxFeeRate             decimal.Decimal  `json:"tx_fee_rate"`
	OpeningFee            *decimal.Decimal `json:"opening_fee,omitempty"`
}

// Validate checks the offer parameters.
// At least one price is required, prices and quantities must be positive
// and the quantity range must not be inverted.
func (p OfferParams) Validate() error {
	if p.PriceShort == nil && p.PriceLong == nil {
		return ErrInvalidOfferParams
	}
	for _, price := range []*decimal.Decimal{p.PriceShort, p.PriceLong} {
		if price != nil && !price.IsPositive() {
			return ErrInvalidOfferParams
		}
	}
	if !p.MinQuantity.IsPositive() || !p.MaxQuantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if p.MinQuantity.GreaterThan(p.MaxQuantity) {
		return ErrQuantityOutOfRange
	}
	if p.TxFeeRate.IsNegative() {
		return ErrInvalidOfferParams
	}
	if p.OpeningFee != nil && p.OpeningFee.IsNegative() {
		return ErrInvalidOfferParams
	}
	return nil
}
