package cfd

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferAccepts(t *testing.T) {
	offer := Offer{
		ID:          "o1",
		MinQuantity: decimal.NewFromInt(100),
		MaxQuantity: decimal.NewFromInt(10000),
	}

	t.Run("inside bounds", func(t *testing.T) {
		assert.True(t, offer.Accepts(decimal.NewFromInt(5000)))
	})

	t.Run("bounds are inclusive", func(t *testing.T) {
		assert.True(t, offer.Accepts(decimal.NewFromInt(100)))
		assert.True(t, offer.Accepts(decimal.NewFromInt(10000)))
	})

	t.Run("outside bounds", func(t *testing.T) {
		assert.False(t, offer.Accepts(decimal.NewFromInt(99)))
		assert.False(t, offer.Accepts(decimal.NewFromInt(10001)))
	})

	t.Run("zero bounds are unbounded", func(t *testing.T) {
		assert.True(t, Offer{}.Accepts(decimal.NewFromInt(1_000_000)))
	})
}

func TestOfferDecodesWireNumbers(t *testing.T) {
	var offer Offer
	err := json.Unmarshal([]byte(`{"id":"o1","price":10000,"leverage":2,"min_quantity":"100"}`), &offer)
	require.NoError(t, err)

	assert.Equal(t, "o1", offer.ID)
	assert.True(t, offer.Price.Equal(decimal.NewFromInt(10000)))
	assert.True(t, offer.MinQuantity.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 2, offer.Leverage)
}

func TestCfdState(t *testing.T) {
	open := Cfd{State: StateOpen, Actions: []Action{ActionSettle}}
	assert.True(t, open.IsOpen())
	assert.False(t, open.IsClosed())
	assert.True(t, open.Can(ActionSettle))
	assert.False(t, open.Can(ActionCommit))

	refunded := Cfd{State: StateRefunded}
	assert.False(t, refunded.IsOpen())
	assert.True(t, refunded.IsClosed())

	pending := Cfd{State: StatePendingSetup}
	assert.False(t, pending.IsOpen())
	assert.False(t, pending.IsClosed())
}

func TestQuoteReferencePrice(t *testing.T) {
	q := Quote{Bid: decimal.NewFromInt(41000), Ask: decimal.NewFromInt(41010)}
	assert.True(t, q.ReferencePrice().Equal(decimal.NewFromInt(41005)))
}

func TestTakeOfferRequestValidate(t *testing.T) {
	assert.NoError(t, TakeOfferRequest{OfferID: "o1", Quantity: decimal.NewFromInt(5000)}.Validate())
	assert.ErrorIs(t, TakeOfferRequest{Quantity: decimal.NewFromInt(5000)}.Validate(), ErrOfferNotFound)
	assert.ErrorIs(t, TakeOfferRequest{OfferID: "o1"}.Validate(), ErrInvalidQuantity)
	assert.ErrorIs(t, TakeOfferRequest{OfferID: "o1", Quantity: decimal.NewFromInt(-1)}.Validate(), ErrInvalidQuantity)
}

func TestTakeOfferRequestWireFormat(t *testing.T) {
	req := TakeOfferRequest{OfferID: "o1", Quantity: decimal.RequireFromString("5000.5")}

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"offer_id":"o1","quantity":5000.5}`, string(data))

	var back TakeOfferRequest
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "o1", back.OfferID)
	assert.True(t, back.Quantity.Equal(req.Quantity))
}

func TestOfferParamsValidate(t *testing.T) {
	price := decimal.NewFromInt(42000)
	valid := OfferParams{
		PriceLong:   &price,
		MinQuantity: decimal.NewFromInt(100),
		MaxQuantity: decimal.NewFromInt(1000),
		TxFeeRate:   decimal.NewFromInt(1),
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("missing price", func(t *testing.T) {
		p := valid
		p.PriceLong = nil
		assert.ErrorIs(t, p.Validate(), ErrInvalidOfferParams)
	})

	t.Run("non positive price", func(t *testing.T) {
		zero := decimal.Zero
		p := valid
		p.PriceShort = &zero
		assert.ErrorIs(t, p.Validate(), ErrInvalidOfferParams)
	})

	t.Run("inverted range", func(t *testing.T) {
		p := valid
		p.MinQuantity = decimal.NewFromInt(2000)
		assert.ErrorIs(t, p.Validate(), ErrQuantityOutOfRange)
	})

	t.Run("negative opening fee", func(t *testing.T) {
		fee := decimal.NewFromInt(-1)
		p := valid
		p.OpeningFee = &fee
		assert.ErrorIs(t, p.Validate(), ErrInvalidOfferParams)
	})
}

func TestMakerStatusDescribe(t *testing.T) {
	makerOutdated := CloseReasonMakerVersionOutdated
	takerOutdated := CloseReasonTakerVersionOutdated

	t.Run("online", func(t *testing.T) {
		d := MakerStatus{Online: true}.Describe()
		assert.False(t, d.Warn)
		assert.True(t, d.Online)
		assert.Equal(t, "The maker is online", d.Summary)
	})

	t.Run("offline", func(t *testing.T) {
		d := MakerStatus{}.Describe()
		assert.False(t, d.Warn)
		assert.False(t, d.Online)
		assert.Equal(t, "The maker is offline", d.Summary)
	})

	t.Run("close reason wins over online flag", func(t *testing.T) {
		d := MakerStatus{Online: true, ConnectionCloseReason: &makerOutdated}.Describe()
		assert.True(t, d.Warn)
		assert.Contains(t, d.Summary, "maker is running an outdated version")

		d = MakerStatus{ConnectionCloseReason: &takerOutdated}.Describe()
		assert.True(t, d.Warn)
		assert.Contains(t, d.Summary, "incompatible version")
	})

	t.Run("decodes wire shape", func(t *testing.T) {
		var s MakerStatus
		require.NoError(t, json.Unmarshal([]byte(`{"online":false,"connection_close_reason":"taker_version_outdated"}`), &s))
		require.NotNil(t, s.ConnectionCloseReason)
		assert.Equal(t, CloseReasonTakerVersionOutdated, *s.ConnectionCloseReason)
	})
}
