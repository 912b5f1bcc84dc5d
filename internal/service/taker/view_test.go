package taker

import (
	"context"
	"errors"
	"testing"

	"github.com/meaze0507/itchysats/internal/domain/cfd"
	"github.com/meaze0507/itchysats/internal/domain/feed"
	feedclient "github.com/meaze0507/itchysats/internal/infra/feed"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommander struct {
	requests []cfd.TakeOfferRequest
	err      error
	onTake   func()
}

func (f *fakeCommander) TakeOffer(_ context.Context, req cfd.TakeOfferRequest) error {
	f.requests = append(f.requests, req)
	if f.onTake != nil {
		f.onTake()
	}
	return f.err
}

func deliver(d *feedclient.Dispatcher, name, data string) {
	d.Deliver(feed.Message{Name: name, Data: []byte(data)})
}

func TestTakeOfferRequiresOffer(t *testing.T) {
	d := feedclient.NewDispatcher()
	commands := &fakeCommander{}
	v := NewView(d, commands)
	defer v.Close()

	_, err := v.TakeOffer(context.Background(), DefaultQuantity)
	assert.ErrorIs(t, err, cfd.ErrNoOffer)

	// The daemon sends null once the maker withdraws its offer
	deliver(d, cfd.EventOffer, `null`)
	_, err = v.TakeOffer(context.Background(), DefaultQuantity)
	assert.ErrorIs(t, err, cfd.ErrNoOffer)

	assert.Empty(t, commands.requests)
}

func TestTakeOffer(t *testing.T) {
	d := feedclient.NewDispatcher()
	commands := &fakeCommander{}
	v := NewView(d, commands)
	defer v.Close()

	deliver(d, cfd.EventOffer, `{"id":"o1","price":10000,"leverage":2,"min_quantity":100,"max_quantity":10000}`)

	t.Run("submits current offer id", func(t *testing.T) {
		offer, err := v.TakeOffer(context.Background(), decimal.NewFromInt(5000))
		require.NoError(t, err)
		assert.Equal(t, "o1", offer.ID)
		require.Len(t, commands.requests, 1)
		assert.Equal(t, "o1", commands.requests[0].OfferID)
		assert.True(t, commands.requests[0].Quantity.Equal(decimal.NewFromInt(5000)))
	})

	t.Run("rejects quantity outside offer bounds", func(t *testing.T) {
		_, err := v.TakeOffer(context.Background(), decimal.NewFromInt(20000))
		assert.ErrorIs(t, err, cfd.ErrQuantityOutOfRange)

		_, err = v.TakeOffer(context.Background(), decimal.Zero)
		assert.ErrorIs(t, err, cfd.ErrInvalidQuantity)

		assert.Len(t, commands.requests, 1)
	})

	t.Run("surfaces command failure", func(t *testing.T) {
		commands.err = errors.New("failed to create new CFD take request: 500, Internal Server Error")
		offer, err := v.TakeOffer(context.Background(), decimal.NewFromInt(5000))
		assert.Nil(t, offer)
		assert.EqualError(t, err, "failed to create new CFD take request: 500, Internal Server Error")
	})
}

func TestTakeOfferReturnsSubmittedOffer(t *testing.T) {
	d := feedclient.NewDispatcher()
	commands := &fakeCommander{}
	v := NewView(d, commands)
	defer v.Close()

	deliver(d, cfd.EventOffer, `{"id":"o1","price":10000,"min_quantity":100,"max_quantity":10000}`)

	// The maker replaces its offer while the request is in flight
	commands.onTake = func() {
		deliver(d, cfd.EventOffer, `{"id":"o2","price":12000,"min_quantity":100,"max_quantity":10000}`)
	}

	offer, err := v.TakeOffer(context.Background(), decimal.NewFromInt(5000))
	require.NoError(t, err)
	assert.Equal(t, "o1", offer.ID)
	assert.True(t, offer.Price.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, "o1", commands.requests[0].OfferID)

	current, err := v.CurrentOffer()
	require.NoError(t, err)
	assert.Equal(t, "o2", current.ID)
}

func TestSummary(t *testing.T) {
	d := feedclient.NewDispatcher()
	v := NewView(d, &fakeCommander{})
	defer v.Close()

	s := v.Summary()
	assert.Nil(t, s.Balance)
	assert.Nil(t, s.Offer)
	assert.Equal(t, "The maker is offline", s.Maker.Summary)

	d.SetStatus(feed.Status{State: feed.StateOpen})
	deliver(d, cfd.EventBalance, `150`)
	deliver(d, cfd.EventOffer, `{"id":"o1","price":10000,"leverage":2}`)
	deliver(d, cfd.EventCfds, `[{"order_id":"a","state":"open"},{"order_id":"b","state":"closed"}]`)
	deliver(d, cfd.EventMakerStatus, `{"online":true}`)
	deliver(d, cfd.EventNextFundingEvent, `"in 3 hours"`)
	deliver(d, cfd.EventQuote, `{"bid":41000,"ask":41010}`)

	s = v.Summary()
	require.NotNil(t, s.Balance)
	assert.True(t, s.Balance.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "o1", s.Offer.ID)
	assert.Equal(t, 1, s.OpenCfds)
	assert.Equal(t, 2, s.TotalCfds)
	assert.True(t, s.Maker.Online)
	assert.Equal(t, "in 3 hours", s.NextFunding)
	require.NotNil(t, s.Reference)
	assert.True(t, s.Reference.Equal(decimal.NewFromInt(41005)))
	assert.False(t, s.Stale)

	d.SetStatus(feed.Status{State: feed.StateReconnecting, Attempt: 1})
	assert.True(t, v.Summary().Stale)
}

func TestViewClose(t *testing.T) {
	d := feedclient.NewDispatcher()
	v := NewView(d, &fakeCommander{})

	assert.Equal(t, 7, d.GetStats().ActiveListeners)
	v.Close()
	assert.Equal(t, 0, d.GetStats().ActiveListeners)
	assert.Equal(t, 0, d.GetStats().ActiveWatchers)
}
