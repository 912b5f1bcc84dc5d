package projection

import (
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/meaze0507/itchysats/internal/domain/cfd"
	"github.com/meaze0507/itchysats/internal/domain/feed"
	feedclient "github.com/meaze0507/itchysats/internal/infra/feed"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deliver(d *feedclient.Dispatcher, name, data string) {
	d.Deliver(feed.Message{Name: name, Data: []byte(data)})
}

func TestLatestAbsentBeforeFirstOccurrence(t *testing.T) {
	d := feedclient.NewDispatcher()
	balance := New[int64](d, cfd.EventBalance)
	defer balance.Close()

	s := balance.Get()
	assert.Equal(t, StateAbsent, s.State)
	assert.False(t, s.Present())
	assert.True(t, s.Pending())
	assert.False(t, s.Failed())
	assert.Equal(t, uint64(0), s.Seq)

	_, ok := balance.Value()
	assert.False(t, ok)

	// Other names do not count as a first occurrence
	deliver(d, cfd.EventOffer, `null`)
	assert.Equal(t, StateAbsent, balance.Get().State)
}

func TestLatestLastWriteWins(t *testing.T) {
	d := feedclient.NewDispatcher()
	balance := New[int64](d, cfd.EventBalance)
	defer balance.Close()

	for k := 1; k <= 50; k++ {
		deliver(d, cfd.EventBalance, strconv.Itoa(k*10))

		v, ok := balance.Value()
		require.True(t, ok)
		assert.Equal(t, int64(k*10), v)
		assert.Equal(t, uint64(k), balance.Get().Seq)
	}
}

func TestLatestMalformedRetainsPrevious(t *testing.T) {
	d := feedclient.NewDispatcher()
	balance := New[int64](d, cfd.EventBalance)
	defer balance.Close()

	t.Run("before any value stays absent", func(t *testing.T) {
		deliver(d, cfd.EventBalance, `"not a number"`)

		s := balance.Get()
		assert.Equal(t, StateAbsent, s.State)
		assert.ErrorIs(t, s.DecodeErr, ErrDecode)
	})

	t.Run("after a value keeps it", func(t *testing.T) {
		deliver(d, cfd.EventBalance, `100`)
		deliver(d, cfd.EventBalance, `{broken`)

		s := balance.Get()
		assert.Equal(t, StatePresent, s.State)
		assert.Equal(t, int64(100), s.Value)
		assert.Equal(t, uint64(1), s.Seq)

		var decodeErr *DecodeError
		require.ErrorAs(t, s.DecodeErr, &decodeErr)
		assert.Equal(t, cfd.EventBalance, decodeErr.Event)
		assert.Equal(t, `{broken`, string(decodeErr.Data))
	})

	t.Run("next valid value clears the error", func(t *testing.T) {
		deliver(d, cfd.EventBalance, `150`)

		s := balance.Get()
		assert.Equal(t, int64(150), s.Value)
		assert.NoError(t, s.DecodeErr)
	})

	stats := balance.Stats()
	assert.Equal(t, int64(4), stats.Received)
	assert.Equal(t, int64(2), stats.Applied)
	assert.Equal(t, int64(2), stats.Discarded)
}

func TestLatestCustomDecoder(t *testing.T) {
	d := feedclient.NewDispatcher()
	boom := errors.New("boom")

	p := New[string](d, "quote", WithDecoder(func(data []byte) (string, error) {
		if len(data) == 0 {
			return "", boom
		}
		return string(data), nil
	}))
	defer p.Close()

	deliver(d, "quote", "raw text")
	deliver(d, "quote", "")

	s := p.Get()
	assert.Equal(t, "raw text", s.Value)
	assert.ErrorIs(t, s.DecodeErr, boom)
}

func TestLatestIndependentNames(t *testing.T) {
	d := feedclient.NewDispatcher()
	balance := New[int64](d, cfd.EventBalance)
	defer balance.Close()
	offer := New[*cfd.Offer](d, cfd.EventOffer)
	defer offer.Close()

	deliver(d, cfd.EventBalance, `1`)
	assert.False(t, offer.Get().Present())

	deliver(d, cfd.EventOffer, `{"id":"o1"}`)
	deliver(d, cfd.EventBalance, `{broken`)

	assert.Equal(t, int64(1), balance.Get().Seq)
	assert.NoError(t, offer.Get().DecodeErr)
	assert.Equal(t, "o1", offer.Get().Value.ID)
}

func TestLatestNoUpdateAfterClose(t *testing.T) {
	d := feedclient.NewDispatcher()
	balance := New[int64](d, cfd.EventBalance)

	deliver(d, cfd.EventBalance, `100`)
	balance.Close()
	balance.Close()

	assert.Equal(t, 0, d.ListenerCount(cfd.EventBalance))
	assert.Equal(t, 0, d.GetStats().ActiveWatchers)

	before := balance.Get()
	deliver(d, cfd.EventBalance, `200`)
	d.SetStatus(feed.Status{State: feed.StateReconnecting})

	after := balance.Get()
	assert.Equal(t, before, after)
	assert.Equal(t, StateUnbound, after.State)
	assert.Equal(t, int64(100), after.Value)
	assert.False(t, after.Failed())
	assert.Equal(t, int64(1), balance.Stats().Received)

	_, open := <-balance.Changes()
	if open {
		_, open = <-balance.Changes()
	}
	assert.False(t, open)
}

func TestLatestBalanceOfferScenario(t *testing.T) {
	d := feedclient.NewDispatcher()
	balance := New[decimal.Decimal](d, cfd.EventBalance)
	defer balance.Close()
	offer := New[*cfd.Offer](d, cfd.EventOffer)
	defer offer.Close()

	var balances []string
	balance.Subscribe(func(s Snapshot[decimal.Decimal]) {
		balances = append(balances, s.Value.String())
	})
	offerChanges := 0
	offer.Subscribe(func(Snapshot[*cfd.Offer]) { offerChanges++ })

	deliver(d, cfd.EventBalance, `100`)
	deliver(d, cfd.EventOffer, `{"id":"o1","price":10000,"leverage":2}`)
	deliver(d, cfd.EventBalance, `150`)

	assert.Equal(t, []string{"100", "150"}, balances)
	assert.Equal(t, 1, offerChanges)

	o, ok := offer.Value()
	require.True(t, ok)
	assert.Equal(t, "o1", o.ID)
	assert.True(t, o.Price.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, 2, o.Leverage)
}

func TestLatestLinkStates(t *testing.T) {
	d := feedclient.NewDispatcher()
	balance := New[int64](d, cfd.EventBalance)
	defer balance.Close()

	d.SetStatus(feed.Status{State: feed.StateOpen})
	assert.True(t, balance.Get().Pending())

	deliver(d, cfd.EventBalance, `5`)
	assert.False(t, balance.Get().Stale())

	d.SetStatus(feed.Status{State: feed.StateReconnecting, Attempt: 1, Err: errors.New("eof")})
	s := balance.Get()
	assert.True(t, s.Stale())
	assert.False(t, s.Failed())
	assert.Equal(t, int64(5), s.Value)

	d.SetStatus(feed.Status{State: feed.StateClosed, Err: feed.ErrReconnectExhausted})
	s = balance.Get()
	assert.True(t, s.Failed())
	assert.True(t, s.Bound())
	assert.Equal(t, StatePresent, s.State)
	assert.ErrorIs(t, s.Link.Err, feed.ErrReconnectExhausted)
}

func TestLatestFailedWhileAbsentIsNotPending(t *testing.T) {
	d := feedclient.NewDispatcher()
	d.SetStatus(feed.Status{State: feed.StateClosed, Err: feed.ErrReconnectExhausted})

	// Bound to an already dead connection
	offer := New[*cfd.Offer](d, cfd.EventOffer)
	defer offer.Close()

	s := offer.Get()
	assert.Equal(t, StateAbsent, s.State)
	assert.False(t, s.Pending())
	assert.True(t, s.Failed())
}

// lateCloseConn closes the connection while the watcher is being registered
type lateCloseConn struct {
	*feedclient.Dispatcher
}

func (c lateCloseConn) Watch(fn func(feed.Status)) func() {
	c.SetStatus(feed.Status{State: feed.StateClosed, Err: feed.ErrReconnectExhausted})
	return c.Dispatcher.Watch(fn)
}

func TestLatestStatusChangeDuringBind(t *testing.T) {
	d := feedclient.NewDispatcher()
	d.SetStatus(feed.Status{State: feed.StateOpen})

	offer := New[*cfd.Offer](lateCloseConn{d}, cfd.EventOffer)
	defer offer.Close()

	s := offer.Get()
	assert.Equal(t, feed.StateClosed, s.Link.State)
	assert.ErrorIs(t, s.Link.Err, feed.ErrReconnectExhausted)
	assert.False(t, s.Pending())
	assert.True(t, s.Failed())

	t.Run("unchanged status does not signal", func(t *testing.T) {
		d := feedclient.NewDispatcher()
		d.SetStatus(feed.Status{State: feed.StateOpen})

		balance := New[int64](d, cfd.EventBalance)
		defer balance.Close()

		select {
		case <-balance.Changes():
			t.Fatal("unexpected change signal")
		default:
		}
	})
}

func TestLatestSubscribe(t *testing.T) {
	d := feedclient.NewDispatcher()
	balance := New[int64](d, cfd.EventBalance)

	var seen []State
	cancel := balance.Subscribe(func(s Snapshot[int64]) { seen = append(seen, s.State) })

	deliver(d, cfd.EventBalance, `1`)
	d.SetStatus(feed.Status{State: feed.StateOpen})
	cancel()
	cancel()
	deliver(d, cfd.EventBalance, `2`)

	assert.Equal(t, []State{StatePresent, StatePresent}, seen)

	var closing []State
	balance.Subscribe(func(s Snapshot[int64]) { closing = append(closing, s.State) })
	balance.Close()
	assert.Equal(t, []State{StateUnbound}, closing)
}

func TestLatestUnsubscribeInsideCallback(t *testing.T) {
	d := feedclient.NewDispatcher()
	balance := New[int64](d, cfd.EventBalance)

	calls := 0
	balance.Subscribe(func(s Snapshot[int64]) {
		calls++
		if s.Value == 1 {
			balance.Close()
		}
	})

	deliver(d, cfd.EventBalance, `1`)
	deliver(d, cfd.EventBalance, `2`)

	// The value change and the close
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(1), balance.Get().Value)
	assert.Equal(t, StateUnbound, balance.Get().State)
}

func TestLatestChangesCoalesce(t *testing.T) {
	d := feedclient.NewDispatcher()
	balance := New[int64](d, cfd.EventBalance)
	defer balance.Close()

	deliver(d, cfd.EventBalance, `1`)
	deliver(d, cfd.EventBalance, `2`)
	deliver(d, cfd.EventBalance, `3`)

	<-balance.Changes()
	select {
	case <-balance.Changes():
		t.Fatal("signals should coalesce")
	default:
	}
	assert.Equal(t, int64(3), balance.Get().Value)
}

func TestLatestConcurrentReaders(t *testing.T) {
	d := feedclient.NewDispatcher()
	quote := New[cfd.Quote](d, cfd.EventQuote)
	defer quote.Close()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := quote.Get()
				// Bid and ask always come from the same occurrence
				if s.Present() {
					assert.True(t, s.Value.Ask.Sub(s.Value.Bid).Equal(decimal.NewFromInt(10)))
				}
			}
		}()
	}

	for k := 0; k < 200; k++ {
		bid := 40000 + k
		deliver(d, cfd.EventQuote, `{"bid":`+strconv.Itoa(bid)+`,"ask":`+strconv.Itoa(bid+10)+`}`)
	}

	close(stop)
	wg.Wait()
	assert.Equal(t, uint64(200), quote.Get().Seq)
}
