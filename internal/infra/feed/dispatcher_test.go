package feed

import (
	"testing"

	"github.com/meaze0507/itchysats/internal/domain/feed"
	"github.com/stretchr/testify/assert"
)

func TestDispatcherRoutesByName(t *testing.T) {
	d := NewDispatcher()

	var balances, offers []string
	d.Listen("balance", func(m feed.Message) { balances = append(balances, string(m.Data)) })
	d.Listen("offer", func(m feed.Message) { offers = append(offers, string(m.Data)) })

	d.Deliver(feed.Message{Name: "balance", Data: []byte("1")})
	d.Deliver(feed.Message{Name: "offer", Data: []byte("a")})
	d.Deliver(feed.Message{Name: "balance", Data: []byte("2")})
	d.Deliver(feed.Message{Name: "wallet", Data: []byte("x")})

	assert.Equal(t, []string{"1", "2"}, balances)
	assert.Equal(t, []string{"a"}, offers)

	stats := d.GetStats()
	assert.Equal(t, int64(3), stats.TotalDelivered)
	assert.Equal(t, int64(1), stats.TotalUnrouted)
	assert.Equal(t, 2, stats.ActiveEvents)
}

func TestDispatcherStampsReceivedAt(t *testing.T) {
	d := NewDispatcher()

	var got feed.Message
	d.Listen("balance", func(m feed.Message) { got = m })
	d.Deliver(feed.Message{Name: "balance"})

	assert.False(t, got.ReceivedAt.IsZero())
}

func TestDispatcherRelease(t *testing.T) {
	t.Run("no delivery after release", func(t *testing.T) {
		d := NewDispatcher()

		calls := 0
		release := d.Listen("balance", func(feed.Message) { calls++ })
		d.Deliver(feed.Message{Name: "balance"})
		release()
		d.Deliver(feed.Message{Name: "balance"})

		assert.Equal(t, 1, calls)
		assert.Equal(t, 0, d.ListenerCount("balance"))
	})

	t.Run("release is idempotent", func(t *testing.T) {
		d := NewDispatcher()

		release := d.Listen("balance", func(feed.Message) {})
		other := d.Listen("balance", func(feed.Message) {})
		release()
		release()

		assert.Equal(t, 1, d.ListenerCount("balance"))
		other()
		assert.Equal(t, 0, d.ListenerCount("balance"))
	})

	t.Run("release of a sibling inside a callback", func(t *testing.T) {
		d := NewDispatcher()

		var releaseA, releaseB func()
		calls := 0
		releaseA = d.Listen("balance", func(feed.Message) {
			calls++
			releaseB()
		})
		releaseB = d.Listen("balance", func(feed.Message) {
			calls++
			releaseA()
		})

		// Whichever runs first releases the other before it is reached
		d.Deliver(feed.Message{Name: "balance"})
		assert.Equal(t, 1, calls)
	})
}

func TestDispatcherStatus(t *testing.T) {
	d := NewDispatcher()
	assert.Equal(t, feed.StateConnecting, d.Status().State)

	var seen []feed.State
	release := d.Watch(func(s feed.Status) { seen = append(seen, s.State) })

	d.SetStatus(feed.Status{State: feed.StateOpen})
	d.SetStatus(feed.Status{State: feed.StateReconnecting, Attempt: 1})
	d.SetStatus(feed.Status{State: feed.StateClosed})
	d.SetStatus(feed.Status{State: feed.StateOpen}) // ignored once closed

	assert.Equal(t, []feed.State{feed.StateOpen, feed.StateReconnecting, feed.StateClosed}, seen)
	assert.Equal(t, feed.StateClosed, d.Status().State)
	assert.False(t, d.Status().Since.IsZero())

	release()
	assert.Equal(t, 0, d.GetStats().ActiveWatchers)
}
