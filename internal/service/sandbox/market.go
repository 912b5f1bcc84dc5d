package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/meaze0507/itchysats/internal/domain/cfd"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// fundingInterval is the period between funding events
const fundingInterval = 8 * time.Hour

// Market publishes a random walk quote, the maker status and the funding
// countdown on the hub at a fixed interval.
type Market struct {
	hub      *Hub
	interval time.Duration
	spread   decimal.Decimal
	rng      *rand.Rand

	mid decimal.Decimal
}

// NewMarket creates a market starting at mid
func NewMarket(hub *Hub, mid decimal.Decimal, interval time.Duration) *Market {
	if interval <= 0 {
		interval = time.Second
	}
	return &Market{
		hub:      hub,
		interval: interval,
		spread:   decimal.NewFromInt(10),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		mid:      mid,
	}
}

// Run publishes until ctx is done
func (m *Market) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", m.interval).
		Str("mid", m.mid.String()).
		Msg("Sandbox market started")

	m.hub.Publish(cfd.EventMakerStatus, cfd.MakerStatus{Online: true})

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.Tick(time.Now())

		select {
		case <-ctx.Done():
			m.hub.Publish(cfd.EventMakerStatus, cfd.MakerStatus{Online: false})
			log.Info().Msg("Sandbox market stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick moves the price once and publishes quote and funding countdown
func (m *Market) Tick(now time.Time) {
	step := decimal.NewFromInt(int64(m.rng.Intn(21) - 10))
	m.mid = m.mid.Add(step)

	half := m.spread.Div(decimal.NewFromInt(2))
	m.hub.Publish(cfd.EventQuote, cfd.Quote{
		Bid:           m.mid.Sub(half),
		Ask:           m.mid.Add(half),
		LastUpdatedAt: now.Unix(),
	})
	m.hub.Publish(cfd.EventNextFundingEvent, NextFunding(now))
}

// NextFunding describes the time left until the next funding event
func NextFunding(now time.Time) string {
	next := now.Truncate(fundingInterval).Add(fundingInterval)
	left := next.Sub(now)

	hours := int(left / time.Hour)
	minutes := int(left%time.Hour) / int(time.Minute)
	if hours == 0 {
		return fmt.Sprintf("in %d minutes", minutes)
	}
	return fmt.Sprintf("in %d hours %d minutes", hours, minutes)
}
