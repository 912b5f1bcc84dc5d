package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/meaze0507/itchysats/internal/domain/cfd"
	"github.com/meaze0507/itchysats/internal/service/maker"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	offerPriceShort   string
	offerPriceLong    string
	offerMin          string
	offerMax          string
	offerFundingLong  string
	offerFundingShort string
	offerTxFeeRate    string
	offerOpeningFee   string
	offerConfirm      time.Duration
)

// offerCmd publishes new offer parameters as the maker
var offerCmd = &cobra.Command{
	Use:   "offer",
	Short: "Publish new offer parameters",
	Long: `Publish new offer parameters to a maker daemon and wait until the
offer shows up on the push feed.

Examples:
    go run ./cmd/cfdctl offer --price-short 42000 --min 100 --max 10000
    go run ./cmd/cfdctl offer --price-long 41000 --confirm 0`,
	RunE: runOffer,
}

func init() {
	offerCmd.Flags().StringVar(&offerPriceShort, "price-short", "", "price for a maker short position")
	offerCmd.Flags().StringVar(&offerPriceLong, "price-long", "", "price for a maker long position")
	offerCmd.Flags().StringVar(&offerMin, "min", "100", "minimum quantity in USD")
	offerCmd.Flags().StringVar(&offerMax, "max", "10000", "maximum quantity in USD")
	offerCmd.Flags().StringVar(&offerFundingLong, "funding-long", "0.0005", "daily funding rate for long positions")
	offerCmd.Flags().StringVar(&offerFundingShort, "funding-short", "0.0005", "daily funding rate for short positions")
	offerCmd.Flags().StringVar(&offerTxFeeRate, "tx-fee-rate", "1", "transaction fee rate in sat/vbyte")
	offerCmd.Flags().StringVar(&offerOpeningFee, "opening-fee", "", "opening fee in sat")
	offerCmd.Flags().DurationVar(&offerConfirm, "confirm", 10*time.Second, "wait for the offer on the feed, 0 to skip")
}

func runOffer(cmd *cobra.Command, args []string) error {
	params, err := offerParams()
	if err != nil {
		return err
	}

	conn, err := newConnection()
	if err != nil {
		return err
	}
	view := maker.NewView(conn, newDaemonClient())
	defer view.Close()

	ctx := cmd.Context()
	if offerConfirm > 0 {
		if err := conn.Start(ctx); err != nil {
			return err
		}
		defer conn.Close()
	}

	before, _ := view.Offer.Value()

	if err := view.PublishOffer(ctx, params); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Offer parameters published")

	if offerConfirm <= 0 {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, offerConfirm)
	defer cancel()

	for {
		offer, _ := view.Offer.Value()
		if offer != nil && (before == nil || offer.ID != before.ID) {
			fmt.Fprintf(cmd.OutOrStdout(), "Offer %s live: %s %s @ %s [%s, %s]\n",
				offer.ID, offer.Position, offer.TradingPair, offer.Price,
				offer.MinQuantity, offer.MaxQuantity)
			return nil
		}

		select {
		case <-waitCtx.Done():
			return fmt.Errorf("offer not confirmed on feed: %w", waitCtx.Err())
		case <-view.Offer.Changes():
		}
	}
}

func offerParams() (cfd.OfferParams, error) {
	var params cfd.OfferParams
	var err error

	if params.PriceShort, err = optionalDecimal("price-short", offerPriceShort); err != nil {
		return params, err
	}
	if params.PriceLong, err = optionalDecimal("price-long", offerPriceLong); err != nil {
		return params, err
	}
	if params.OpeningFee, err = optionalDecimal("opening-fee", offerOpeningFee); err != nil {
		return params, err
	}

	for _, f := range []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"min", offerMin, &params.MinQuantity},
		{"max", offerMax, &params.MaxQuantity},
		{"funding-long", offerFundingLong, &params.DailyFundingRateLong},
		{"funding-short", offerFundingShort, &params.DailyFundingRateShort},
		{"tx-fee-rate", offerTxFeeRate, &params.TxFeeRate},
	} {
		d, err := decimal.NewFromString(f.value)
		if err != nil {
			return params, fmt.Errorf("invalid --%s %q: %w", f.name, f.value, err)
		}
		*f.dst = d
	}

	return params, nil
}

func optionalDecimal(name, value string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: %w", name, value, err)
	}
	return &d, nil
}
