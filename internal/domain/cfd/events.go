package cfd

// Event names published on the daemon feed
const (
	EventCfds             = "cfds"
	EventOffer            = "offer"
	EventBalance          = "balance"
	EventWallet           = "wallet"
	EventMakerStatus      = "maker_status"
	EventNextFundingEvent = "next_funding_event"
	EventQuote            = "quote"
)

// TakerEvents lists the channels a taker client projects
func TakerEvents() []string {
	return []string{
		EventCfds,
		EventOffer,
		EventBalance,
		EventWallet,
		EventMakerStatus,
		EventNextFundingEvent,
		EventQuote,
	}
}

// MakerEvents lists the channels a maker client projects
func MakerEvents() []string {
	return []string{
		EventOffer,
		EventCfds,
		EventWallet,
		EventQuote,
	}
}
