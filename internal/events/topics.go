package events

// Topic constants for domain events emitted by the quote workflow.
const (
	TopicBookingCreated = "booking.created"
	TopicQuotePriced    = "quote.priced"
	TopicQuoteSaved     = "quote.saved"
)
