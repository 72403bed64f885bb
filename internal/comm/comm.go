package comm

import "time"

// Event types published on the card subjects.
const (
	EventCardIssued  = "card.issued"
	EventCardRevoked = "card.revoked"
)

// CardEvent announces a card lifecycle change to the other services
// (notification, analytics). The full record stays in the store, events
// carry identifiers only.
type CardEvent struct {
	EventId    string    `json:"event_id"`
	Type       string    `json:"type"`
	CardId     string    `json:"card_id"`
	Wallet     string    `json:"wallet,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BroadcastMessage is an admin-authored message for a set of wallets. The
// notification service owns delivery, this is just the handoff payload.
type BroadcastMessage struct {
	Wallets     []string  `json:"wallets"`
	Message     string    `json:"message"`
	RequestedAt time.Time `json:"requested_at"`
}
