package broker

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/kaprika-press/card-services/internal/comm"
)

const (
	subjectIssued    = "card.issued"
	subjectRevoked   = "card.revoked"
	subjectBroadcast = "notify.broadcast"
)

// Broker publishes card lifecycle events and admin broadcasts over NATS.
// Publishing is best effort, failures are logged and never surfaced.
type Broker struct {
	Conn *nats.Conn
}

func NewBroker(nc *nats.Conn) *Broker {
	return &Broker{Conn: nc}
}

func (b *Broker) publish(subject string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("could not marshal %s payload: %s", subject, err)
		return
	}
	if err := b.Conn.Publish(subject, raw); err != nil {
		log.Errorf("could not publish to %s: %s", subject, err)
	}
}

func (b *Broker) cardEvent(eventType, cardId, wallet string) comm.CardEvent {
	return comm.CardEvent{
		EventId:    uuid.NewString(),
		Type:       eventType,
		CardId:     cardId,
		Wallet:     wallet,
		OccurredAt: time.Now().UTC(),
	}
}

// PublishCardIssued announces a freshly persisted card.
func (b *Broker) PublishCardIssued(cardId, wallet string) {
	b.publish(subjectIssued, b.cardEvent(comm.EventCardIssued, cardId, wallet))
}

// PublishCardRevoked announces a local revocation.
func (b *Broker) PublishCardRevoked(cardId, wallet string) {
	b.publish(subjectRevoked, b.cardEvent(comm.EventCardRevoked, cardId, wallet))
}

// PublishBroadcast hands an admin message to the notification service.
func (b *Broker) PublishBroadcast(wallets []string, message string) {
	b.publish(subjectBroadcast, comm.BroadcastMessage{
		Wallets:     wallets,
		Message:     message,
		RequestedAt: time.Now().UTC(),
	})
}
