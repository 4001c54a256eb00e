package event

import (
	"log"
	"time"

	"ShareGate/model"
)

// Kind names a share-link lifecycle transition.
type Kind string

const (
	KindCreated  Kind = "sharelink.created"
	KindAccessed Kind = "sharelink.accessed"
	KindRevoked  Kind = "sharelink.revoked"
	KindExpired  Kind = "sharelink.expired"
)

// Event is a lifecycle notification handed to the configured sinks.
type Event struct {
	Kind Kind
	Link *model.ShareLink
	At   time.Time
}

// Sink receives lifecycle events. Sinks must not block request handling for
// long; slow transports should buffer internally.
type Sink interface {
	Notify(e Event)
}

// Sinks fans an event out to every configured sink.
type Sinks []Sink

func (s Sinks) Emit(kind Kind, link *model.ShareLink) {
	e := Event{Kind: kind, Link: link, At: time.Now()}
	for _, sink := range s {
		sink.Notify(e)
	}
}

// LogSink writes lifecycle events to the process log.
type LogSink struct{}

func (LogSink) Notify(e Event) {
	if e.Link == nil {
		log.Printf("[event] %s", e.Kind)
		return
	}
	switch e.Kind {
	case KindCreated:
		log.Printf("[event] %s token=%s has_password=%v expires_at=%v max_clicks=%v",
			e.Kind, e.Link.Token, e.Link.PasswordHash != "", tsOrNil(e.Link.ExpiresAt), intOrNil(e.Link.MaxClicks))
	case KindAccessed:
		log.Printf("[event] %s token=%s clicks=%d last_ip=%s",
			e.Kind, e.Link.Token, e.Link.ClickCount, e.Link.LastIP)
	default:
		log.Printf("[event] %s token=%s", e.Kind, e.Link.Token)
	}
}

func tsOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func intOrNil(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
