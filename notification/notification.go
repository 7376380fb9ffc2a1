// Package notification builds ActivityStreams 2.0 event representations for
// resource mutations and fans them out over AMQP, per spec.md §4.9. Emission
// is best-effort: a publish failure is logged by the caller and never turns
// a successful mutation into a failed request.
package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"trellis.io/ldp/queue"
)

// EventType is an ActivityStreams activity type name.
type EventType string

const (
	EventCreate EventType = "Create"
	EventUpdate EventType = "Update"
	EventDelete EventType = "Delete"
)

// Event is the JSON shape published to the notification exchange: an
// ActivityStreams 2.0 activity with a Trellis-specific object summary.
type Event struct {
	Context          string    `json:"@context"`
	ID               string    `json:"id"`
	Type             EventType `json:"type"`
	Actor            string    `json:"actor,omitempty"`
	Object           string    `json:"object"`
	InteractionModel string    `json:"-"`
	Created          time.Time `json:"published"`
}

// activityObject is the AS2 object embedded under "object" once Marshal is
// called; kept separate so Event's public fields stay flat and easy to
// construct from the pipeline.
type activityObject struct {
	ID   string   `json:"id"`
	Type []string `json:"type"`
}

// MarshalJSON renders Event as a full ActivityStreams 2.0 activity.
func (e Event) MarshalJSON() ([]byte, error) {
	types := []string{"Resource"}
	switch e.InteractionModel {
	case "http://www.w3.org/ns/ldp#BasicContainer",
		"http://www.w3.org/ns/ldp#DirectContainer",
		"http://www.w3.org/ns/ldp#IndirectContainer":
		types = append(types, "Container")
	case "http://www.w3.org/ns/ldp#NonRDFSource":
		types = append(types, "NonRDFSource")
	default:
		types = append(types, "RDFSource")
	}
	out := struct {
		Context string         `json:"@context"`
		ID      string         `json:"id"`
		Type    EventType      `json:"type"`
		Actor   string         `json:"actor,omitempty"`
		Object  activityObject `json:"object"`
		Created time.Time      `json:"published"`
	}{
		Context: "https://www.w3.org/ns/activitystreams",
		ID:      e.ID,
		Type:    e.Type,
		Actor:   e.Actor,
		Object:  activityObject{ID: e.Object, Type: types},
		Created: e.Created,
	}
	return json.Marshal(out)
}

// Emitter publishes Events to a configured AMQP exchange. A nil Emitter is
// never constructed by callers; the pipeline instead leaves its Notifier
// field nil when notifications are disabled, which Pipeline.afterMutation
// already checks for.
type Emitter struct {
	Exchange string
	RouteKey string
	dial     queue.AMQPDialer
	url      string
}

// NewEmitter records the dialer and broker settings without connecting;
// each Emit call dials the broker, opens a channel, publishes, and closes
// them again.
func NewEmitter(dialer queue.AMQPDialer, url, exchange, routeKey string) (*Emitter, error) {
	return &Emitter{Exchange: exchange, RouteKey: routeKey, dial: dialer, url: url}, nil
}

// Emit publishes a single Event, stamping it with a fresh activity id.
func (e *Emitter) Emit(ctx context.Context, evt Event) error {
	evt.ID = "urn:uuid:" + uuid.New().String()
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	conn, err := e.dial.Dial(e.url)
	if err != nil {
		return err
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	return ch.Publish(e.Exchange, e.RouteKey, false, false, amqp.Publishing{
		ContentType: "application/ld+json",
		Timestamp:   evt.Created,
		Body:        body,
	})
}
