package mq

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"ShareGate/config"
	"ShareGate/internal/event"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeEvents = "sharelink.events.exchange"
	QueueEvents    = "sharelink.events.queue"
	RoutingEvents  = "sharelink.events"
)

// Client wraps an AMQP connection and channel for event publishing.
type Client struct {
	Conn      *amqp.Connection
	Channel   *amqp.Channel
	publishMu sync.Mutex
}

var publisherMu sync.Mutex
var publisher *Client

func Dial() (*Client, error) {
	conn, err := amqp.Dial(config.AppConfig.RabbitMQURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Client{Conn: conn, Channel: ch}, nil
}

// GetPublisher returns a shared publisher, reconnecting when the previous
// connection went away.
func GetPublisher() (*Client, error) {
	publisherMu.Lock()
	defer publisherMu.Unlock()
	if publisher != nil {
		if !publisher.Conn.IsClosed() && !publisher.Channel.IsClosed() {
			return publisher, nil
		}
		publisher.Close()
		publisher = nil
	}
	client, err := Dial()
	if err != nil {
		return nil, err
	}
	if err := client.DeclareTopology(); err != nil {
		client.Close()
		return nil, err
	}
	publisher = client
	return publisher, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.Channel != nil {
		_ = c.Channel.Close()
	}
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

func (c *Client) DeclareTopology() error {
	if err := c.Channel.ExchangeDeclare(
		ExchangeEvents,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return err
	}
	if _, err := c.Channel.QueueDeclare(
		QueueEvents,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return err
	}
	return c.Channel.QueueBind(
		QueueEvents,
		RoutingEvents+".#",
		ExchangeEvents,
		false,
		nil,
	)
}

func (c *Client) publish(ctx context.Context, key string, body []byte) error {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}
	return c.Channel.PublishWithContext(
		ctx,
		ExchangeEvents,
		key,
		false,
		false,
		msg,
	)
}

type eventMessage struct {
	Event      string      `json:"event"`
	Token      string      `json:"token"`
	Clicks     int         `json:"clicks"`
	Resource   interface{} `json:"resource,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// EventSink publishes lifecycle events to the events exchange. Publish
// failures are logged and dropped; event delivery is best effort.
type EventSink struct{}

func (EventSink) Notify(e event.Event) {
	client, err := GetPublisher()
	if err != nil {
		log.Printf("amqp publisher unavailable: %v", err)
		return
	}
	msg := eventMessage{
		Event:      string(e.Kind),
		OccurredAt: e.At,
	}
	if e.Link != nil {
		msg.Token = e.Link.Token
		msg.Clicks = e.Link.ClickCount
		if e.Link.Resource.Resource != nil {
			msg.Resource = e.Link.Resource.Wire()
		}
	}
	body, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal event failed: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.publish(ctx, string(e.Kind), body); err != nil {
		log.Printf("publish event failed: %v", err)
	}
}
