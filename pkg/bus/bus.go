// Package bus is the in-process message bus that carries child output lines.
package bus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	gochannel "github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
)

const TopicLines = "cadence.lines"

// Line is one stdout line of one child process.
type Line struct {
	Process int    `json:"process"`
	PID     int    `json:"pid"`
	Text    string `json:"text"`
}

type Bus struct {
	Router     *message.Router
	Publisher  message.Publisher
	Subscriber message.Subscriber

	runOnce sync.Once
}

func NewInMemoryBus() (*Bus, error) {
	logger := watermill.NopLogger{}
	// Publishing blocks until the handler acked, which keeps the lines of one
	// publisher in order.
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            1024,
		BlockPublishUntilSubscriberAck: true,
	}, logger)

	r, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "new watermill router")
	}
	return &Bus{
		Router:     r,
		Publisher:  pubsub,
		Subscriber: pubsub,
	}, nil
}

func (b *Bus) AddHandler(name, topic string, handler func(*message.Message) error) {
	b.Router.AddConsumerHandler(name, topic, b.Subscriber, handler)
}

// HandleLines registers fn for every Line published on TopicLines.
func (b *Bus) HandleLines(name string, fn func(Line) error) {
	b.AddHandler(name, TopicLines, func(msg *message.Message) error {
		var l Line
		if err := json.Unmarshal(msg.Payload, &l); err != nil {
			// Malformed payloads cannot become valid on redelivery.
			return nil
		}
		return fn(l)
	})
}

func (b *Bus) PublishLine(l Line) error {
	payload, err := json.Marshal(l)
	if err != nil {
		return errors.Wrap(err, "marshal line")
	}
	if err := b.Publisher.Publish(TopicLines, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		return errors.Wrap(err, "publish line")
	}
	return nil
}

// Running is closed once handlers are subscribed.
func (b *Bus) Running() chan struct{} {
	return b.Router.Running()
}

func (b *Bus) Run(ctx context.Context) error {
	var runErr error
	b.runOnce.Do(func() {
		go func() {
			<-ctx.Done()
			_ = b.Router.Close()
		}()
		runErr = b.Router.Run(ctx)
	})
	return runErr
}

func (b *Bus) Close() error {
	rerr := b.Router.Close()
	perr := b.Publisher.Close()
	if rerr != nil {
		return errors.Wrap(rerr, "close router")
	}
	if perr != nil {
		return errors.Wrap(perr, "close publisher")
	}
	return nil
}
