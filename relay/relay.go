// Package relay keeps several server instances convergent on one board.
// Every locally applied mutation result is published to a Redis channel;
// peer instances apply it to their own store and rebroadcast it to their
// local sessions. Results carry full post-mutation state, so peers converge
// by upsert/remove without re-running the mutation.
package relay

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Event is the wire format on the relay channel.
type Event struct {
	Origin string                 `json:"origin"`
	Event  string                 `json:"event"`
	Data   sonic.NoCopyRawMessage `json:"data"`
}

// Applier applies mutation results published by peer instances.
type Applier interface {
	ApplyRemote(event string, data []byte)
}

const publishTimeout = 5 * time.Second

// Publisher forwards mutation results to the relay channel.
type Publisher struct {
	rc       *redis.Client
	channel  string
	instance string
	logger   *log.Logger
}

// NewPublisher returns a publisher tagging every event with instanceID so
// subscribers can skip their own publications.
func NewPublisher(rc *redis.Client, channel, instanceID string, logger *log.Logger) *Publisher {
	return &Publisher{rc: rc, channel: channel, instance: instanceID, logger: logger}
}

// Publish sends one mutation result. Failures are logged, not returned:
// local sessions already received the broadcast and a relay outage must not
// affect them.
func (p *Publisher) Publish(event string, data []byte) {
	payload, err := sonic.Marshal(Event{Origin: p.instance, Event: event, Data: data})
	if err != nil {
		p.logger.Errorf("relay: marshal %s: %v", event, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.rc.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Errorf("relay: publish %s: %v", event, err)
	}
}

// Subscribe listens for peer mutation results and applies them until ctx is
// canceled, reconnecting when the pubsub channel drops.
func Subscribe(ctx context.Context, logger *log.Logger, rc *redis.Client, channel, instanceID string, applier Applier) {
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var ev Event
				if err := sonic.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Errorf("relay: unable to parse event: %v", err)
					continue
				}
				if ev.Origin == instanceID {
					continue
				}
				applier.ApplyRemote(ev.Event, ev.Data)
			}
		}
		sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("relay: pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}
