package display

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kozaktomas/memory-anchor/internal/constants"
	"github.com/kozaktomas/memory-anchor/internal/logger"
	"github.com/kozaktomas/memory-anchor/internal/scanner"
)

// RedisPublisher publishes events as JSON on a Redis channel. Publishing runs
// on its own goroutine so the scanner never waits on the network.
type RedisPublisher struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string

	queue chan Event
	done  chan struct{}
	once  sync.Once
}

// NewRedisPublisher starts the publishing goroutine. Close stops it.
func NewRedisPublisher(rdb *goredis.Client, channel string, log *logger.Logger) (*RedisPublisher, error) {
	if rdb == nil {
		return nil, errors.New("redis client required")
	}
	if channel == "" {
		return nil, errors.New("redis channel required")
	}
	p := &RedisPublisher{
		log:     logger.OrNop(log).With("service", "RedisPublisher"),
		rdb:     rdb,
		channel: channel,
		queue:   make(chan Event, constants.EventChannelBuffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p, nil
}

func (p *RedisPublisher) Show(t scanner.Transition) {
	p.enqueue(transitionEvent(t))
}

func (p *RedisPublisher) SetDegraded(degraded bool, failures int) {
	p.enqueue(degradedEvent(degraded, failures))
}

func (p *RedisPublisher) enqueue(ev Event) {
	select {
	case <-p.done:
	case p.queue <- ev:
	default:
		p.log.Warn("redis publish queue full, dropping event", "type", ev.Type)
	}
}

func (p *RedisPublisher) run() {
	for {
		select {
		case <-p.done:
			return
		case ev := <-p.queue:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := p.Publish(ctx, ev); err != nil {
				p.log.Warn("redis publish failed", "error", err)
			}
			cancel()
		}
	}
}

// Publish sends one event synchronously.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

// Close stops the publishing goroutine. Queued events are dropped.
func (p *RedisPublisher) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

// Subscribe forwards events from channel to onEvent until ctx ends.
func Subscribe(ctx context.Context, rdb *goredis.Client, channel string, log *logger.Logger, onEvent func(Event)) error {
	if onEvent == nil {
		return errors.New("onEvent callback required")
	}
	log = logger.OrNop(log)

	sub := rdb.Subscribe(ctx, channel)
	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok || m == nil {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				log.Warn("bad redis event payload", "error", err)
				continue
			}
			onEvent(ev)
		}
	}
}
