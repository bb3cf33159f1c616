package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const publishTimeout = 5 * time.Second

// Dispatcher queues events and publishes them from one background goroutine.
// When the queue is full new events are dropped.
type Dispatcher struct {
	pub   Publisher
	queue chan Event
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a dispatcher with a queue of size buffer.
func NewDispatcher(pub Publisher, buffer int) *Dispatcher {
	d := &Dispatcher{
		pub:   pub,
		queue: make(chan Event, buffer),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Emit queues e without blocking.
func (d *Dispatcher) Emit(e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- e:
	default:
		log.WithField("event", e.Type).Warn("event queue full, dropping event")
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for e := range d.queue {
		d.publish(e)
	}
}

func (d *Dispatcher) publish(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.WithError(err).WithField("event", e.Type).Error("failed to encode event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := d.pub.Publish(ctx, e.Type, payload); err != nil {
		log.WithError(err).WithField("event", e.Type).Warn("failed to publish event")
	}
}

// Close drains the queue and closes the publisher.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	return d.pub.Close()
}
