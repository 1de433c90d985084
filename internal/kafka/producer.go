package kafka

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer buffers messages in memory and hands them to an async writer.
// Each message names its own topic, so one Producer serves every order topic.
type Producer struct {
	w     *kafka.Writer
	inbox chan kafka.Message
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, buf int) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil && len(msgs) > 0 {
				log.Printf("kafka write failed: %d message(s) to %s: %v", len(msgs), msgs[0].Topic, err)
			}
		},
	}
	if buf <= 0 {
		buf = 1
	}
	return &Producer{w: w, inbox: make(chan kafka.Message, buf), done: make(chan struct{})}
}

// Start drains the inbox until Close is called.
func (p *Producer) Start() {
	go func() {
		defer close(p.done)
		for m := range p.inbox {
			if err := p.w.WriteMessages(context.Background(), m); err != nil {
				log.Printf("kafka enqueue failed: topic=%s key=%s: %v", m.Topic, m.Key, err)
			}
		}
		if err := p.w.Close(); err != nil {
			log.Printf("kafka writer close: %v", err)
		}
	}()
}

// Publish queues a message. Messages published after Close are dropped.
func (p *Producer) Publish(topic string, key, value []byte, headers ...kafka.Header) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		log.Printf("kafka producer closed, dropping message topic=%s key=%s", topic, key)
		return
	}
	p.inbox <- kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
}

// Close stops accepting messages; the goroutine flushes what is queued and exits.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}

func (p *Producer) WaitClosed() { <-p.done }
