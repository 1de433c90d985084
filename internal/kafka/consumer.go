package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

// Handler returns nil only when the message is fully processed and its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// Reader is the part of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r        Reader
	workers  int
	attempts int
	backoff  time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	return NewConsumerWithReader(r, workers)
}

func NewConsumerWithReader(r Reader, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, attempts: 3, backoff: 200 * time.Millisecond}
}

// Start fetches until ctx is done or processing fails. Each partition is handled by one worker,
// in offset order, and a message is committed only after its handler succeeded. A message whose
// handler keeps failing stops the consumer with that error; nothing after it on its partition is
// committed, so it is redelivered when the group resumes.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 4)
	}
	g, gctx := errgroup.WithContext(ctx)

	for i, in := range jobs {
		g.Go(func() error {
			for m := range in {
				if gctx.Err() != nil {
					return nil
				}
				if err := c.handle(gctx, h, m); err != nil {
					if gctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("worker %d: topic=%s partition=%d offset=%d: %w", i, m.Topic, m.Partition, m.Offset, err)
				}
				if err := c.r.CommitMessages(gctx, m); err != nil {
					if gctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("worker %d: commit partition=%d offset=%d: %w", i, m.Partition, m.Offset, err)
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, in := range jobs {
				close(in)
			}
		}()
		for {
			m, err := c.r.FetchMessage(gctx)
			if err != nil {
				if gctx.Err() != nil || errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			select {
			case jobs[m.Partition%c.workers] <- m:
			case <-gctx.Done():
				return nil
			}
		}
	})

	err := g.Wait()
	if err != nil {
		log.Printf("consumer stopped: %v", err)
	}
	return err
}

func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) error {
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err = h(ctx, m); err == nil {
			return nil
		}
		if attempt == c.attempts {
			break
		}
		select {
		case <-time.After(c.backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return err
		}
	}
	return err
}
