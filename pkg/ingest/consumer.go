package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fieldpipe/pkg/logger"
)

const (
	defaultMaxPullMessages = 10
	defaultPullExpiry      = 5 * time.Second
	defaultAckWait         = 30 * time.Second
	defaultMaxAckPending   = 1000
)

// Consumer pulls raw payload messages from a JetStream stream, one
// payload per message, and runs each through a Processor.
type Consumer struct {
	js           jetstream.JetStream
	streamName   string
	consumerName string
	consumer     jetstream.Consumer
	log          logger.Logger
}

// NewConsumer creates or binds the durable pull consumer.
func NewConsumer(ctx context.Context, js jetstream.JetStream, streamName, consumerName, subject string, log logger.Logger) (*Consumer, error) {
	consumer, err := js.Consumer(ctx, streamName, consumerName)
	if err != nil {
		cfg := jetstream.ConsumerConfig{
			Durable:       consumerName,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       defaultAckWait,
			MaxAckPending: defaultMaxAckPending,
		}
		if subject != "" {
			cfg.FilterSubject = subject
		}

		consumer, err = js.CreateConsumer(ctx, streamName, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	return &Consumer{
		js:           js,
		streamName:   streamName,
		consumerName: consumerName,
		consumer:     consumer,
		log:          log,
	}, nil
}

func (c *Consumer) handleMessage(ctx context.Context, msg jetstream.Msg, processor *Processor) {
	err := processor.Process(ctx, msg)
	if err == nil {
		_ = msg.Ack()
		return
	}

	if errors.Is(err, ErrDropMessage) {
		// Deterministic failure: redelivery cannot succeed.
		_ = msg.Ack()
		return
	}

	c.log.Error().Err(err).Str("subject", msg.Subject()).Msg("Transient processing failure")
	_ = msg.Nak()
}

// ProcessMessages pulls and processes until the context is cancelled.
func (c *Consumer) ProcessMessages(ctx context.Context, processor *Processor) {
	c.log.Info().
		Str("stream", c.streamName).
		Str("consumer", c.consumerName).
		Msg("Starting pull consumer")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("Stopping message processing due to context cancellation")
			return
		default:
			msgs, err := c.fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.log.Info().Msg("Stopping message processing due to context cancellation")
					return
				}

				c.log.Error().Err(err).Msg("Failed to fetch messages")
				time.Sleep(time.Second)

				continue
			}

			for msg := range msgs.Messages() {
				c.handleMessage(ctx, msg, processor)
			}

			if fetchErr := msgs.Error(); fetchErr != nil {
				c.log.Error().Err(fetchErr).Msg("Fetch error")
			}
		}
	}
}

// fetch pulls the next batch without blocking shutdown: a cancelled
// context abandons the in-flight pull immediately. Any messages the
// abandoned pull delivers are never acked and redeliver after AckWait.
func (c *Consumer) fetch(ctx context.Context) (jetstream.MessageBatch, error) {
	type fetchResult struct {
		msgs jetstream.MessageBatch
		err  error
	}

	ch := make(chan fetchResult, 1)

	go func() {
		msgs, err := c.consumer.Fetch(defaultMaxPullMessages, jetstream.FetchMaxWait(defaultPullExpiry))
		ch <- fetchResult{msgs: msgs, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.msgs, res.err
	}
}
