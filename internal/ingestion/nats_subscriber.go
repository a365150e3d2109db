package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	CommandStream   = "VAULT_COMMANDS"
	CommandConsumer = "ledger-commands"
)

// NATSSubscriber consumes commands from JetStream and hands them to the
// processor over rawChan. One durable consumer covers every command
// subject so the stream order is the apply order.
type NATSSubscriber struct {
	js       jetstream.JetStream
	rawChan  chan<- RawEvent
	consumer jetstream.ConsumeContext
	logger   zerolog.Logger
}

// SubscriberConfig tunes the durable consumer.
type SubscriberConfig struct {
	Consumer string
	// MaxAckPending bounds unacked deliveries; 1 keeps redeliveries in order.
	MaxAckPending int
	AckWait       time.Duration
	MaxDeliver    int
}

func DefaultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		Consumer:      CommandConsumer,
		MaxAckPending: 256,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
	}
}

func NewNATSSubscriber(js jetstream.JetStream, rawChan chan<- RawEvent, logger zerolog.Logger) *NATSSubscriber {
	return &NATSSubscriber{js: js, rawChan: rawChan, logger: logger}
}

// Subscribe creates (or updates) the durable consumer and starts delivery.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, cfg SubscriberConfig) error {
	consumer, err := ns.js.CreateOrUpdateConsumer(ctx, CommandStream, jetstream.ConsumerConfig{
		Durable:       cfg.Consumer,
		FilterSubject: CommandSubjects,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: cfg.MaxAckPending,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", cfg.Consumer, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		raw := RawEvent{
			Subject:  msg.Subject(),
			Data:     msg.Data(),
			Received: time.Now(),
			Ack:      msg.Ack,
			Term:     msg.Term,
			Nak:      msg.Nak,
		}
		select {
		case ns.rawChan <- raw:
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", cfg.Consumer, err)
	}
	ns.consumer = cc
	ns.logger.Info().Str("subject", CommandSubjects).Str("consumer", cfg.Consumer).Msg("subscribed")
	return nil
}

// EnsureStreams creates the command and ledger event streams if missing.
func EnsureStreams(ctx context.Context, js jetstream.JetStream, logger zerolog.Logger) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      CommandStream,
			Subjects:  []string{CommandSubjects},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:       LedgerEventStream,
			Subjects:   []string{LedgerEventSubjects},
			Storage:    jetstream.FileStorage,
			Retention:  jetstream.LimitsPolicy,
			MaxAge:     72 * time.Hour,
			Duplicates: 10 * time.Minute,
			Replicas:   1,
		},
	}
	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		logger.Info().Str("stream", cfg.Name).Msg("ensured stream")
	}
	return nil
}

// Stop stops delivery. Messages already handed over are still processed.
func (ns *NATSSubscriber) Stop() {
	if ns.consumer != nil {
		ns.consumer.Stop()
	}
	ns.logger.Info().Msg("NATS subscriber stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, logger zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.Name("vaultledger"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}
