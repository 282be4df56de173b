// Package notify delivers ticket confirmations. Delivery is best effort: a
// failure is logged and counted, never reported to the buyer.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/kirinyoku/tixmarket/internal/metrics"
)

type Notifier interface {
	Notify(ctx context.Context, c Confirmation) error
}

type ProducerConfig struct {
	Brokers      []string
	RetryMax     int
	RequiredAcks int
	// Timeout bounds one send, broker acks and network writes included.
	// Zero keeps sarama's defaults.
	Timeout time.Duration
}

func NewProducer(cfg ProducerConfig) (sarama.SyncProducer, error) {
	prod, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("notify.NewProducer: %w", err)
	}

	return prod, nil
}

func saramaConfig(cfg ProducerConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	sc.Producer.Retry.Max = cfg.RetryMax
	sc.Producer.Return.Successes = true

	if cfg.Timeout > 0 {
		sc.Producer.Timeout = cfg.Timeout
		sc.Net.DialTimeout = cfg.Timeout
		sc.Net.WriteTimeout = cfg.Timeout
		sc.Net.ReadTimeout = cfg.Timeout
	}

	return sc
}

// KafkaNotifier publishes confirmations for a mail worker to render and send.
type KafkaNotifier struct {
	prod  sarama.SyncProducer
	topic string
}

func NewKafkaNotifier(prod sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{prod: prod, topic: topic}
}

func (k *KafkaNotifier) Notify(ctx context.Context, c Confirmation) error {
	const op = "notify.KafkaNotifier.Notify"

	val, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		// one recipient's confirmations stay ordered
		Key:   sarama.StringEncoder(c.Recipient),
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(c.Kind)},
			{Key: []byte("timestamp"), Value: []byte(c.CreatedAt.Format(time.RFC3339))},
		},
	}

	// SendMessage takes no context; the producer timeouts bound the send
	// itself and ctx bounds how long the caller waits for it.
	done := make(chan error, 1)
	go func() {
		_, _, err := k.prod.SendMessage(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

func (k *KafkaNotifier) Close() error {
	return k.prod.Close()
}

// LogNotifier writes confirmations to the log. It is the sink when no broker
// is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(ctx context.Context, c Confirmation) error {
	ids := make([]string, 0, len(c.Tickets))
	for _, t := range c.Tickets {
		ids = append(ids, t.TicketID.String())
	}
	l.log.InfoContext(ctx, "confirmation",
		slog.String("kind", string(c.Kind)),
		slog.String("recipient", c.Recipient),
		slog.Bool("guest", c.Guest),
		slog.Any("tickets", ids),
	)
	return nil
}

// Dispatcher hands confirmations to a Notifier off the request path.
type Dispatcher struct {
	sink    Notifier
	timeout time.Duration
	log     *slog.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(sink Notifier, timeout time.Duration, log *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{sink: sink, timeout: timeout, log: log}
}

// Dispatch returns immediately. The send runs with its own deadline so that
// the caller's request ending does not cancel it. A nil Dispatcher drops c.
func (d *Dispatcher) Dispatch(c Confirmation) {
	if d == nil || d.sink == nil {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sink.Notify(ctx, c); err != nil {
			metrics.TrackNotification(string(c.Kind), "failed")
			d.log.Warn("notification failed",
				slog.String("kind", string(c.Kind)),
				slog.String("recipient", c.Recipient),
				slog.String("error", err.Error()),
			)
			return
		}
		metrics.TrackNotification(string(c.Kind), "sent")
	}()
}

// Wait blocks until in-flight dispatches finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	if d == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
