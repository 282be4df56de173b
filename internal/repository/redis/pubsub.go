package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CatalogPubSub announces catalog mutations so other instances can drop
// whatever they derived from the old state.
type CatalogPubSub struct {
	rdb     redis.UniversalClient
	channel string
}

func NewCatalogPubSub(rdb redis.UniversalClient) *CatalogPubSub {
	return &CatalogPubSub{
		rdb:     rdb,
		channel: ChannelCatalogChanged(),
	}
}

type CatalogChange struct {
	Type    string    `json:"type"`
	EventID uuid.UUID `json:"event_id"`
	TsUnix  int64     `json:"ts_unix"`
}

// PublishEventChanged is a no-op on a nil receiver.
func (p *CatalogPubSub) PublishEventChanged(ctx context.Context, eventID uuid.UUID, kind string) error {
	if p == nil || p.rdb == nil {
		return nil
	}

	msg := CatalogChange{
		Type:    kind,
		EventID: eventID,
		TsUnix:  time.Now().Unix(),
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe blocks delivering changes to handler until ctx is done.
func (p *CatalogPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, change CatalogChange)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			change, ok := decodeCatalogChange(m.Payload)
			if ok {
				handler(ctx, change)
			}
		}
	}
}

func decodeCatalogChange(payload string) (CatalogChange, bool) {
	var c CatalogChange
	if err := json.Unmarshal([]byte(payload), &c); err != nil || c.EventID == uuid.Nil {
		return CatalogChange{}, false
	}
	return c, true
}
