package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/emlakhub/apiserver/types"
)

// ListingEvents publishes and consumes listing moderation events on one channel.
type ListingEvents struct {
	mq      *MQ
	channel string
}

func NewListingEvents(m *MQ, channel string) *ListingEvents {
	return &ListingEvents{mq: m, channel: channel}
}

// PublishListingEvent encodes event as JSON keyed by listing id.
func (e *ListingEvents) PublishListingEvent(ctx context.Context, event types.ListingEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode listing event: %w", err)
	}
	attrs := map[string]string{
		"kind":  string(event.Kind),
		AttrKey: strconv.Itoa(event.ListingID),
	}
	if _, err := e.mq.Publish(ctx, e.channel, data, attrs); err != nil {
		return fmt.Errorf("publish listing event: %w", err)
	}
	return nil
}

// Consume delivers decoded events to fn until ctx is done. Messages that
// fail to decode are acknowledged and dropped.
func (e *ListingEvents) Consume(ctx context.Context, fn func(context.Context, types.ListingEvent) error) error {
	return e.mq.Subscribe(ctx, e.channel, func(ctx context.Context, msg Message) error {
		event, err := DecodeListingEvent(msg.Data)
		if err != nil {
			return nil
		}
		return fn(ctx, event)
	})
}

func DecodeListingEvent(data []byte) (types.ListingEvent, error) {
	var event types.ListingEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return types.ListingEvent{}, fmt.Errorf("decode listing event: %w", err)
	}
	if event.Kind == "" || event.ListingID == 0 {
		return types.ListingEvent{}, errors.New("decode listing event: missing kind or listing id")
	}
	return event, nil
}
