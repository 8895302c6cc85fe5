package mq

import (
	"context"
	"errors"
	"strings"
	"sync"
)

const localBuffer = 64

// Local delivers messages to subscribers of the same process. It is used
// when no broker is configured. There is no redelivery: handler errors are
// ignored and a message is dropped for a subscriber whose buffer is full.
type Local struct {
	mu     sync.RWMutex
	subs   map[string][]chan Message
	closed bool
}

func NewLocal() *Local {
	return &Local{subs: map[string][]chan Message{}}
}

func (l *Local) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("local channel is required")
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return "", errors.New("local mq is closed")
	}

	msg := Message{ID: newMessageID(), Data: data, Attributes: attrs}
	for _, sub := range l.subs[channel] {
		select {
		case sub <- msg:
		default:
		}
	}
	return msg.ID, nil
}

func (l *Local) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("local channel is required")
	}

	ch := make(chan Message, localBuffer)
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errors.New("local mq is closed")
	}
	l.subs[channel] = append(l.subs[channel], ch)
	l.mu.Unlock()
	defer l.unsubscribe(channel, ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			_ = handler(ctx, msg)
		}
	}
}

func (l *Local) unsubscribe(channel string, ch chan Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	subs := l.subs[channel]
	for i, sub := range subs {
		if sub == ch {
			l.subs[channel] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Close ends every running Subscribe.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	for channel, subs := range l.subs {
		for _, sub := range subs {
			close(sub)
		}
		delete(l.subs, channel)
	}
	return nil
}
