package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_DeliversToUserOnly(t *testing.T) {
	h := NewHub()
	ch1, unsub1 := h.Subscribe("u1")
	defer unsub1()
	ch2, unsub2 := h.Subscribe("u2")
	defer unsub2()

	balance := decimal.NewFromInt(700)
	require.NoError(t, h.Publish(context.Background(), Event{Type: EventBalance, UserID: "u1", Balance: &balance}))

	select {
	case e := <-ch1:
		assert.Equal(t, "u1", e.UserID)
		assert.True(t, e.Balance.Equal(balance))
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case e := <-ch2:
		t.Fatalf("unexpected event %v", e)
	default:
	}
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	h := NewHub()
	_, unsub := h.Subscribe("u1")
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_ = h.Publish(context.Background(), Event{UserID: "u1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe("u1")
	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)
	assert.NoError(t, h.Publish(context.Background(), Event{UserID: "u1"}))
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Event) error { return errors.New("down") }

func TestMulti_ReportsFailureButKeepsPublishing(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe("u1")
	defer unsub()

	err := Multi{failingPublisher{}, nil, h}.Publish(context.Background(), Event{UserID: "u1"})
	require.Error(t, err)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("hub was skipped after a failing publisher")
	}
}

func TestEncode(t *testing.T) {
	completed := decimal.NewFromInt(600)
	payload, err := encode(Event{Type: EventWagering, UserID: "u1", BonusID: "b1", Completed: &completed})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.Equal(t, "bonus.wagering", raw["type"])
	assert.Equal(t, "600", raw["completedWagering"])
	assert.NotContains(t, raw, "balance")
}

func TestEmit(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe("u1")
	defer unsub()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	Emit(context.Background(), Multi{failingPublisher{}, h}, zap.NewNop(),
		BalanceChanged("u1", decimal.NewFromInt(5), "spin", at))
	Emit(context.Background(), nil, nil, Event{UserID: "u1"})

	e := <-ch
	assert.Equal(t, EventBalance, e.Type)
	assert.Equal(t, "spin", e.Operation)
	assert.Equal(t, at, e.Timestamp)
	assert.True(t, e.Balance.Equal(decimal.NewFromInt(5)))
}
