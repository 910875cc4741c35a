package notify

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	EventBalance  = "balance.updated"
	EventWagering = "bonus.wagering"
)

type Event struct {
	Type      string           `json:"type"`
	UserID    string           `json:"userId"`
	Balance   *decimal.Decimal `json:"balance,omitempty"`
	Operation string           `json:"operation,omitempty"`
	BonusID   string           `json:"bonusId,omitempty"`
	Completed *decimal.Decimal `json:"completedWagering,omitempty"`
	Required  *decimal.Decimal `json:"requiredWagering,omitempty"`
	Done      bool             `json:"done,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Hub fans events out to in-process subscribers keyed by user.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
	}
}

func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, 10)
	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[chan Event]struct{})
	}
	h.subscribers[userID][ch] = struct{}{}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[userID], ch)
			if len(h.subscribers[userID]) == 0 {
				delete(h.subscribers, userID)
			}
			close(ch)
		})
	}
	return ch, unsubscribe
}

// Publish never blocks: subscribers with a full buffer miss the event.
func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[e.UserID] {
		select {
		case ch <- e:
		default:
		}
	}
	return nil
}

// Multi publishes to every publisher and reports the first failure.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var first error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func BalanceChanged(userID string, balance decimal.Decimal, operation string, at time.Time) Event {
	return Event{
		Type:      EventBalance,
		UserID:    userID,
		Balance:   &balance,
		Operation: operation,
		Timestamp: at,
	}
}

// Emit publishes events after a commit. Delivery is best effort, failures
// are only logged.
func Emit(ctx context.Context, p Publisher, log *zap.Logger, events ...Event) {
	if p == nil {
		return
	}
	for _, e := range events {
		if err := p.Publish(ctx, e); err != nil && log != nil {
			log.Warn("failed to publish event",
				zap.String("type", e.Type),
				zap.String("user_id", e.UserID),
				zap.Error(err),
			)
		}
	}
}
