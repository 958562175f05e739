// Package watch polls a shared plan for remote changes and notifies
// subscribers with the re-parsed document.
package watch

import (
	"context"
	"sync"
	"time"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-planshare/pkg/backend"
	"github.com/mattsolo1/grove-planshare/pkg/plan"
	"github.com/mattsolo1/grove-planshare/pkg/planshare"
)

// DefaultInterval is used when Config.Interval is not set.
const DefaultInterval = 30 * time.Second

// subscriberBuffer bounds each subscriber channel. Events for a full
// subscriber are dropped.
const subscriberBuffer = 16

// Event reports the current state of a watched plan. Plan is nil when the
// chat no longer holds a plan document.
type Event struct {
	ChatID    string
	MessageID string
	Plan      *plan.Plan
	UpdatedAt time.Time
	Feedback  []backend.Message
}

// Config holds configuration for a Watcher.
type Config struct {
	Interval time.Duration
	Logger   *logrus.Entry
}

type snapshot struct {
	messageID string
	updatedAt time.Time
	feedback  int
	noPlan    bool
}

// Watcher polls chats and fans change events out to subscribers.
type Watcher struct {
	client   backend.Client
	interval time.Duration
	logger   *logrus.Entry

	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	seen        map[string]snapshot
}

// New creates a watcher reading from client.
func New(client backend.Client, cfg Config) *Watcher {
	w := &Watcher{
		client:      client,
		interval:    cfg.Interval,
		logger:      cfg.Logger,
		subscribers: make(map[int]chan Event),
		seen:        make(map[string]snapshot),
	}
	if w.interval <= 0 {
		w.interval = DefaultInterval
	}
	if w.logger == nil {
		w.logger = grovelogging.NewLogger("planshare.watch")
	}
	return w
}

// Subscribe registers a new subscriber. The returned function unregisters it
// and closes the channel.
func (w *Watcher) Subscribe() (<-chan Event, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	ch := make(chan Event, subscriberBuffer)
	w.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if sub, ok := w.subscribers[id]; ok {
				delete(w.subscribers, id)
				close(sub)
			}
		})
	}
}

// Run polls chatID until ctx is cancelled. The first poll happens
// immediately. Poll failures are logged and retried on the next tick.
func (w *Watcher) Run(ctx context.Context, chatID string) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.Poll(ctx, chatID); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.WithField("chat_id", chatID).WithError(err).Warn("Poll failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll fetches chatID once and publishes an event if the plan message or its
// feedback changed since the previous poll.
func (w *Watcher) Poll(ctx context.Context, chatID string) error {
	msgs, err := w.client.ListMessages(ctx, chatID)
	if err != nil {
		return err
	}

	idx := planshare.LatestPlanMessage(msgs)
	if idx < 0 {
		w.mu.Lock()
		prev, seen := w.seen[chatID]
		w.seen[chatID] = snapshot{noPlan: true}
		w.mu.Unlock()

		if seen && prev.noPlan {
			return nil
		}
		w.logger.WithField("chat_id", chatID).Debug("No plan in chat")
		w.publish(Event{ChatID: chatID})
		return nil
	}

	msg := msgs[idx]
	feedback := planshare.Feedback(msgs, idx)
	next := snapshot{messageID: msg.ID, updatedAt: msg.UpdatedAt, feedback: len(feedback)}

	w.mu.Lock()
	prev, seen := w.seen[chatID]
	w.seen[chatID] = next
	w.mu.Unlock()

	if seen && prev.messageID == next.messageID && prev.updatedAt.Equal(next.updatedAt) && prev.feedback == next.feedback {
		return nil
	}

	// Always re-parse the whole document.
	p, _ := plan.Parse(msg.Content)
	w.logger.WithFields(logrus.Fields{
		"chat_id":    chatID,
		"message_id": msg.ID,
		"items":      p.Total(),
		"feedback":   len(feedback),
	}).Debug("Plan changed")

	w.publish(Event{
		ChatID:    chatID,
		MessageID: msg.ID,
		Plan:      p,
		UpdatedAt: msg.UpdatedAt,
		Feedback:  feedback,
	})
	return nil
}

func (w *Watcher) publish(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, ch := range w.subscribers {
		select {
		case ch <- ev:
		default:
			w.logger.WithFields(logrus.Fields{
				"chat_id":    ev.ChatID,
				"subscriber": id,
			}).Warn("Subscriber is full, dropping event")
		}
	}
}
