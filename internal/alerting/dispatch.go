package alerting

import (
	"sync"
	"time"

	"github.com/campuspulse/campuspulse/internal/datastore/entities"
	"github.com/google/uuid"
)

// DeliveryIntent is the typed event handed to external transport. The
// engine never delivers anything itself; it describes who should be told
// about a notification and over which channel.
type DeliveryIntent struct {
	ID             string    `json:"id"`
	NotificationID uint      `json:"notification_id"`
	RuleID         uint      `json:"rule_id"`
	Audience       string    `json:"audience"`
	Channel        string    `json:"channel"`
	Severity       string    `json:"severity"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}

// EmitIntents produces the delivery intents for a newly created
// notification: the cross product of the rule's audience flags and its
// enabled channels. The in-app channel is always included; email and SMS
// only when enabled on the rule. With no audience flag set, intents
// default to the admin audience so a breach is never silently dropped.
//
// Only first creation dispatches — refreshed notifications emit nothing,
// so rapid re-breaches cannot cause notification storms.
func EmitIntents(rule *entities.AlertRule, notification *entities.AlertNotification) []DeliveryIntent {
	audiences := make([]string, 0, 3)
	if rule.NotifyAdmin {
		audiences = append(audiences, AudienceAdmin)
	}
	if rule.NotifyTeacher {
		audiences = append(audiences, AudienceTeacher)
	}
	if rule.NotifyParent {
		audiences = append(audiences, AudienceParent)
	}
	if len(audiences) == 0 {
		audiences = append(audiences, AudienceAdmin)
	}

	channels := []string{ChannelInApp}
	if rule.EmailEnabled {
		channels = append(channels, ChannelEmail)
	}
	if rule.SMSEnabled {
		channels = append(channels, ChannelSMS)
	}

	now := time.Now().UTC()
	intents := make([]DeliveryIntent, 0, len(audiences)*len(channels))
	for _, audience := range audiences {
		for _, channel := range channels {
			intents = append(intents, DeliveryIntent{
				ID:             uuid.NewString(),
				NotificationID: notification.ID,
				RuleID:         rule.ID,
				Audience:       audience,
				Channel:        channel,
				Severity:       notification.Severity,
				Message:        notification.Message,
				CreatedAt:      now,
			})
		}
	}
	return intents
}

// IntentHandler consumes delivery intents.
type IntentHandler func(intent *DeliveryIntent)

// defaultDispatchBuffer is the capacity of the async intent channel.
const defaultDispatchBuffer = 1000

// DispatchBus is an async pub/sub for delivery intents. Publish is
// non-blocking: intents go to a buffered channel drained by a worker
// goroutine, so rule evaluation is never blocked by a slow transport.
// Intents are dropped when the buffer is full.
type DispatchBus struct {
	handlers []IntentHandler
	mu       sync.RWMutex
	intentCh chan *DeliveryIntent
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewDispatchBus creates a dispatch bus and starts its worker. A
// non-positive buffer falls back to the default capacity.
func NewDispatchBus(buffer int) *DispatchBus {
	if buffer <= 0 {
		buffer = defaultDispatchBuffer
	}
	b := &DispatchBus{
		intentCh: make(chan *DeliveryIntent, buffer),
		stopCh:   make(chan struct{}),
	}
	go b.processLoop()
	return b
}

// Subscribe registers a handler for delivery intents.
func (b *DispatchBus) Subscribe(handler IntentHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish enqueues an intent for async processing. Intents published after
// Stop, or while the buffer is full, are discarded.
func (b *DispatchBus) Publish(intent *DeliveryIntent) {
	select {
	case <-b.stopCh:
		return
	default:
	}

	select {
	case b.intentCh <- intent:
	default:
		// Buffer full — drop rather than block the evaluation path.
	}
}

// Stop shuts down the worker goroutine. Safe to call multiple times.
func (b *DispatchBus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
}

// processLoop drains the intent channel and fans out to handlers.
func (b *DispatchBus) processLoop() {
	for {
		select {
		case intent := <-b.intentCh:
			b.dispatch(intent)
		case <-b.stopCh:
			// Drain remaining intents before exiting.
			for {
				select {
				case intent := <-b.intentCh:
					b.dispatch(intent)
				default:
					return
				}
			}
		}
	}
}

func (b *DispatchBus) dispatch(intent *DeliveryIntent) {
	b.mu.RLock()
	handlers := make([]IntentHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.safeCall(handler, intent)
	}
}

// safeCall invokes a handler with panic recovery so one bad transport
// adapter cannot kill the bus goroutine.
func (b *DispatchBus) safeCall(handler IntentHandler, intent *DeliveryIntent) {
	defer func() {
		recover() //nolint:errcheck // handler panics must not stop the bus
	}()
	handler(intent)
}
