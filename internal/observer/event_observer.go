package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SessionEvent describes something that happened in a session
type SessionEvent struct {
	EventType    EventType              `json:"event_type"`
	Timestamp    time.Time              `json:"timestamp"`
	SessionID    string                 `json:"session_id"`
	Duration     time.Duration          `json:"duration"`
	Success      bool                   `json:"success"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of session event
type EventType string

const (
	SessionCreated      EventType = "session_created"
	SessionEnded        EventType = "session_ended"
	SessionCleared      EventType = "session_cleared"
	ImageRejected       EventType = "image_rejected"
	ExtractionCompleted EventType = "extraction_completed"
	ExtractionFailed    EventType = "extraction_failed"
	ChatAnswered        EventType = "chat_answered"
	ChatDegraded        EventType = "chat_degraded"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event SessionEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event SessionEvent)
}

// LoggingObserver logs session events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent logs failures at error level, degraded chat at warn and the rest at info
func (o *LoggingObserver) OnEvent(ctx context.Context, event SessionEvent) {
	fields := logrus.Fields{
		"event_type":  event.EventType,
		"session_id":  event.SessionID,
		"duration_ms": event.Duration.Milliseconds(),
		"success":     event.Success,
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case ExtractionFailed:
		entry.Error("Text extraction failed")
	case ImageRejected:
		entry.Warn("Uploaded image rejected")
	case ChatDegraded:
		entry.Warn("Chat answer replaced by error turn")
	case ExtractionCompleted:
		entry.Info("Text extraction completed")
	case ChatAnswered:
		entry.Info("Chat question answered")
	default:
		entry.Info("Session event")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// Stats is a point-in-time copy of MetricsObserver's counters
type Stats struct {
	SessionsCreated      int64         `json:"sessions_created"`
	SessionsEnded        int64         `json:"sessions_ended"`
	ExtractionsSucceeded int64         `json:"extractions_succeeded"`
	ExtractionsFailed    int64         `json:"extractions_failed"`
	ChatAnswered         int64         `json:"chat_answered"`
	ChatDegraded         int64         `json:"chat_degraded"`
	ImagesRejected       int64         `json:"images_rejected"`
	AvgExtractionTime    time.Duration `json:"avg_extraction_time"`
}

// MetricsObserver counts session events
type MetricsObserver struct {
	mu                  sync.RWMutex
	stats               Stats
	totalExtractionTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles session events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event SessionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case SessionCreated:
		o.stats.SessionsCreated++
	case SessionEnded:
		o.stats.SessionsEnded++
	case ImageRejected:
		o.stats.ImagesRejected++
	case ExtractionCompleted:
		o.stats.ExtractionsSucceeded++
		o.totalExtractionTime += event.Duration
	case ExtractionFailed:
		o.stats.ExtractionsFailed++
	case ChatAnswered:
		o.stats.ChatAnswered++
	case ChatDegraded:
		o.stats.ChatDegraded++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// Stats returns current counters
func (o *MetricsObserver) Stats() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s := o.stats
	if s.ExtractionsSucceeded > 0 {
		s.AvgExtractionTime = o.totalExtractionTime / time.Duration(s.ExtractionsSucceeded)
	}
	return s
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	wg        sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer on its own goroutine
func (p *EventPublisher) NotifyObservers(ctx context.Context, event SessionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	// Observers outlive the request that produced the event.
	ctx = context.WithoutCancel(ctx)
	for _, observer := range observers {
		p.wg.Add(1)
		go func(obs Observer) {
			defer p.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Wait blocks until every notification issued so far has been handled
func (p *EventPublisher) Wait() {
	p.wg.Wait()
}
