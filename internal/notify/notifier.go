// Package notify implements the toast notification sink.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/schedpulse/schedpulse/internal/domain"
	"github.com/schedpulse/schedpulse/internal/metrics"
)

const defaultDuration = 5 * time.Second

// HubNotifier shows toasts by publishing them to connected UI clients.
// ShowMessage never blocks the caller.
type HubNotifier struct {
	publisher domain.UpdatePublisher
}

// NewHubNotifier creates a notifier publishing through the given publisher.
func NewHubNotifier(publisher domain.UpdatePublisher) *HubNotifier {
	return &HubNotifier{publisher: publisher}
}

func (n *HubNotifier) ShowMessage(message string, opts ...domain.ToastOption) {
	toast := domain.Toast{Message: message, Duration: defaultDuration}
	for _, opt := range opts {
		opt(&toast)
	}

	metrics.ToastsShownTotal.Inc()
	slog.Info("Toast shown", "message", toast.Message)
	n.publisher.PublishToast(toast)
}

// Recorder is an in-memory Notifier for tests.
type Recorder struct {
	mu     sync.Mutex
	toasts []domain.Toast
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) ShowMessage(message string, opts ...domain.ToastOption) {
	toast := domain.Toast{Message: message}
	for _, opt := range opts {
		opt(&toast)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, toast)
}

// Toasts returns a copy of everything shown so far.
func (r *Recorder) Toasts() []domain.Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Toast(nil), r.toasts...)
}
