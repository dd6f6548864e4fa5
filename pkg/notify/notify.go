package notify

import (
	"context"
	"fmt"

	"booksphere/pkg/domain"
)

// Notifier delivers feedback notifications. Implementations must honour
// ctx cancellation; callers treat any error as non-fatal.
type Notifier interface {
	NotifyFeedback(ctx context.Context, f domain.Feedback) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) NotifyFeedback(context.Context, domain.Feedback) error { return nil }

// FeedbackSubject is the mail subject for a feedback notification.
func FeedbackSubject(f domain.Feedback) string {
	return fmt.Sprintf("BookSphere Feedback - %d/5", f.Rating)
}

// FeedbackBody is the plain-text mail body for a feedback notification.
func FeedbackBody(f domain.Feedback) string {
	return fmt.Sprintf("NEW FEEDBACK: %s (%d/5): %s", f.Name, f.Rating, f.Message)
}
