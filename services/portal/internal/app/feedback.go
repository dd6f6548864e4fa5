package app

import (
	"context"
	"fmt"
	"strings"

	"booksphere/pkg/domain"
)

// FeedbackInput is the raw feedback form.
type FeedbackInput struct {
	Email   string
	Message string
	Rating  string
}

// SubmitFeedback stores the feedback, then tries to notify. Notification
// errors are logged and never undo the stored row.
func (a *App) SubmitFeedback(ctx context.Context, sess domain.Session, in FeedbackInput) (domain.Feedback, error) {
	rating, err := ParseRating(in.Rating)
	if err != nil {
		return domain.Feedback{}, err
	}
	form := feedbackForm{
		Email:   NormalizeEmail(in.Email),
		Message: strings.TrimSpace(in.Message),
		Rating:  rating,
	}
	if err := validateForm(form); err != nil {
		return domain.Feedback{}, err
	}
	fb, err := a.store.AddFeedback(domain.Feedback{
		UserID:    sess.UserID,
		Name:      sess.Name,
		Email:     form.Email,
		Message:   form.Message,
		Rating:    form.Rating,
		CreatedAt: a.now().UTC(),
	})
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("add feedback: %w", err)
	}
	if err := a.notifier.NotifyFeedback(ctx, fb); err != nil {
		a.logger.Warn("feedback notification failed", "feedback_id", fb.ID, "err", err)
	}
	return fb, nil
}
