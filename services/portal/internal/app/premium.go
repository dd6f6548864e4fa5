package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"booksphere/pkg/domain"
	"booksphere/pkg/payment"
)

// PaymentPage is what the payment page links to.
type PaymentPage struct {
	Amount int64
	// CheckoutURL is the hosted checkout, or the success callback in demo mode.
	CheckoutURL string
	Demo        bool
}

// GrantPremium records a PremiumDays grant starting today, paid for by
// orderID (empty for demo and manual grants). It reports false when the
// insert was suppressed: an unexpired grant exists, which is not extended, or
// orderID was already redeemed. A lapsed grant never blocks a new one.
func (a *App) GrantPremium(userID int64, orderID string) (bool, error) {
	_, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return false, fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return false, ErrUserNotFound
	}
	today := a.today()
	inserted, err := a.store.AddPremiumGrant(domain.PremiumGrant{
		UserID:     userID,
		OrderID:    orderID,
		ExpiryDate: today.AddDate(0, 0, PremiumDays),
	}, today)
	if err != nil {
		return false, fmt.Errorf("add premium grant: %w", err)
	}
	return inserted, nil
}

// CompletePayment handles the checkout finish callback for userID. Members
// may only complete their own payment; admins may grant anyone. With a
// gateway configured, a member's callback must name a settled order bought
// by that member for at least the premium price. When the caller paid for
// themselves the session is refreshed with premium on and the token the
// client should keep is returned.
func (a *App) CompletePayment(ctx context.Context, token string, sess domain.Session, userID int64, orderID string) (string, error) {
	own := sess.UserID == userID
	if !own && !sess.IsAdmin() {
		return token, ErrForbidden
	}
	if own && !a.demoPayments() {
		if err := a.verifyOrder(ctx, userID, orderID); err != nil {
			return token, err
		}
	} else {
		orderID = ""
	}
	inserted, err := a.GrantPremium(userID, orderID)
	if err != nil {
		return token, err
	}
	if !inserted {
		a.logger.Info("premium grant suppressed", "user_id", userID, "order_id", orderID)
	}
	if !own {
		return token, nil
	}
	active, err := a.store.HasActivePremium(userID, a.today())
	if err != nil {
		return token, fmt.Errorf("check premium: %w", err)
	}
	if !active {
		return token, ErrPaymentNotConfirmed
	}
	sess.IsPremium = true
	next, err := a.sessions.RefreshSession(token, sess)
	if err != nil {
		return token, fmt.Errorf("refresh session: %w", err)
	}
	return next, nil
}

func (a *App) verifyOrder(ctx context.Context, userID int64, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return ErrPaymentNotConfirmed
	}
	order, err := a.payments.CheckOrder(ctx, orderID)
	if errors.Is(err, payment.ErrOrderNotFound) {
		return ErrPaymentNotConfirmed
	}
	if err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !order.Paid || order.UserID != userID || order.Amount < a.premiumPrice {
		a.logger.Warn("payment not confirmed", "user_id", userID, "order_id", orderID,
			"status", order.Status, "order_user_id", order.UserID, "amount", order.Amount)
		return ErrPaymentNotConfirmed
	}
	return nil
}

// demoPayments reports whether premium is granted without a gateway order.
func (a *App) demoPayments() bool {
	return a.payments == nil || a.premiumPrice <= 0
}

// Checkout prepares the payment page for the session's user. Without a
// gateway the page links straight to the success callback.
func (a *App) Checkout(ctx context.Context, sess domain.Session) (PaymentPage, error) {
	finishURL := fmt.Sprintf("%s/payment-success/%d", a.publicBaseURL, sess.UserID)
	page := PaymentPage{Amount: a.premiumPrice, CheckoutURL: finishURL, Demo: true}
	if a.demoPayments() {
		return page, nil
	}
	user, ok, err := a.store.GetUserByID(sess.UserID)
	if err != nil {
		return PaymentPage{}, fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return PaymentPage{}, ErrUserNotFound
	}
	checkout, err := a.payments.CreateCheckout(ctx, payment.CheckoutRequest{
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Amount:    a.premiumPrice,
		FinishURL: finishURL,
	})
	if err != nil {
		return PaymentPage{}, fmt.Errorf("create checkout: %w", err)
	}
	page.CheckoutURL = checkout.RedirectURL
	page.Demo = false
	return page, nil
}
