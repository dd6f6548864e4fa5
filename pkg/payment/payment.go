package payment

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// ErrNotConfigured is returned when no gateway credentials are present.
var ErrNotConfigured = errors.New("payment gateway not configured")

// ErrOrderNotFound is returned when the gateway does not know the order.
var ErrOrderNotFound = errors.New("payment order not found")

const orderPrefix = "premium-"

// CheckoutRequest describes one premium purchase.
type CheckoutRequest struct {
	UserID    int64
	Name      string
	Email     string
	Amount    int64
	FinishURL string
}

// Checkout is the gateway's answer: where to send the buyer.
type Checkout struct {
	OrderID     string
	Token       string
	RedirectURL string
}

// Order is the gateway's current view of a checkout.
type Order struct {
	OrderID string
	// UserID is decoded from the order id; zero when it is not ours.
	UserID int64
	Status string
	Amount int64
	Paid   bool
}

// Gateway creates hosted checkout sessions and reports their outcome.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error)
	CheckOrder(ctx context.Context, orderID string) (Order, error)
}

// OrderID builds the order id for a premium purchase by userID.
func OrderID(userID int64, unique string) string {
	return orderPrefix + strconv.FormatInt(userID, 10) + "-" + unique
}

// OrderUserID extracts the buyer from an id built by OrderID.
func OrderUserID(orderID string) (int64, bool) {
	rest, ok := strings.CutPrefix(orderID, orderPrefix)
	if !ok {
		return 0, false
	}
	raw, _, ok := strings.Cut(rest, "-")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
