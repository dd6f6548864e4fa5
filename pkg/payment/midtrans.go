package payment

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// snapCreator is the slice of snap.Client the gateway uses.
type snapCreator interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// statusChecker is the slice of coreapi.Client the gateway uses.
type statusChecker interface {
	CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, *midtrans.Error)
}

// MidtransGateway creates Snap transactions and checks their status through
// the Core API.
type MidtransGateway struct {
	client snapCreator
	status statusChecker
	newID  func() string
}

// NewMidtransGateway returns a Snap gateway for serverKey, or
// ErrNotConfigured when the key is empty.
func NewMidtransGateway(serverKey string, production bool) (*MidtransGateway, error) {
	serverKey = strings.TrimSpace(serverKey)
	if serverKey == "" {
		return nil, ErrNotConfigured
	}
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	var client snap.Client
	client.New(serverKey, env)
	var core coreapi.Client
	core.New(serverKey, env)
	return &MidtransGateway{client: &client, status: &core, newID: uuid.NewString}, nil
}

// CreateCheckout registers a transaction and returns the Snap redirect URL.
// The snap client has no context support; ctx is only checked up front.
func (g *MidtransGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	if err := ctx.Err(); err != nil {
		return Checkout{}, err
	}
	if req.Amount <= 0 {
		return Checkout{}, fmt.Errorf("checkout amount must be positive, got %d", req.Amount)
	}
	orderID := OrderID(req.UserID, g.newID())
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: req.Amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.Name,
			Email: req.Email,
		},
	}
	if req.FinishURL != "" {
		snapReq.Callbacks = &snap.Callbacks{Finish: req.FinishURL}
	}
	resp, merr := g.client.CreateTransaction(snapReq)
	if merr != nil {
		return Checkout{}, fmt.Errorf("midtrans create transaction: %s", merr.Message)
	}
	if resp == nil || resp.RedirectURL == "" {
		return Checkout{}, fmt.Errorf("midtrans create transaction: empty redirect url")
	}
	return Checkout{OrderID: orderID, Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// CheckOrder asks Midtrans for the order's transaction status. An order is
// paid once settled, or captured with the fraud check accepted.
func (g *MidtransGateway) CheckOrder(ctx context.Context, orderID string) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, ErrOrderNotFound
	}
	resp, merr := g.status.CheckTransaction(orderID)
	if merr != nil {
		if merr.StatusCode == http.StatusNotFound {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("midtrans check transaction: %s", merr.Message)
	}
	if resp == nil {
		return Order{}, fmt.Errorf("midtrans check transaction: empty response")
	}
	if resp.StatusCode == "404" {
		return Order{}, ErrOrderNotFound
	}
	order := Order{
		OrderID: orderID,
		Status:  strings.ToLower(resp.TransactionStatus),
		Amount:  parseGrossAmount(resp.GrossAmount),
	}
	order.UserID, _ = OrderUserID(orderID)
	switch order.Status {
	case "settlement":
		order.Paid = true
	case "capture":
		order.Paid = strings.EqualFold(resp.FraudStatus, "accept")
	}
	return order, nil
}

// parseGrossAmount reads Midtrans amounts such as "50000.00".
func parseGrossAmount(raw string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f))
}
