// Package payment adapts the external payment gateway: order creation,
// signed-callback verification, and synchronous status queries.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/moviex/booking-system/internal/domain"
	"github.com/shopspring/decimal"
)

type GatewayProvider struct {
	appID       string
	orderKey    string // signs outgoing order requests
	callbackKey string // verifies incoming callback MACs
	endpoint    string
	queryURL    string
	callbackURL string
	client      *http.Client
	clock       domain.Clock
}

func NewGatewayProvider(appID, orderKey, callbackKey, endpoint, queryURL, callbackURL string, clock domain.Clock) *GatewayProvider {
	return &GatewayProvider{
		appID:       appID,
		orderKey:    orderKey,
		callbackKey: callbackKey,
		endpoint:    endpoint,
		queryURL:    queryURL,
		callbackURL: callbackURL,
		client:      &http.Client{Timeout: 10 * time.Second},
		clock:       clock,
	}
}

type orderResponse struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
	OrderURL      string `json:"order_url"`
	TransToken    string `json:"zp_trans_token"`
}

// CreateOrder registers a payment order with the gateway. The request is
// signed with HMAC-SHA256 over the pipe-joined order fields, per the
// gateway's protocol.
func (g *GatewayProvider) CreateOrder(
	ctx context.Context,
	bookingID int,
	transactionRef string,
	amount decimal.Decimal) (*domain.PaymentOrder, error) {

	appUser := fmt.Sprintf("user_%d", bookingID)
	appTime := g.clock.Now().UnixMilli()
	amountUnits := amount.Round(0).IntPart()
	embedData := "{}"
	items := "[]"

	signed := fmt.Sprintf("%s|%s|%s|%d|%d|%s|%s",
		g.appID, transactionRef, appUser, amountUnits, appTime, embedData, items)

	form := url.Values{}
	form.Set("app_id", g.appID)
	form.Set("app_user", appUser)
	form.Set("app_time", strconv.FormatInt(appTime, 10))
	form.Set("amount", strconv.FormatInt(amountUnits, 10))
	form.Set("app_trans_id", transactionRef)
	form.Set("embed_data", embedData)
	form.Set("item", items)
	form.Set("callback_url", g.callbackURL)
	form.Set("description", fmt.Sprintf("Booking #%d", bookingID))
	form.Set("mac", g.sign(g.orderKey, signed))

	var result orderResponse
	err := g.postForm(ctx, g.endpoint, form, &result)
	if err != nil {
		return nil, err
	}

	if result.ReturnCode != 1 {
		return nil, fmt.Errorf("%w: %s", domain.ErrGatewayRejected, result.ReturnMessage)
	}

	return &domain.PaymentOrder{
		OrderURL: result.OrderURL,
		Token:    result.TransToken,
	}, nil
}

type callbackPayload struct {
	AppTransID string `json:"app_trans_id"`
	ZpTransID  int64  `json:"zp_trans_id"`
	Amount     int64  `json:"amount"`
}

// VerifyCallback recomputes the MAC over the raw callback data and rejects
// any payload that does not verify. It performs no I/O.
func (g *GatewayProvider) VerifyCallback(data, mac string) (*domain.CallbackData, error) {
	expected := g.sign(g.callbackKey, data)
	if !hmac.Equal([]byte(expected), []byte(mac)) {
		return nil, domain.ErrInvalidSignature
	}

	var payload callbackPayload
	err := json.Unmarshal([]byte(data), &payload)
	if err != nil {
		return nil, fmt.Errorf("malformed callback payload: %w", err)
	}

	if payload.AppTransID == "" {
		return nil, fmt.Errorf("malformed callback payload: missing app_trans_id")
	}

	return &domain.CallbackData{
		TransactionRef: payload.AppTransID,
		GatewayTransID: strconv.FormatInt(payload.ZpTransID, 10),
		Amount:         decimal.NewFromInt(payload.Amount),
	}, nil
}

type statusResponse struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
	Amount        int64  `json:"amount"`
	ZpTransID     int64  `json:"zp_trans_id"`
}

func (g *GatewayProvider) QueryStatus(ctx context.Context, transactionRef string) (*domain.PaymentStatus, error) {
	signed := fmt.Sprintf("%s|%s|%s", g.appID, transactionRef, g.orderKey)

	form := url.Values{}
	form.Set("app_id", g.appID)
	form.Set("app_trans_id", transactionRef)
	form.Set("mac", g.sign(g.orderKey, signed))

	var result statusResponse
	err := g.postForm(ctx, g.queryURL, form, &result)
	if err != nil {
		return nil, err
	}

	return &domain.PaymentStatus{
		Paid:           result.ReturnCode == 1,
		Amount:         decimal.NewFromInt(result.Amount),
		GatewayTransID: strconv.FormatInt(result.ZpTransID, 10),
		Message:        result.ReturnMessage,
	}, nil
}

func (g *GatewayProvider) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *GatewayProvider) sign(key, data string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))

	return hex.EncodeToString(mac.Sum(nil))
}

// SignCallback produces the MAC a genuine gateway callback would carry.
// Exported for tests and the sandbox simulator.
func (g *GatewayProvider) SignCallback(data string) string {
	return g.sign(g.callbackKey, data)
}
