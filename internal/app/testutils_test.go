package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/moviex/booking-system/api"
	"github.com/moviex/booking-system/internal/domain"
	"github.com/moviex/booking-system/internal/mailer"
	"github.com/moviex/booking-system/internal/mocks"
	"github.com/moviex/booking-system/internal/realtime"
	appvalidator "github.com/moviex/booking-system/internal/validator"
)

var testNow = time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

func newTestApplication(opts ...func(*Application)) *Application {
	app := &Application{
		validator:       appvalidator.NewValidator(),
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:           domain.FixedClock{Time: testNow},
		hub:             realtime.NewHub(),
		mailer:          mailer.NewMockMailer(),
		bookingRepo:     &mocks.MockBookingRepo{},
		seatRepo:        &mocks.MockSeatRepo{},
		showtimeRepo:    &mocks.MockShowtimeRepo{},
		userRepo:        &mocks.MockUserRepo{},
		paymentProvider: &mocks.MockPaymentProvider{},
		publisher:       &mocks.RecordingPublisher{},
	}

	app.config.booking.selectTimeout = 5 * time.Minute
	app.config.booking.payTimeout = 15 * time.Minute

	for _, opt := range opts {
		opt(app)
	}

	return app
}

func executeRequest(t *testing.T, method, url string, body any) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(jsonData)
	}

	r := httptest.NewRequest(method, url, reader)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	return w, r
}

// withURLParams attaches chi route parameters so handlers can be invoked
// without going through the router.
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}

	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withUser injects the authenticated identity the way requireAuthentication
// does after a successful session lookup.
func withUser(r *http.Request, userId int) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), SessionKeyUserId, userId))
}

func withRole(r *http.Request, role string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), SessionKeyRole, role))
}

func checkErrorResponse(t *testing.T, w *httptest.ResponseRecorder, tt struct {
	wantStatus     int
	wantErrMessage string
}) {
	t.Helper()

	if tt.wantStatus >= 200 && tt.wantStatus < 300 {
		return
	}

	switch tt.wantStatus {
	case http.StatusUnprocessableEntity:
		var validationResp api.ValidationErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&validationResp); err != nil {
			t.Fatalf("Failed to decode validation error response: %v", err)
		}

		errorSet := make(map[string]bool)
		for _, vErr := range validationResp.ValidationErrors {
			errorSet[vErr.Issue] = true
		}

		if !errorSet[tt.wantErrMessage] {
			t.Errorf("Expected validation error message '%s' not found in response", tt.wantErrMessage)
		}

	default:
		var errorResp api.ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&errorResp); err != nil {
			t.Fatalf("Failed to decode error response: %v", err)
		}

		if tt.wantErrMessage != "" && errorResp.Message != tt.wantErrMessage {
			t.Errorf("Error message = %v, want %v", errorResp.Message, tt.wantErrMessage)
		}
	}
}

func ptr[T any](v T) *T {
	return &v
}
