package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/remixhub/remixhub-api/internal/middleware"
)

type stubPaymentService struct {
	createResp *CreatePixResponse
	createErr  error
	statusResp *StatusResponse
	statusErr  error
	cancelErr  error

	notifications [][2]string
	notifyErr     error
}

func (s *stubPaymentService) CreatePixPayment(ctx context.Context, userID uuid.UUID, email, name string, req CreatePixRequest) (*CreatePixResponse, error) {
	return s.createResp, s.createErr
}

func (s *stubPaymentService) CheckPayment(ctx context.Context, userID uuid.UUID, id string) (*StatusResponse, error) {
	return s.statusResp, s.statusErr
}

func (s *stubPaymentService) Cancel(ctx context.Context, userID uuid.UUID, id string) error {
	return s.cancelErr
}

func (s *stubPaymentService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Order, error) {
	return nil, nil
}

func (s *stubPaymentService) HandleProviderNotification(ctx context.Context, topic, providerPaymentID string) error {
	s.notifications = append(s.notifications, [2]string{topic, providerPaymentID})
	return s.notifyErr
}

func (s *stubPaymentService) ExpireStale(ctx context.Context) (int64, error) {
	return 0, nil
}

func paymentTestAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), middleware.UserIDKey, uuid.New())
		ctx = context.WithValue(ctx, middleware.UserEmailKey, "a@b.com")
		ctx = context.WithValue(ctx, middleware.UserNameKey, "Alice")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func doPaymentRequest(t *testing.T, svc Service, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()

	NewHandler(svc).Routes(paymentTestAuth).ServeHTTP(rec, req)
	return rec
}

func TestCreatePixHandler(t *testing.T) {
	svc := &stubPaymentService{
		createResp: &CreatePixResponse{
			Order:  &Order{ID: "p1", Status: StatusPending, CreditsPurchased: 10},
			QRCode: "qr-data",
		},
	}

	rec := doPaymentRequest(t, svc, http.MethodPost, "/pix", CreatePixRequest{Quantity: 10})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreatePixHandlerValidation(t *testing.T) {
	rec := doPaymentRequest(t, &stubPaymentService{}, http.MethodPost, "/pix", CreatePixRequest{Quantity: 0})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doPaymentRequest(t, &stubPaymentService{}, http.MethodPost, "/pix", CreatePixRequest{Quantity: 5, CPF: "123"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad cpf, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStatusHandlerNotFound(t *testing.T) {
	rec := doPaymentRequest(t, &stubPaymentService{statusErr: ErrOrderNotFound}, http.MethodGet, "/p1/status", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCancelHandlerConflict(t *testing.T) {
	rec := doPaymentRequest(t, &stubPaymentService{cancelErr: ErrConflict}, http.MethodPost, "/p1/cancel", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestWebhookAlwaysReturns200(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		notifyErr error
		wantTopic string
		wantID    string
	}{
		{name: "type and data.id", url: "/mercadopago?type=payment&data.id=12345", wantTopic: "payment", wantID: "12345"},
		{name: "topic and id", url: "/mercadopago?topic=payment&id=6789", wantTopic: "payment", wantID: "6789"},
		{name: "processing failure", url: "/mercadopago?type=payment&data.id=12345", notifyErr: errors.New("boom"), wantTopic: "payment", wantID: "12345"},
		{name: "no params", url: "/mercadopago", wantTopic: "", wantID: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubPaymentService{notifyErr: tt.notifyErr}
			req := httptest.NewRequest(http.MethodPost, tt.url, nil)
			rec := httptest.NewRecorder()

			NewHandler(svc).WebhookRoutes().ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("webhook must always return 200, got %d", rec.Code)
			}
			if len(svc.notifications) != 1 {
				t.Fatalf("expected 1 notification call, got %d", len(svc.notifications))
			}
			if svc.notifications[0][0] != tt.wantTopic || svc.notifications[0][1] != tt.wantID {
				t.Fatalf("expected (%q, %q), got (%q, %q)", tt.wantTopic, tt.wantID, svc.notifications[0][0], svc.notifications[0][1])
			}
		})
	}
}

func TestWebhookAcceptsGet(t *testing.T) {
	svc := &stubPaymentService{}
	req := httptest.NewRequest(http.MethodGet, "/mercadopago?topic=payment&id=1", nil)
	rec := httptest.NewRecorder()

	NewHandler(svc).WebhookRoutes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on GET, got %d", rec.Code)
	}
}
