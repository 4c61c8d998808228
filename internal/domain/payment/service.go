package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/remixhub/remixhub-api/internal/pkg/mercadopago"
)

// Gateway is the payment provider surface the reconciler consumes.
type Gateway interface {
	CreatePayment(ctx context.Context, req mercadopago.CreatePaymentRequest) (*mercadopago.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

// Service reconciles payment orders against the provider. Approval can
// arrive through the poll path or the webhook path; both funnel into the
// same conditional transition so credits are granted exactly once.
type Service interface {
	CreatePixPayment(ctx context.Context, userID uuid.UUID, email, name string, req CreatePixRequest) (*CreatePixResponse, error)
	CheckPayment(ctx context.Context, userID uuid.UUID, id string) (*StatusResponse, error)
	Cancel(ctx context.Context, userID uuid.UUID, id string) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Order, error)
	HandleProviderNotification(ctx context.Context, topic, providerPaymentID string) error
	ExpireStale(ctx context.Context) (int64, error)
}

// ServiceConfig tunes the reconciler.
type ServiceConfig struct {
	// UnitPrice is the price of one credit in BRL.
	UnitPrice float64

	// PendingTTL is how long a pending order stays payable.
	PendingTTL time.Duration

	// StatusCacheTTL bounds how stale a cached provider status may be on the
	// poll path. Zero selects the default; caching is off when the service is
	// built with a nil cache client.
	StatusCacheTTL time.Duration
}

type service struct {
	repo    Repository
	gateway Gateway
	cache   *redis.Client
	cfg     ServiceConfig
}

// NewService creates the payment service. cache may be nil; the poll path
// then always hits the provider.
func NewService(repo Repository, gateway Gateway, cache *redis.Client, cfg ServiceConfig) Service {
	if cfg.UnitPrice <= 0 {
		cfg.UnitPrice = 0.50
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 5 * time.Minute
	}
	if cfg.StatusCacheTTL <= 0 {
		cfg.StatusCacheTTL = 5 * time.Second
	}
	return &service{repo: repo, gateway: gateway, cache: cache, cfg: cfg}
}

// CreatePixPayment creates the provider payment first and only then the
// local order, so every stored order has a provider id to reconcile by.
func (s *service) CreatePixPayment(ctx context.Context, userID uuid.UUID, email, name string, req CreatePixRequest) (*CreatePixResponse, error) {
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	amount := float64(req.Quantity) * s.cfg.UnitPrice

	providerPayment, err := s.gateway.CreatePayment(ctx, mercadopago.CreatePaymentRequest{
		Amount:      amount,
		Description: fmt.Sprintf("RemixHub: %d credits", req.Quantity),
		PayerEmail:  email,
		PayerName:   name,
		PayerCPF:    req.CPF,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := &Order{
		ID:                uuid.New().String(),
		UserID:            userID.String(),
		Amount:            amount,
		CreditsPurchased:  req.Quantity,
		Status:            StatusPending,
		ProviderPaymentID: strconv.FormatInt(providerPayment.ID, 10),
		QRCode:            providerPayment.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64:      providerPayment.PointOfInteraction.TransactionData.QRCodeBase64,
		TicketURL:         providerPayment.PointOfInteraction.TransactionData.TicketURL,
		ExpiresAt:         now.Add(s.cfg.PendingTTL),
	}

	if err := s.repo.CreatePending(ctx, order); err != nil {
		return nil, err
	}

	// PIX payments occasionally come back approved immediately.
	if providerPayment.Status == mercadopago.StatusApproved {
		if _, err := s.approve(ctx, order); err != nil {
			log.Error().Err(err).Str("order_id", order.ID).Msg("immediate approval failed")
		}
	}

	return &CreatePixResponse{
		Order:        order,
		QRCode:       order.QRCode,
		QRCodeBase64: order.QRCodeBase64,
		TicketURL:    order.TicketURL,
	}, nil
}

// CheckPayment is the poll path. It lazily expires stale orders, then
// reconciles pending ones against the provider.
func (s *service) CheckPayment(ctx context.Context, userID uuid.UUID, id string) (*StatusResponse, error) {
	order, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if order.Status != StatusPending {
		return statusOf(order), nil
	}

	if order.IsExpired(time.Now()) {
		if _, err := s.repo.CancelIfPending(ctx, order.ID); err != nil {
			return nil, err
		}
		return s.refreshed(ctx, order.ID)
	}

	providerStatus, err := s.providerStatus(ctx, order.ProviderPaymentID)
	if err != nil {
		// Provider is unreachable; report what we know instead of failing
		// the poll.
		log.Warn().Err(err).Str("order_id", order.ID).Msg("provider status check failed")
		return statusOf(order), nil
	}

	switch providerStatus {
	case mercadopago.StatusApproved:
		if _, err := s.approve(ctx, order); err != nil {
			return nil, err
		}
	case mercadopago.StatusRejected, mercadopago.StatusCancelled:
		if _, err := s.repo.CancelIfPending(ctx, order.ID); err != nil {
			return nil, err
		}
	}

	return s.refreshed(ctx, order.ID)
}

// Cancel cancels a pending order at the user's request. Cancelling an
// already cancelled order is a no-op; cancelling an approved one conflicts.
func (s *service) Cancel(ctx context.Context, userID uuid.UUID, id string) error {
	order, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return err
	}

	applied, err := s.repo.CancelIfPending(ctx, order.ID)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	current, err := s.repo.GetByID(ctx, order.ID)
	if err != nil {
		return err
	}
	if current.Status == StatusCancelled {
		return nil
	}
	return ErrConflict
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Order, error) {
	return s.repo.ListByUser(ctx, userID.String(), limit, offset)
}

// HandleProviderNotification is the webhook path. The notification payload
// is never trusted: the authoritative status is re-fetched from the
// provider, and the order is matched by provider payment id.
func (s *service) HandleProviderNotification(ctx context.Context, topic, providerPaymentID string) error {
	if topic != "payment" {
		log.Debug().Str("topic", topic).Msg("ignoring non-payment notification")
		return nil
	}
	if providerPaymentID == "" {
		return nil
	}

	providerPayment, err := s.gateway.GetPayment(ctx, providerPaymentID)
	if err != nil {
		return fmt.Errorf("fetch provider payment: %w", err)
	}

	order, err := s.repo.GetByProviderPaymentID(ctx, providerPaymentID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Str("provider_payment_id", providerPaymentID).Msg("notification for unknown payment")
			return nil
		}
		return err
	}

	switch providerPayment.Status {
	case mercadopago.StatusApproved:
		applied, err := s.approve(ctx, order)
		if err != nil {
			return err
		}
		if !applied {
			log.Debug().Str("order_id", order.ID).Msg("order already terminal, notification ignored")
		}
	case mercadopago.StatusRejected, mercadopago.StatusCancelled:
		if _, err := s.repo.CancelIfPending(ctx, order.ID); err != nil {
			return err
		}
	}

	return nil
}

// ExpireStale cancels all pending orders past their payment window. Run
// periodically as a safety net behind the lazy per-poll expiry.
func (s *service) ExpireStale(ctx context.Context) (int64, error) {
	return s.repo.CancelExpired(ctx, time.Now())
}

func (s *service) approve(ctx context.Context, order *Order) (bool, error) {
	applied, err := s.repo.ApproveAndCredit(ctx, order)
	if err != nil {
		return false, err
	}
	if applied {
		log.Info().
			Str("order_id", order.ID).
			Str("user_id", order.UserID).
			Int("credits", order.CreditsPurchased).
			Msg("payment approved, credits granted")
	}
	return applied, nil
}

func (s *service) getOwned(ctx context.Context, userID uuid.UUID, id string) (*Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID.String() {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *service) refreshed(ctx context.Context, id string) (*StatusResponse, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return statusOf(order), nil
}

// providerStatus returns the provider's view of a payment, cached briefly in
// Redis to absorb client poll storms.
func (s *service) providerStatus(ctx context.Context, providerPaymentID string) (string, error) {
	key := "payment:status:" + providerPaymentID

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key).Result()
		if err == nil && cached != "" {
			return cached, nil
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("payment status cache read failed")
		}
	}

	providerPayment, err := s.gateway.GetPayment(ctx, providerPaymentID)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, providerPayment.Status, s.cfg.StatusCacheTTL).Err(); err != nil {
			log.Warn().Err(err).Msg("payment status cache write failed")
		}
	}

	return providerPayment.Status, nil
}

func statusOf(o *Order) *StatusResponse {
	return &StatusResponse{ID: o.ID, Status: o.Status, Credits: o.CreditsPurchased}
}
