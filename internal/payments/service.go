package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kairos100/swissluca-backend/pkg/db/models"
	"github.com/kairos100/swissluca-backend/pkg/enums"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
	"github.com/kairos100/swissluca-backend/pkg/pagination"
)

// IntentInput is the client-supplied payment request of the legacy endpoint.
type IntentInput struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	Metadata    map[string]string
}

// Service backs the raw payment endpoints and payment history.
type Service interface {
	CreateIntent(ctx context.Context, input IntentInput) (PaymentHandle, error)
	Status(ctx context.Context, paymentIntentID string) (*IntentStatus, error)
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error)
}

// ServiceParams groups dependencies for the payment service.
type ServiceParams struct {
	Gateway Gateway
	Repo    *Repository
}

type service struct {
	gateway Gateway
	repo    *Repository
}

func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("payment repo required")
	}
	return &service{gateway: params.Gateway, repo: params.Repo}, nil
}

func (s *service) CreateIntent(ctx context.Context, input IntentInput) (PaymentHandle, error) {
	if !input.Amount.IsPositive() || strings.TrimSpace(input.Currency) == "" || strings.TrimSpace(input.Description) == "" {
		return PaymentHandle{}, pkgerrors.New(pkgerrors.CodeValidation, "Amount, currency, and description are required")
	}
	metadata := clientMetadata(input.Metadata)
	return s.gateway.CreatePayment(ctx, PaymentRequest{
		Amount:      input.Amount,
		Currency:    strings.ToLower(strings.TrimSpace(input.Currency)),
		Description: strings.TrimSpace(input.Description),
		OrderID:     metadata[MetaOrderID],
		Metadata:    metadata,
	})
}

// reserved keys route webhooks into the activation and subscription flows,
// so clients may not set them on raw payments.
var reservedMetadata = map[string]struct{}{
	MetaPurpose:       {},
	MetaUserID:        {},
	MetaOfferID:       {},
	MetaKind:          {},
	MetaPlan:          {},
	MetaShowCountdown: {},
}

func clientMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if _, reserved := reservedMetadata[k]; reserved {
			continue
		}
		out[k] = v
	}
	return out
}

func (s *service) Status(ctx context.Context, paymentIntentID string) (*IntentStatus, error) {
	return s.gateway.PaymentStatus(ctx, paymentIntentID)
}

// RecordView is the client representation of a stored payment.
type RecordView struct {
	ID              uuid.UUID              `json:"id"`
	PaymentIntentID string                 `json:"paymentIntentId"`
	Purpose         enums.PaymentPurpose   `json:"purpose"`
	Status          enums.PaymentStatus    `json:"status"`
	Amount          decimal.Decimal        `json:"amount"`
	Currency        string                 `json:"currency"`
	OfferID         *uuid.UUID             `json:"offerId,omitempty"`
	Plan            enums.SubscriptionPlan `json:"plan,omitempty"`
	FailureReason   *string                `json:"failureReason,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
}

// HistoryPage is one cursor page of payment history.
type HistoryPage struct {
	Items  []RecordView `json:"items"`
	Cursor string       `json:"cursor,omitempty"`
}

func NewRecordView(r models.PaymentRecord) RecordView {
	view := RecordView{
		ID:              r.ID,
		PaymentIntentID: r.PaymentIntentID,
		Purpose:         r.Purpose,
		Status:          r.Status,
		Amount:          r.Amount,
		Currency:        r.Currency,
		OfferID:         r.OfferID,
		FailureReason:   r.FailureReason,
		CreatedAt:       r.CreatedAt.UTC(),
	}
	if r.Plan != enums.SubscriptionPlanNone {
		view.Plan = r.Plan
	}
	return view
}

func (s *service) History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, err
	}

	page := &HistoryPage{Items: make([]RecordView, 0, len(rows))}
	if len(rows) > limit {
		last := rows[limit-1]
		page.Cursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		rows = rows[:limit]
	}
	for _, row := range rows {
		page.Items = append(page.Items, NewRecordView(row))
	}
	return page, nil
}
