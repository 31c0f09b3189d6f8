package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fleetwise/database"
	apperrors "fleetwise/errors"
	"fleetwise/orders"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderParser turns an order message into a structured order.
type OrderParser interface {
	Parse(ctx context.Context, message string) *orders.ParsedOrder
}

// CreatedOrder is a submitted order and its assigned id.
type CreatedOrder struct {
	ID uuid.UUID `json:"id"`
	orders.Order
}

// OrderService manages each session's order draft: parse, edit, submit.
type OrderService struct {
	parser   OrderParser
	sessions *SessionService
	store    *database.PostgresStore
	logger   *zap.Logger
}

func NewOrderService(parser OrderParser, sessions *SessionService, store *database.PostgresStore, logger *zap.Logger) *OrderService {
	return &OrderService{
		parser:   parser,
		sessions: sessions,
		store:    store,
		logger:   logger,
	}
}

// Parse replaces the session's draft with one parsed from message.
func (s *OrderService) Parse(ctx context.Context, sessionID uuid.UUID, message string) orders.DraftView {
	sc := s.sessions.Get(ctx, sessionID)
	sc.Lock()
	defer sc.Unlock()

	parsed := s.parser.Parse(ctx, message)
	sc.Draft = orders.NewDraft(parsed)
	s.logger.Info("Parsed order draft",
		zap.String("session_id", sessionID.String()),
		zap.String("customer", parsed.CustomerName),
		zap.Int("items", len(parsed.Items)))
	return sc.Draft.View()
}

// Draft returns the current draft.
func (s *OrderService) Draft(ctx context.Context, sessionID uuid.UUID) (orders.DraftView, error) {
	var view orders.DraftView
	err := s.withDraft(ctx, sessionID, func(d *orders.Draft) error {
		view = d.View()
		return nil
	})
	return view, err
}

// SetHeader edits the customer and sales area; nil leaves a field unchanged.
func (s *OrderService) SetHeader(ctx context.Context, sessionID uuid.UUID, customerName, salesArea *string) (orders.DraftView, error) {
	var view orders.DraftView
	err := s.withDraft(ctx, sessionID, func(d *orders.Draft) error {
		d.SetHeader(customerName, salesArea)
		view = d.View()
		return nil
	})
	return view, err
}

func (s *OrderService) AddItem(ctx context.Context, sessionID uuid.UUID, item orders.Item) (orders.DraftView, error) {
	var view orders.DraftView
	err := s.withDraft(ctx, sessionID, func(d *orders.Draft) error {
		if _, err := d.AddItem(item); err != nil {
			return err
		}
		view = d.View()
		return nil
	})
	return view, err
}

func (s *OrderService) UpdateItem(ctx context.Context, sessionID uuid.UUID, index int, item orders.Item) (orders.DraftView, error) {
	var view orders.DraftView
	err := s.withDraft(ctx, sessionID, func(d *orders.Draft) error {
		if err := d.UpdateItem(index, item); err != nil {
			return err
		}
		view = d.View()
		return nil
	})
	return view, err
}

func (s *OrderService) DeleteItem(ctx context.Context, sessionID uuid.UUID, index int) (orders.DraftView, error) {
	var view orders.DraftView
	err := s.withDraft(ctx, sessionID, func(d *orders.Draft) error {
		if err := d.DeleteItem(index); err != nil {
			return err
		}
		view = d.View()
		return nil
	})
	return view, err
}

// Create submits the draft. On success the draft is cleared; when a store is
// configured the order is persisted first.
func (s *OrderService) Create(ctx context.Context, sessionID uuid.UUID) (*CreatedOrder, error) {
	var created *CreatedOrder
	err := s.withSession(ctx, sessionID, func(sc *SessionContext) error {
		if sc.Draft == nil {
			return apperrors.Kind(apperrors.ErrNotFound, fmt.Errorf("no order draft for session"))
		}
		order, err := sc.Draft.Order()
		if err != nil {
			return err
		}
		if order.OrderedDate == "" {
			order.OrderedDate = time.Now().Format("02/01/2006")
		}
		created = &CreatedOrder{ID: uuid.New(), Order: *order}

		if s.store != nil {
			payload, err := json.Marshal(created)
			if err != nil {
				return fmt.Errorf("encode order: %w", err)
			}
			if err := s.store.CreateOrder(ctx, created.ID, sessionID, payload); err != nil {
				return apperrors.Kind(apperrors.ErrDatabaseOperation, err)
			}
		}
		sc.Draft = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Order created",
		zap.String("session_id", sessionID.String()),
		zap.String("order_id", created.ID.String()),
		zap.Int("items", len(created.Items)))
	return created, nil
}

func (s *OrderService) withSession(ctx context.Context, sessionID uuid.UUID, fn func(*SessionContext) error) error {
	sc := s.sessions.Get(ctx, sessionID)
	sc.Lock()
	defer sc.Unlock()
	return fn(sc)
}

func (s *OrderService) withDraft(ctx context.Context, sessionID uuid.UUID, fn func(*orders.Draft) error) error {
	return s.withSession(ctx, sessionID, func(sc *SessionContext) error {
		if sc.Draft == nil {
			return apperrors.Kind(apperrors.ErrNotFound, fmt.Errorf("no order draft for session"))
		}
		return fn(sc.Draft)
	})
}
