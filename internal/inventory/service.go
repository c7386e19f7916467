package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/gesticom/gesticom/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetStock(ctx context.Context, storeID, productID int64) (Stock, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	StoreEntity(ctx context.Context, storeID int64) (int64, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service answers stock queries and posts manual adjustments.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Get returns the quantity on hand for (storeID, productID).
func (s *Service) Get(ctx context.Context, storeID, productID int64) (Stock, error) {
	if storeID <= 0 || productID <= 0 {
		return Stock{}, fmt.Errorf("%w: inventory: store and product required", shared.ErrInvalidInput)
	}
	if _, err := s.authorizeStore(ctx, storeID); err != nil {
		return Stock{}, err
	}
	return s.repo.GetStock(ctx, storeID, productID)
}

// Movements lists the movement journal for (storeID, productID).
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.StoreID <= 0 || filter.ProductID <= 0 {
		return nil, fmt.Errorf("%w: inventory: store and product required", shared.ErrInvalidInput)
	}
	if _, err := s.authorizeStore(ctx, filter.StoreID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, filter)
}

// Adjust applies a signed manual correction. Negative corrections may not
// take stock below zero.
func (s *Service) Adjust(ctx context.Context, in AdjustmentInput) (Movement, error) {
	if math.Abs(in.Qty) < 1e-9 {
		return Movement{}, ErrInvalidQuantity
	}
	if in.StoreID <= 0 {
		return Movement{}, fmt.Errorf("%w: inventory: store and product required", shared.ErrInvalidInput)
	}
	actor, err := s.authorizeStore(ctx, in.StoreID)
	if err != nil {
		return Movement{}, err
	}
	change := Change{
		StoreID:   in.StoreID,
		ProductID: in.ProductID,
		Qty:       math.Abs(in.Qty),
		Reason:    in.Reason,
		ActorID:   actor.UserID,
	}
	var movement Movement
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if in.Qty > 0 {
			movement, err = Increment(ctx, tx, change)
		} else {
			movement, err = Withdraw(ctx, tx, change)
		}
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			EntityID: actor.EntityID,
			Action:   "stock.adjust",
			Object:   "stock_movement",
			ObjectID: strconv.FormatInt(movement.ID, 10),
			Meta: map[string]any{
				"store_id":   in.StoreID,
				"product_id": in.ProductID,
				"qty":        in.Qty,
				"reason":     in.Reason,
			},
		}); err != nil {
			s.logger.Warn("inventory audit", slog.Any("error", err))
		}
	}
	return movement, nil
}

// authorizeStore checks that the caller's entity owns storeID.
func (s *Service) authorizeStore(ctx context.Context, storeID int64) (shared.Identity, error) {
	actor, ok := shared.IdentityFromContext(ctx)
	if !ok {
		return shared.Identity{}, shared.ErrUnauthorized
	}
	entityID, err := s.repo.StoreEntity(ctx, storeID)
	if err != nil {
		return shared.Identity{}, err
	}
	if !actor.CanAccessEntity(entityID) {
		return shared.Identity{}, shared.ErrForbidden
	}
	return actor, nil
}
