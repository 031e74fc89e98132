package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/flash-sale/internal/model"
	"github.com/iliyamo/flash-sale/internal/repository"
	"github.com/iliyamo/flash-sale/internal/waitroom"
)

// SaleState reports whether the sale discount applies right now.  It must
// not fail: an unreadable flag is reported as false.
type SaleState interface {
	IsActive(ctx context.Context) bool
}

// StatusChecker is the eligibility lookup used before a purchase.
type StatusChecker interface {
	QueueStatus(ctx context.Context, sessionID, token string, productID uint64) (QueueStatus, error)
}

// PurchaseInput identifies the token spending its eligibility.
type PurchaseInput struct {
	SessionID string
	Token     string
	ProductID uint64
	Quantity  int
}

// PurchaseResult describes a completed order.
type PurchaseResult struct {
	OrderID     uint64          `json:"order_id"`
	ProductID   uint64          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// PurchaseService runs the reservation transaction.
type PurchaseService struct {
	db       *sql.DB
	products *repository.ProductRepo
	orders   *repository.OrderRepo
	status   StatusChecker
	store    waitroom.Store
	sale     SaleState
	log      *zap.Logger
	now      func() time.Time
}

func NewPurchaseService(products *repository.ProductRepo, orders *repository.OrderRepo, status StatusChecker, store waitroom.Store, sale SaleState, log *zap.Logger) *PurchaseService {
	if products == nil || orders == nil || status == nil || store == nil || sale == nil {
		panic("nil dependency passed to NewPurchaseService")
	}
	return &PurchaseService{
		db:       products.DB(),
		products: products,
		orders:   orders,
		status:   status,
		store:    store,
		sale:     sale,
		log:      log.Named("purchase"),
		now:      time.Now,
	}
}

// Purchase spends an eligible token on quantity units of a product.  The
// token is retired from the eligible set under the product row lock and
// before commit, so of two requests carrying one token only the first can
// reach the stock decrement.  Any failure after that reinstates the token
// for a retry, except a sold-out result, which spends it.
func (s *PurchaseService) Purchase(ctx context.Context, in PurchaseInput) (PurchaseResult, error) {
	if strings.TrimSpace(in.SessionID) == "" || strings.TrimSpace(in.Token) == "" || in.ProductID == 0 {
		return PurchaseResult{}, ErrInvalidInput
	}
	if in.Quantity < 1 {
		return PurchaseResult{}, ErrInvalidQuantity
	}

	st, err := s.status.QueueStatus(ctx, in.SessionID, in.Token, in.ProductID)
	if err != nil {
		return PurchaseResult{}, err
	}
	if !st.CanPurchase {
		return PurchaseResult{}, &NotEligibleError{Position: st.Position, Expired: st.Expired}
	}
	key := waitroom.Key(in.SessionID, in.ProductID, in.Token)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("begin purchase tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	p, err := s.products.GetForUpdateTx(ctx, tx, in.ProductID)
	if errors.Is(err, repository.ErrProductNotFound) {
		return PurchaseResult{}, ErrResourceNotFound
	}
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("lock product %d: %w", in.ProductID, err)
	}

	promotedAt, claimed, err := s.store.Retire(ctx, key)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !claimed {
		return PurchaseResult{}, s.notEligible(ctx, key)
	}
	spent := false
	defer func() {
		if committed || spent {
			return
		}
		if err := s.store.Reinstate(context.WithoutCancel(ctx), key, promotedAt); err != nil {
			s.log.Error("reinstate token failed", zap.String("key", key), zap.Error(err))
		}
	}()

	if p.Stock < in.Quantity {
		spent = true
		return PurchaseResult{}, ErrInsufficientStock
	}
	if err := s.products.DecreaseStockTx(ctx, tx, p.ID, in.Quantity); err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			spent = true
			return PurchaseResult{}, ErrInsufficientStock
		}
		return PurchaseResult{}, fmt.Errorf("decrease stock: %w", err)
	}

	unit := p.UnitPrice(s.sale.IsActive(ctx))
	order := &model.Order{
		SessionID:  in.SessionID,
		ProductID:  p.ID,
		Quantity:   in.Quantity,
		TotalPrice: unit.Mul(decimal.NewFromInt(int64(in.Quantity))),
		Status:     model.OrderCompleted,
		OrderedAt:  s.now().UTC(),
	}
	if err := s.orders.CreateTx(ctx, tx, order); err != nil {
		return PurchaseResult{}, fmt.Errorf("create order: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return PurchaseResult{}, fmt.Errorf("commit purchase: %w", err)
	}
	committed = true

	s.log.Info("purchase completed",
		zap.Uint64("order_id", order.ID),
		zap.String("session_id", in.SessionID),
		zap.Uint64("product_id", p.ID),
		zap.Int("quantity", in.Quantity),
		zap.String("total_price", order.TotalPrice.String()))

	return PurchaseResult{
		OrderID:     order.ID,
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    in.Quantity,
		UnitPrice:   unit,
		TotalPrice:  order.TotalPrice,
	}, nil
}

// notEligible describes a token that lost the race to be spent.  It is
// normally expired (already spent or swept); a store error is reported the
// same way.
func (s *PurchaseService) notEligible(ctx context.Context, key string) error {
	rank, err := s.store.Rank(ctx, key)
	if err != nil {
		return &NotEligibleError{Expired: true}
	}
	return &NotEligibleError{Position: rank + 1}
}

// CancelOrder cancels an order and puts its units back in stock.
// Cancelling twice returns repository.ErrConflict.
func (s *PurchaseService) CancelOrder(ctx context.Context, orderID uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancel tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	productID, qty, err := s.orders.CancelTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if err := s.products.IncreaseStockTx(ctx, tx, productID, qty); err != nil {
		return fmt.Errorf("restock product %d: %w", productID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cancel: %w", err)
	}
	committed = true
	s.log.Info("order cancelled", zap.Uint64("order_id", orderID), zap.Uint64("product_id", productID), zap.Int("quantity", qty))
	return nil
}
