package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/catalog"
	"github.com/odyssey-erp/stockroom/internal/ledger"
	"github.com/odyssey-erp/stockroom/internal/partners"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransaction(ctx context.Context, accountID, id int64) (Transaction, error)
	ListTransactions(ctx context.Context, accountID int64, filter ListFilter) ([]Transaction, int, error)
	GetStockCard(ctx context.Context, filter StockCardFilter) ([]LedgerEntry, error)
}

// Locker serialises ledger writers per product.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort remembers processed request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// PartnerLookup validates partner references.
type PartnerLookup interface {
	Require(ctx context.Context, accountID, id int64, kind partners.Kind) error
}

// MetricsPort counts ledger outcomes.
type MetricsPort interface {
	MovementApplied(kind string)
	MovementRejected(reason string)
}

// ServiceDeps groups optional collaborators. Nil members are skipped.
type ServiceDeps struct {
	Audit       AuditPort
	Idempotency IdempotencyPort
	Partners    PartnerLookup
	Integration IntegrationHandler
	Metrics     MetricsPort
	Logger      *slog.Logger
}

// Service coordinates inventory operations. It is the only writer of product
// ledger fields.
type Service struct {
	repo   RepositoryPort
	locker Locker
	deps   ServiceDeps
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, locker Locker, deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		locker: locker,
		deps:   deps,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateTransaction validates and stores a draft transaction. The ledger is not touched.
func (s *Service) CreateTransaction(ctx context.Context, accountID int64, input CreateInput) (Transaction, error) {
	t := Transaction{
		Code:      strings.TrimSpace(input.Code),
		AccountID: accountID,
		PartnerID: input.PartnerID,
		Kind:      Kind(strings.ToUpper(strings.TrimSpace(string(input.Kind)))),
		Status:    StatusDraft,
		ProductID: catalog.NormalizeID(input.ProductID),
		Quantity:  input.Quantity,
		UnitCost:  input.UnitCost,
		UnitPrice: input.UnitPrice,
		Discount:  input.Discount,
		Note:      input.Note,
	}
	if err := s.prepare(ctx, &t); err != nil {
		s.reject(err)
		return Transaction{}, err
	}
	var created Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.InsertTransaction(ctx, t)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.record(ctx, created, "inventory:create")
	return created, nil
}

// SubmitTransaction moves a draft to pending.
func (s *Service) SubmitTransaction(ctx context.Context, accountID, id int64) (Transaction, error) {
	var submitted Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransactionForUpdate(ctx, accountID, id)
		if err != nil {
			return err
		}
		if t.Status != StatusDraft {
			return transitionError(t.Status, StatusPending)
		}
		t.Status = StatusPending
		submitted, err = tx.UpdateTransaction(ctx, t)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.record(ctx, submitted, "inventory:submit")
	return submitted, nil
}

// CompleteTransaction applies a pending transaction to the product ledger.
func (s *Service) CompleteTransaction(ctx context.Context, accountID, id int64) (Transaction, error) {
	current, err := s.repo.GetTransaction(ctx, accountID, id)
	if err != nil {
		return Transaction{}, err
	}
	var (
		completed Transaction
		events    []MovementPostedEvent
	)
	err = s.mutate(ctx, accountID, current.ProductID, func(ctx context.Context, tx TxRepository) error {
		events = events[:0]
		t, err := tx.GetTransactionForUpdate(ctx, accountID, id)
		if err != nil {
			return err
		}
		if !CanTransition(t.Status, StatusCompleted) {
			return transitionError(t.Status, StatusCompleted)
		}
		if err := s.checkPartner(ctx, t); err != nil {
			return err
		}
		now := s.now()
		evt, err := s.apply(ctx, tx, &t, now)
		if err != nil {
			return err
		}
		events = append(events, evt)
		t.Status = StatusCompleted
		t.CompletedAt = &now
		completed, err = tx.UpdateTransaction(ctx, t)
		return err
	})
	if err != nil {
		s.reject(err)
		return Transaction{}, err
	}
	s.afterCommit(ctx, completed, "inventory:complete", events)
	return completed, nil
}

// RecordImport creates and completes an import in one atomic unit.
func (s *Service) RecordImport(ctx context.Context, accountID int64, input ImportInput) (Transaction, error) {
	t := Transaction{
		Code:      strings.TrimSpace(input.Code),
		AccountID: accountID,
		PartnerID: input.PartnerID,
		Kind:      KindImport,
		ProductID: catalog.NormalizeID(input.ProductID),
		Quantity:  input.Quantity,
		UnitCost:  input.UnitCost,
		Note:      input.Note,
	}
	return s.postNew(ctx, t, input.IdempotencyKey)
}

// RecordExport creates and completes an export in one atomic unit.
func (s *Service) RecordExport(ctx context.Context, accountID int64, input ExportInput) (Transaction, error) {
	t := Transaction{
		Code:      strings.TrimSpace(input.Code),
		AccountID: accountID,
		PartnerID: input.PartnerID,
		Kind:      KindExport,
		ProductID: catalog.NormalizeID(input.ProductID),
		Quantity:  input.Quantity,
		UnitPrice: input.UnitPrice,
		Discount:  input.Discount,
		Note:      input.Note,
	}
	return s.postNew(ctx, t, input.IdempotencyKey)
}

func (s *Service) postNew(ctx context.Context, t Transaction, idemKey string) (Transaction, error) {
	if err := s.prepare(ctx, &t); err != nil {
		s.reject(err)
		return Transaction{}, err
	}
	key := ""
	if idemKey != "" && s.deps.Idempotency != nil {
		key = fmt.Sprintf("inventory:%d:%s:%s", t.AccountID, t.Kind, idemKey)
		if err := s.deps.Idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
			return Transaction{}, err
		}
	}
	var (
		completed Transaction
		events    []MovementPostedEvent
	)
	err := s.mutate(ctx, t.AccountID, t.ProductID, func(ctx context.Context, tx TxRepository) error {
		events = events[:0]
		now := s.now()
		submitted := t
		submitted.Status = StatusPending
		inserted, err := tx.InsertTransaction(ctx, submitted)
		if err != nil {
			return err
		}
		evt, err := s.apply(ctx, tx, &inserted, now)
		if err != nil {
			return err
		}
		events = append(events, evt)
		inserted.Status = StatusCompleted
		inserted.CompletedAt = &now
		completed, err = tx.UpdateTransaction(ctx, inserted)
		return err
	})
	if err != nil {
		if key != "" {
			_ = s.deps.Idempotency.Delete(ctx, key)
		}
		s.reject(err)
		return Transaction{}, err
	}
	s.afterCommit(ctx, completed, "inventory:"+strings.ToLower(string(completed.Kind)), events)
	return completed, nil
}

// UpdateTransaction edits quantity, prices, discount or note. A completed
// transaction is reversed and re-applied inside the same atomic unit.
func (s *Service) UpdateTransaction(ctx context.Context, accountID, id int64, input UpdateInput) (Transaction, error) {
	current, err := s.repo.GetTransaction(ctx, accountID, id)
	if err != nil {
		return Transaction{}, err
	}
	var (
		updated Transaction
		events  []MovementPostedEvent
	)
	err = s.mutate(ctx, accountID, current.ProductID, func(ctx context.Context, tx TxRepository) error {
		events = events[:0]
		t, err := tx.GetTransactionForUpdate(ctx, accountID, id)
		if err != nil {
			return err
		}
		if t.Status == StatusCancelled {
			return fmt.Errorf("%w: cancelled transactions cannot be edited", ErrInvalidTransition)
		}
		before := t
		applyUpdate(&t, input)
		if err := validateAmounts(t); err != nil {
			return err
		}
		t.TotalAmount = t.Total()
		if t.Status == StatusCompleted {
			now := s.now()
			evt, err := s.reverse(ctx, tx, before, now)
			if err != nil {
				return err
			}
			events = append(events, evt)
			evt, err = s.apply(ctx, tx, &t, now)
			if err != nil {
				return err
			}
			events = append(events, evt)
		}
		updated, err = tx.UpdateTransaction(ctx, t)
		return err
	})
	if err != nil {
		s.reject(err)
		return Transaction{}, err
	}
	s.afterCommit(ctx, updated, "inventory:update", events)
	return updated, nil
}

// CancelTransaction cancels a transaction, reversing its ledger effect when completed.
func (s *Service) CancelTransaction(ctx context.Context, accountID, id int64) (Transaction, error) {
	current, err := s.repo.GetTransaction(ctx, accountID, id)
	if err != nil {
		return Transaction{}, err
	}
	var (
		cancelled Transaction
		events    []MovementPostedEvent
	)
	err = s.mutate(ctx, accountID, current.ProductID, func(ctx context.Context, tx TxRepository) error {
		events = events[:0]
		t, err := tx.GetTransactionForUpdate(ctx, accountID, id)
		if err != nil {
			return err
		}
		if !CanTransition(t.Status, StatusCancelled) {
			return transitionError(t.Status, StatusCancelled)
		}
		if t.Status == StatusCompleted {
			evt, err := s.reverse(ctx, tx, t, s.now())
			if err != nil {
				return err
			}
			events = append(events, evt)
		}
		t.Status = StatusCancelled
		cancelled, err = tx.UpdateTransaction(ctx, t)
		return err
	})
	if err != nil {
		s.reject(err)
		return Transaction{}, err
	}
	s.afterCommit(ctx, cancelled, "inventory:cancel", events)
	return cancelled, nil
}

// DeleteTransaction removes a transaction that never reached the ledger or was cancelled.
func (s *Service) DeleteTransaction(ctx context.Context, accountID, id int64) error {
	var deleted Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransactionForUpdate(ctx, accountID, id)
		if err != nil {
			return err
		}
		if !Deletable(t.Status) {
			return fmt.Errorf("%w: %s transactions cannot be deleted", ErrInvalidTransition, t.Status)
		}
		deleted = t
		return tx.DeleteTransaction(ctx, accountID, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, deleted, "inventory:delete")
	return nil
}

// GetTransaction fetches one transaction.
func (s *Service) GetTransaction(ctx context.Context, accountID, id int64) (Transaction, error) {
	return s.repo.GetTransaction(ctx, accountID, id)
}

// ListTransactions returns a page of transactions, newest first.
func (s *Service) ListTransactions(ctx context.Context, accountID int64, filter ListFilter) ([]Transaction, shared.Pagination, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidTransaction, filter.Kind)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransaction, filter.Status)
	}
	filter.ProductID = catalog.NormalizeID(filter.ProductID)
	filter.Limit, filter.Offset = shared.NormalizeLimit(filter.Limit, filter.Offset)
	items, total, err := s.repo.ListTransactions(ctx, accountID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Limit, filter.Offset, total), nil
}

// GetStockCard lists the ledger entries of one product in application order.
func (s *Service) GetStockCard(ctx context.Context, filter StockCardFilter) ([]LedgerEntry, error) {
	filter.ProductID = catalog.NormalizeID(filter.ProductID)
	if filter.AccountID == 0 || filter.ProductID == "" {
		return nil, fmt.Errorf("%w: account and product required", ErrInvalidTransaction)
	}
	if filter.Limit <= 0 || filter.Limit > shared.MaxLimit {
		filter.Limit = shared.MaxLimit
	}
	return s.repo.GetStockCard(ctx, filter)
}

// mutate runs fn under the product lock inside one repository transaction.
func (s *Service) mutate(ctx context.Context, accountID int64, productID string, fn func(context.Context, TxRepository) error) error {
	unlock, err := s.locker.Lock(ctx, shared.ProductLockKey(accountID, productID))
	if err != nil {
		return err
	}
	defer unlock()
	return s.repo.WithTx(ctx, fn)
}

// apply posts t to its product ledger, stamping seq, cost basis and profit on t.
func (s *Service) apply(ctx context.Context, tx TxRepository, t *Transaction, now time.Time) (MovementPostedEvent, error) {
	pl, err := tx.GetLedgerForUpdate(ctx, t.AccountID, t.ProductID)
	if err != nil {
		return MovementPostedEvent{}, err
	}
	entry := LedgerEntry{
		AccountID: t.AccountID,
		ProductID: t.ProductID,
		TxCode:    t.Code,
		PostedAt:  now,
		Note:      t.Note,
	}
	var next ledger.State
	switch t.Kind {
	case KindImport:
		next, err = ledger.ApplyImport(pl.State, t.Quantity, t.UnitCost)
		if err != nil {
			return MovementPostedEvent{}, err
		}
		entry.Kind = EntryImport
		entry.QtyIn = t.Quantity
		entry.UnitCost = t.UnitCost
	case KindExport:
		if t.Quantity.GreaterThan(pl.State.OnHand) {
			return MovementPostedEvent{}, &ledger.InsufficientStockError{Requested: t.Quantity, Available: pl.State.OnHand}
		}
		var sale ledger.Sale
		next, sale, err = ledger.ApplyExport(pl.State, t.Quantity, t.UnitPrice)
		if err != nil {
			return MovementPostedEvent{}, err
		}
		t.CostBasis = sale.CostBasis
		t.Profit = sale.Profit.Sub(t.Discount)
		entry.Kind = EntryExport
		entry.QtyOut = t.Quantity
		entry.UnitCost = sale.CostBasis
	default:
		return MovementPostedEvent{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidTransaction, t.Kind)
	}
	return s.post(ctx, tx, pl, next, t, entry)
}

// reverse undoes the ledger effect of a completed transaction.
func (s *Service) reverse(ctx context.Context, tx TxRepository, t Transaction, now time.Time) (MovementPostedEvent, error) {
	pl, err := tx.GetLedgerForUpdate(ctx, t.AccountID, t.ProductID)
	if err != nil {
		return MovementPostedEvent{}, err
	}
	entry := LedgerEntry{
		AccountID: t.AccountID,
		ProductID: t.ProductID,
		TxCode:    t.Code,
		PostedAt:  now,
		Note:      "reversal of " + t.Code,
	}
	var next ledger.State
	switch t.Kind {
	case KindImport:
		next, err = ledger.ReverseImport(pl.State, t.Quantity, t.UnitCost)
		entry.Kind = EntryReverseImport
		entry.QtyOut = t.Quantity
		entry.UnitCost = t.UnitCost
	case KindExport:
		next, err = ledger.ReverseExport(pl.State, t.Quantity, t.CostBasis)
		entry.Kind = EntryReverseExport
		entry.QtyIn = t.Quantity
		entry.UnitCost = t.CostBasis
	default:
		err = fmt.Errorf("%w: unknown kind %q", ErrInvalidTransaction, t.Kind)
	}
	if err != nil {
		return MovementPostedEvent{}, err
	}
	return s.post(ctx, tx, pl, next, &t, entry)
}

func (s *Service) post(ctx context.Context, tx TxRepository, pl ProductLedger, next ledger.State, t *Transaction, entry LedgerEntry) (MovementPostedEvent, error) {
	if err := ledger.Check(next); err != nil {
		return MovementPostedEvent{}, err
	}
	updated, err := tx.UpdateLedger(ctx, ProductLedger{
		AccountID: pl.AccountID,
		ProductID: pl.ProductID,
		State:     next,
		Version:   pl.Version,
	})
	if err != nil {
		return MovementPostedEvent{}, err
	}
	t.Seq = updated.Version
	entry.TxID = &t.ID
	entry.BalanceQty = next.OnHand
	entry.BalanceCost = next.AvgCost
	entry.Seq = updated.Version
	if err := tx.InsertLedgerEntry(ctx, entry); err != nil {
		return MovementPostedEvent{}, err
	}
	return eventFromEntry(entry, t.ID), nil
}

// prepare normalises and validates a transaction before it is stored.
func (s *Service) prepare(ctx context.Context, t *Transaction) error {
	if !t.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTransaction, t.Kind)
	}
	if t.ProductID == "" {
		return fmt.Errorf("%w: product id required", ErrInvalidTransaction)
	}
	if t.Kind == KindImport {
		t.UnitPrice = decimal.Zero
		t.Discount = decimal.Zero
	} else {
		t.UnitCost = decimal.Zero
	}
	if err := validateAmounts(*t); err != nil {
		return err
	}
	if err := s.checkPartner(ctx, *t); err != nil {
		return err
	}
	if t.Code == "" {
		t.Code = newCode(t.Kind, s.now())
	}
	t.TotalAmount = t.Total()
	return nil
}

func (s *Service) checkPartner(ctx context.Context, t Transaction) error {
	if t.PartnerID == nil || s.deps.Partners == nil {
		return nil
	}
	kind := partners.KindSupplier
	if t.Kind == KindExport {
		kind = partners.KindCustomer
	}
	return s.deps.Partners.Require(ctx, t.AccountID, *t.PartnerID, kind)
}

// afterCommit runs side effects that must not roll back the ledger.
func (s *Service) afterCommit(ctx context.Context, t Transaction, action string, events []MovementPostedEvent) {
	for _, evt := range events {
		if s.deps.Metrics != nil {
			s.deps.Metrics.MovementApplied(string(evt.Kind))
		}
		if s.deps.Integration == nil {
			continue
		}
		if err := s.deps.Integration.HandleMovementPosted(ctx, evt); err != nil {
			s.logger.Warn("movement integration failed",
				slog.String("tx_code", evt.TxCode),
				slog.String("product_id", evt.ProductID),
				slog.Any("error", err))
		}
	}
	s.record(ctx, t, action)
}

func (s *Service) record(ctx context.Context, t Transaction, action string) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Record(ctx, shared.AuditLog{
		AccountID: t.AccountID,
		Action:    action,
		Entity:    "inventory_tx",
		EntityID:  strconv.FormatInt(t.ID, 10),
		Meta: map[string]any{
			"code":       t.Code,
			"kind":       string(t.Kind),
			"status":     string(t.Status),
			"product_id": t.ProductID,
			"quantity":   t.Quantity.String(),
			"seq":        t.Seq,
		},
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) reject(err error) {
	if s.deps.Metrics == nil || err == nil {
		return
	}
	s.deps.Metrics.MovementRejected(rejectReason(err))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ledger.ErrLedgerInconsistency):
		return "inconsistency"
	case errors.Is(err, ledger.ErrInvalidQuantity), errors.Is(err, ledger.ErrInvalidPrice), errors.Is(err, ErrInvalidTransaction):
		return "validation"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrVersionConflict), errors.Is(err, shared.ErrLockTimeout):
		return "conflict"
	case errors.Is(err, catalog.ErrProductNotFound), errors.Is(err, ErrTransactionNotFound):
		return "not_found"
	}
	return "error"
}

func applyUpdate(t *Transaction, input UpdateInput) {
	if input.Quantity != nil {
		t.Quantity = *input.Quantity
	}
	if input.Note != nil {
		t.Note = *input.Note
	}
	if t.Kind == KindImport {
		if input.UnitCost != nil {
			t.UnitCost = *input.UnitCost
		}
		return
	}
	if input.UnitPrice != nil {
		t.UnitPrice = *input.UnitPrice
	}
	if input.Discount != nil {
		t.Discount = *input.Discount
	}
}

// Decimal places the ledger tables store for quantities and money amounts.
// Unit costs are stored at ledger.CostScale.
const (
	QuantityScale int32 = 6
	PriceScale    int32 = 4
)

func validateAmounts(t Transaction) error {
	if !t.Quantity.IsPositive() {
		return fmt.Errorf("%w: got %s", ledger.ErrInvalidQuantity, t.Quantity)
	}
	if !fitsScale(t.Quantity, QuantityScale) {
		return fmt.Errorf("%w: at most %d decimal places, got %s", ledger.ErrInvalidQuantity, QuantityScale, t.Quantity)
	}
	if t.UnitCost.IsNegative() || t.UnitPrice.IsNegative() {
		return ledger.ErrInvalidPrice
	}
	if !fitsScale(t.UnitCost, ledger.CostScale) {
		return fmt.Errorf("%w: unit cost has more than %d decimal places", ledger.ErrInvalidPrice, ledger.CostScale)
	}
	if !fitsScale(t.UnitPrice, PriceScale) || !fitsScale(t.Discount, PriceScale) {
		return fmt.Errorf("%w: amounts have at most %d decimal places", ledger.ErrInvalidPrice, PriceScale)
	}
	if t.Discount.IsNegative() {
		return fmt.Errorf("%w: discount must be >= 0", ErrInvalidTransaction)
	}
	if t.Kind == KindExport && t.Discount.GreaterThan(t.Quantity.Mul(t.UnitPrice)) {
		return fmt.Errorf("%w: discount exceeds sale amount", ErrInvalidTransaction)
	}
	return nil
}

func fitsScale(v decimal.Decimal, scale int32) bool {
	return v.Equal(v.Truncate(scale))
}

func newCode(kind Kind, now time.Time) string {
	prefix := "IMP"
	if kind == KindExport {
		prefix = "EXP"
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}
