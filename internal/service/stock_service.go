package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"bodega/internal/dto"
	"bodega/internal/logger"
	"bodega/internal/model"
	"bodega/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// StockChange is one quantity change against one product. When Kind is set,
// only the magnitude of Delta is used and Kind gives the direction (the
// manual entry/exit form works that way); otherwise the sign of Delta does.
type StockChange struct {
	ProductID   string
	Delta       int
	Kind        model.AdjustmentKind
	Reason      string
	User        string
	Note        string
	ReferenceID *uuid.UUID
}

// signed returns the arithmetic delta and the kind to record.
func (c StockChange) signed() (int, model.AdjustmentKind) {
	switch c.Kind {
	case model.AdjustmentEntry:
		return abs(c.Delta), model.AdjustmentEntry
	case model.AdjustmentExit:
		return -abs(c.Delta), model.AdjustmentExit
	}
	return c.Delta, model.KindFor(c.Delta)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// productRefs reports how many invoices reference any of the given products.
type productRefs interface {
	CountByProducts(ctx context.Context, productIDs []string) (int64, error)
}

// StockService is the stock ledger: product quantities and their adjustment
// history.
type StockService interface {
	CreateProduct(ctx context.Context, user string, req dto.CreateProductRequest) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter) ([]model.Product, int64, error)
	UpdateProduct(ctx context.Context, id string, req dto.UpdateProductRequest) (*model.Product, error)
	// DeleteProducts removes all ids or none. Products referenced by invoices
	// are refused unless force is set.
	DeleteProducts(ctx context.Context, ids []string, force bool) error

	AdjustStock(ctx context.Context, c StockChange) (*model.StockAdjustment, error)
	// ForceAdjustStock skips the zero floor. It exists to correct history,
	// e.g. after deletions that should have restored stock.
	ForceAdjustStock(ctx context.Context, c StockChange) (*model.StockAdjustment, error)
	// BatchAdjust applies every delta or none of them.
	BatchAdjust(ctx context.Context, deltas map[string]int, reason, user string) error
	BulkAdjust(ctx context.Context, changes []StockChange) ([]model.StockAdjustment, error)
	ListAdjustments(ctx context.Context, filter repository.AdjustmentFilter) ([]model.StockAdjustment, int64, error)

	// ApplyTx applies changes inside the caller's transaction. The caller
	// must hold the stock lock.
	ApplyTx(ctx context.Context, tx *gorm.DB, comp *compensator, changes []StockChange, force bool) ([]model.StockAdjustment, error)
}

type stockService struct {
	products    repository.ProductRepository
	adjustments repository.StockAdjustmentRepository
	refs        productRefs
	locks       *Locks
	log         zerolog.Logger
}

func NewStockService(
	products repository.ProductRepository,
	adjustments repository.StockAdjustmentRepository,
	refs productRefs,
	locks *Locks,
) StockService {
	return &stockService{
		products:    products,
		adjustments: adjustments,
		refs:        refs,
		locks:       locks,
		log:         logger.WithComponent("stock"),
	}
}

// ── Products ─────────────────────────────────────────────────────────────────

func (s *stockService) CreateProduct(ctx context.Context, user string, req dto.CreateProductRequest) (*model.Product, error) {
	const op = "CreateProduct"
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return nil, validationErr(op, "id is required")
	}
	if !req.Price.IsPositive() {
		return nil, validationErr(op, "price must be positive")
	}
	if req.DistributorPrice != nil && req.DistributorPrice.IsNegative() {
		return nil, validationErr(op, "distributor price must not be negative")
	}
	if req.Quantity < 0 {
		return nil, newErr(op, ErrValidation, id, "quantity must not be negative")
	}

	unlock := s.locks.Stock()
	defer unlock()

	if _, err := s.products.FindByID(ctx, id); err == nil {
		return nil, newErr(op, ErrValidation, id, "product already exists")
	}

	p := &model.Product{
		ID:               id,
		Name:             strings.TrimSpace(req.Name),
		Category:         strings.TrimSpace(req.Category),
		Price:            req.Price,
		DistributorPrice: req.DistributorPrice,
		Image:            req.Image,
	}
	err := runTx(ctx, op, s.products.DB(), func(tx *gorm.DB, comp *compensator) error {
		if err := s.products.CreateTx(ctx, tx, p); err != nil {
			return classify(op, id, err)
		}
		if req.Quantity == 0 {
			return nil
		}
		_, err := s.ApplyTx(ctx, tx, comp, []StockChange{{
			ProductID: id,
			Delta:     req.Quantity,
			Kind:      model.AdjustmentEntry,
			Reason:    "initial stock",
			User:      user,
		}}, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	p.Quantity = req.Quantity
	return p, nil
}

func (s *stockService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, classify("GetProduct", id, err)
	}
	return p, nil
}

func (s *stockService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]model.Product, int64, error) {
	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, 0, classify("ListProducts", "", err)
	}
	return products, total, nil
}

func (s *stockService) UpdateProduct(ctx context.Context, id string, req dto.UpdateProductRequest) (*model.Product, error) {
	const op = "UpdateProduct"
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, classify(op, id, err)
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		p.Category = strings.TrimSpace(*req.Category)
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return nil, newErr(op, ErrValidation, id, "price must be positive")
		}
		p.Price = *req.Price
	}
	if req.DistributorPrice != nil {
		if req.DistributorPrice.IsNegative() {
			return nil, newErr(op, ErrValidation, id, "distributor price must not be negative")
		}
		p.DistributorPrice = req.DistributorPrice
	}
	if req.Image != nil {
		p.Image = *req.Image
	}
	if err := s.products.Update(ctx, p); err != nil {
		return nil, classify(op, id, err)
	}
	return p, nil
}

func (s *stockService) DeleteProducts(ctx context.Context, ids []string, force bool) error {
	const op = "DeleteProducts"
	ids = uniqueSorted(ids)
	if len(ids) == 0 {
		return validationErr(op, "no product ids given")
	}

	unlock := s.locks.Stock()
	defer unlock()

	if !force && s.refs != nil {
		n, err := s.refs.CountByProducts(ctx, ids)
		if err != nil {
			return classify(op, "", err)
		}
		if n > 0 {
			return newErr(op, ErrValidation, strings.Join(ids, ","),
				fmt.Sprintf("referenced by %d invoice(s); pass force to delete anyway", n))
		}
	}

	return runTx(ctx, op, s.products.DB(), func(tx *gorm.DB, _ *compensator) error {
		found, err := s.products.LockTx(ctx, tx, ids)
		if err != nil {
			return classify(op, "", err)
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				return notFound(op, id)
			}
		}
		if err := s.products.DeleteTx(ctx, tx, ids); err != nil {
			return classify(op, "", err)
		}
		s.log.Info().Strs("products", ids).Bool("force", force).Msg("products deleted")
		return nil
	})
}

// ── Adjustments ──────────────────────────────────────────────────────────────

func (s *stockService) AdjustStock(ctx context.Context, c StockChange) (*model.StockAdjustment, error) {
	return s.adjustOne(ctx, "AdjustStock", c, false)
}

func (s *stockService) ForceAdjustStock(ctx context.Context, c StockChange) (*model.StockAdjustment, error) {
	return s.adjustOne(ctx, "ForceAdjustStock", c, true)
}

func (s *stockService) adjustOne(ctx context.Context, op string, c StockChange, force bool) (*model.StockAdjustment, error) {
	if c.Delta == 0 {
		return nil, newErr(op, ErrValidation, c.ProductID, "quantity must not be zero")
	}
	if strings.TrimSpace(c.Reason) == "" {
		return nil, newErr(op, ErrValidation, c.ProductID, "reason is required")
	}

	unlock := s.locks.Stock()
	defer unlock()

	var out []model.StockAdjustment
	err := runTx(ctx, op, s.products.DB(), func(tx *gorm.DB, comp *compensator) error {
		var err error
		out, err = s.ApplyTx(ctx, tx, comp, []StockChange{c}, force)
		return err
	})
	if err != nil {
		return nil, err
	}
	if force {
		s.log.Warn().Str("product", c.ProductID).Int("delta", c.Delta).Str("user", c.User).Msg("forced stock adjustment")
	}
	return &out[0], nil
}

func (s *stockService) BatchAdjust(ctx context.Context, deltas map[string]int, reason, user string) error {
	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	changes := make([]StockChange, 0, len(ids))
	for _, id := range ids {
		changes = append(changes, StockChange{ProductID: id, Delta: deltas[id], Reason: reason, User: user})
	}

	unlock := s.locks.Stock()
	defer unlock()

	return runTx(ctx, "BatchAdjust", s.products.DB(), func(tx *gorm.DB, comp *compensator) error {
		_, err := s.ApplyTx(ctx, tx, comp, changes, false)
		return err
	})
}

func (s *stockService) BulkAdjust(ctx context.Context, changes []StockChange) ([]model.StockAdjustment, error) {
	const op = "BulkAdjust"
	if len(changes) == 0 {
		return nil, validationErr(op, "no changes given")
	}
	for _, c := range changes {
		if c.Delta == 0 {
			return nil, newErr(op, ErrValidation, c.ProductID, "quantity must not be zero")
		}
	}

	unlock := s.locks.Stock()
	defer unlock()

	var out []model.StockAdjustment
	err := runTx(ctx, op, s.products.DB(), func(tx *gorm.DB, comp *compensator) error {
		var err error
		out, err = s.ApplyTx(ctx, tx, comp, changes, false)
		return err
	})
	return out, err
}

// ApplyTx locks the affected products, checks every resulting quantity, and
// only then writes. Product ids are trimmed and must not be blank. Zero deltas
// are skipped. A write failure part-way is undone
// by the surrounding transaction, or by comp when there is none.
func (s *stockService) ApplyTx(
	ctx context.Context,
	tx *gorm.DB,
	comp *compensator,
	changes []StockChange,
	force bool,
) ([]model.StockAdjustment, error) {
	const op = "ApplyStock"

	normalized := make([]StockChange, len(changes))
	ids := make([]string, 0, len(changes))
	for i, c := range changes {
		c.ProductID = strings.TrimSpace(c.ProductID)
		if c.ProductID == "" {
			return nil, validationErr(op, "product id is required")
		}
		normalized[i] = c
		ids = append(ids, c.ProductID)
	}
	changes = normalized
	ids = uniqueSorted(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	products, err := s.products.LockTx(ctx, tx, ids)
	if err != nil {
		return nil, classify(op, "", err)
	}

	type planned struct {
		change StockChange
		delta  int
		kind   model.AdjustmentKind
		before int
	}
	running := make(map[string]int, len(products))
	plan := make([]planned, 0, len(changes))
	for _, c := range changes {
		p, ok := products[c.ProductID]
		if !ok {
			return nil, notFound(op, c.ProductID)
		}
		delta, kind := c.signed()
		if delta == 0 {
			continue
		}
		before, seen := running[c.ProductID]
		if !seen {
			before = p.Quantity
		}
		after := before + delta
		if after < 0 && !force {
			return nil, newErr(op, ErrInsufficientStock, c.ProductID,
				fmt.Sprintf("%s has %d, needs %d", p.Name, before, -delta))
		}
		running[c.ProductID] = after
		plan = append(plan, planned{change: c, delta: delta, kind: kind, before: before})
	}

	out := make([]model.StockAdjustment, 0, len(plan))
	for _, step := range plan {
		id, delta := step.change.ProductID, step.delta
		if err := s.products.UpdateStockTx(ctx, tx, id, delta); err != nil {
			return nil, classify(op, id, err)
		}
		comp.push(func() error { return s.products.UpdateStockTx(ctx, nil, id, -delta) })

		adj := model.StockAdjustment{
			ID:          uuid.New(),
			ProductID:   id,
			Kind:        step.kind,
			Quantity:    abs(delta),
			StockBefore: step.before,
			StockAfter:  step.before + delta,
			Reason:      step.change.Reason,
			User:        step.change.User,
			Note:        step.change.Note,
			Forced:      force,
			ReferenceID: step.change.ReferenceID,
		}
		if err := s.adjustments.CreateTx(ctx, tx, &adj); err != nil {
			return nil, classify(op, id, err)
		}
		adjID := adj.ID
		comp.push(func() error { return s.adjustments.DeleteTx(ctx, nil, adjID) })
		out = append(out, adj)
	}
	return out, nil
}

func (s *stockService) ListAdjustments(ctx context.Context, filter repository.AdjustmentFilter) ([]model.StockAdjustment, int64, error) {
	adjustments, total, err := s.adjustments.List(ctx, filter)
	if err != nil {
		return nil, 0, classify("ListAdjustments", filter.ProductID, err)
	}
	return adjustments, total, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
