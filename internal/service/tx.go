package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// compensator collects inverse operations for work done outside a database
// transaction (db == nil). A nil compensator ignores pushes.
type compensator struct {
	undo []func() error
}

func (c *compensator) push(fn func() error) {
	if c == nil {
		return
	}
	c.undo = append(c.undo, fn)
}

func (c *compensator) rollback(op string) {
	for i := len(c.undo) - 1; i >= 0; i-- {
		if err := c.undo[i](); err != nil {
			log.Error().Err(err).Str("op", op).Msg("compensation step failed")
		}
	}
	if len(c.undo) > 0 {
		log.Warn().Str("op", op).Int("steps", len(c.undo)).Msg("partial work compensated")
	}
}

// runTx executes fn inside a GORM transaction when db is available. When db
// is nil (in-memory repositories) fn runs inline and a failure replays the
// pushed compensations instead of a database rollback.
func runTx(ctx context.Context, op string, db *gorm.DB, fn func(tx *gorm.DB, comp *compensator) error) error {
	if db == nil {
		comp := &compensator{}
		if err := fn(nil, comp); err != nil {
			comp.rollback(op)
			return err
		}
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, nil)
	})
}

// Locks serializes read-modify-write sequences inside the process. Products
// is always acquired before Invoices; nothing takes them the other way round.
// Row locks (SELECT … FOR UPDATE) cover other processes sharing the database.
type Locks struct {
	products sync.Mutex
	invoices sync.Mutex
}

func NewLocks() *Locks { return &Locks{} }

// Stock locks the product aggregate.
func (l *Locks) Stock() (unlock func()) {
	l.products.Lock()
	return l.products.Unlock
}

// Ledger locks products then invoices.
func (l *Locks) Ledger() (unlock func()) {
	l.products.Lock()
	l.invoices.Lock()
	return func() {
		l.invoices.Unlock()
		l.products.Unlock()
	}
}

// Invoices locks the invoice aggregate alone (payments never touch stock).
func (l *Locks) Invoices() (unlock func()) {
	l.invoices.Lock()
	return l.invoices.Unlock
}
