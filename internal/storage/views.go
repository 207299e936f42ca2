// Package storage scopes database access to transactional views.
//
// A ReadTx is a read-only view: it is never committed and Close always rolls it back.
// A WriteTx is a writable view whose lifecycle belongs to the caller: nothing in this
// module commits implicitly.
package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrMissingDatabase indicates that a view was requested without a database handle.
	ErrMissingDatabase = errors.New("storage: database handle is required")
	// ErrViewFinished indicates that a view was used after Commit, Rollback, or Close.
	ErrViewFinished = errors.New("storage: transaction already finished")
)

// View is any transactional view that can be read through.
type View interface {
	// Conn returns the gorm session bound to the underlying transaction.
	Conn() (*gorm.DB, error)
	// Writable reports whether mutations are permitted through this view.
	Writable() bool
}

// ReadTx is a read-only transactional view.
type ReadTx struct {
	tx       *gorm.DB
	finished bool
}

// BeginRead opens a read-only view over db.
func BeginRead(ctx context.Context, db *gorm.DB) (*ReadTx, error) {
	tx, err := begin(ctx, db)
	if err != nil {
		return nil, err
	}
	return &ReadTx{tx: tx}, nil
}

// Conn implements View.
func (r *ReadTx) Conn() (*gorm.DB, error) {
	if r == nil || r.finished {
		return nil, ErrViewFinished
	}
	return r.tx, nil
}

// Writable implements View.
func (r *ReadTx) Writable() bool {
	return false
}

// Close releases the view. Calling Close more than once is a no-op.
func (r *ReadTx) Close() error {
	if r == nil || r.finished {
		return nil
	}
	r.finished = true
	if err := r.tx.Rollback().Error; err != nil {
		return fmt.Errorf("storage: release read view: %w", err)
	}
	return nil
}

// WriteTx is a writable transactional view. The caller must Commit or Rollback it.
type WriteTx struct {
	tx       *gorm.DB
	finished bool
}

// BeginWrite opens a writable view over db.
func BeginWrite(ctx context.Context, db *gorm.DB) (*WriteTx, error) {
	tx, err := begin(ctx, db)
	if err != nil {
		return nil, err
	}
	return &WriteTx{tx: tx}, nil
}

// Conn implements View.
func (w *WriteTx) Conn() (*gorm.DB, error) {
	if w == nil || w.finished {
		return nil, ErrViewFinished
	}
	return w.tx, nil
}

// Writable implements View.
func (w *WriteTx) Writable() bool {
	return w != nil && !w.finished
}

// Commit makes the view's changes durable.
func (w *WriteTx) Commit() error {
	if w == nil || w.finished {
		return ErrViewFinished
	}
	w.finished = true
	if err := w.tx.Commit().Error; err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

// Rollback discards the view's changes. Rolling back a finished view is a no-op,
// so it is safe to defer right after BeginWrite.
func (w *WriteTx) Rollback() error {
	if w == nil || w.finished {
		return nil
	}
	w.finished = true
	if err := w.tx.Rollback().Error; err != nil {
		return fmt.Errorf("storage: rollback: %w", err)
	}
	return nil
}

func begin(ctx context.Context, db *gorm.DB) (*gorm.DB, error) {
	if db == nil {
		return nil, ErrMissingDatabase
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("storage: begin: %w", tx.Error)
	}
	return tx, nil
}
