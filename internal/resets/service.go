package resets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/syncreset/internal/resetstore"
	"github.com/MarcoPoloResearchLab/syncreset/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceError carries a stable operation.reason code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "resets.service.new"
	opTrack      = "resets.track"
	opClear      = "resets.clear"
	opPending    = "resets.pending"
	opUpgrade    = "resets.upgrade_legacy"
	opInspect    = "resets.inspect"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

const (
	EventResetTracked = "reset-tracked"
	EventResetCleared = "reset-cleared"
)

// Event announces a committed change to the pending reset.
type Event struct {
	Type      string
	Reset     resetstore.PendingReset
	Timestamp time.Time
}

// EventPublisher receives committed change events.
type EventPublisher interface {
	Publish(event Event)
}

// ServiceConfig describes the dependencies of the reset service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
	Events   EventPublisher
}

// Service runs each pending reset operation in its own transaction and commits it.
type Service struct {
	db     *gorm.DB
	store  *resetstore.Store
	clock  func() time.Time
	events EventPublisher
	logger *zap.Logger
}

// NewService validates cfg and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		db:     cfg.Database,
		store:  resetstore.NewStore(resetstore.StoreConfig{Clock: clock}),
		clock:  clock,
		events: cfg.Events,
		logger: logger,
	}, nil
}

// TrackRequest describes a reset to record.
type TrackRequest struct {
	Mode   resetstore.ResyncMode
	Action resetstore.Action
	Error  *resetstore.Status
}

// Track records a pending reset and returns it as stored.
func (s *Service) Track(ctx context.Context, request TrackRequest) (resetstore.PendingReset, error) {
	var tracked resetstore.PendingReset
	err := s.inWriteTx(ctx, opTrack, func(tx *storage.WriteTx) error {
		if err := s.store.TrackReset(tx, request.Mode, request.Action, request.Error); err != nil {
			return err
		}
		stored, err := s.store.HasPendingReset(tx)
		if err != nil {
			return err
		}
		if stored == nil {
			return errors.New("pending reset missing after insert")
		}
		tracked = *stored
		return nil
	})
	if err != nil {
		return resetstore.PendingReset{}, err
	}

	s.logger.Info("pending reset tracked",
		zap.String("mode", string(tracked.Mode)),
		zap.String("action", string(tracked.Action)),
		zap.Time("time", tracked.Time))
	s.publish(EventResetTracked, tracked)
	return tracked, nil
}

// Clear removes the pending reset and returns what was removed, if anything. A record
// that cannot be decoded is still removed; it is reported as nil and publishes no event.
func (s *Service) Clear(ctx context.Context) (*resetstore.PendingReset, error) {
	var cleared *resetstore.PendingReset
	err := s.inWriteTx(ctx, opClear, func(tx *storage.WriteTx) error {
		existing, err := s.store.HasPendingReset(tx)
		switch {
		case err == nil:
			cleared = existing
		case resetstore.IsStructural(err):
			// Clearing is how an unreadable record gets removed.
			s.loggerOrDefault().Warn("clearing unreadable pending reset",
				zap.String("operation", opClear),
				zap.Error(err))
		default:
			return err
		}
		return s.store.ClearPendingReset(tx)
	})
	if err != nil {
		return nil, err
	}

	if cleared != nil {
		s.logger.Info("pending reset cleared",
			zap.String("mode", string(cleared.Mode)),
			zap.String("action", string(cleared.Action)))
		s.publish(EventResetCleared, *cleared)
	}
	return cleared, nil
}

// Pending returns the pending reset, or nil when none is stored.
func (s *Service) Pending(ctx context.Context) (*resetstore.PendingReset, error) {
	var pending *resetstore.PendingReset
	err := s.inReadTx(ctx, opPending, func(view *storage.ReadTx) error {
		var err error
		pending, err = s.store.HasPendingReset(view)
		return err
	})
	return pending, err
}

// UpgradeLegacy moves a v1 pending reset into the current layout.
func (s *Service) UpgradeLegacy(ctx context.Context) (bool, error) {
	var moved bool
	err := s.inWriteTx(ctx, opUpgrade, func(tx *storage.WriteTx) error {
		var err error
		moved, err = s.store.UpgradeLegacy(tx)
		return err
	})
	if err != nil {
		return false, err
	}
	if moved {
		s.logger.Info("legacy pending reset upgraded")
	}
	return moved, nil
}

// Inspect reports the stored layouts without mutating.
func (s *Service) Inspect(ctx context.Context) (resetstore.SchemaReport, error) {
	var report resetstore.SchemaReport
	err := s.inReadTx(ctx, opInspect, func(view *storage.ReadTx) error {
		var err error
		report, err = resetstore.Inspect(view)
		return err
	})
	return report, err
}

func (s *Service) publish(eventType string, reset resetstore.PendingReset) {
	if s.events == nil {
		return
	}
	s.events.Publish(Event{
		Type:      eventType,
		Reset:     reset,
		Timestamp: s.clock().UTC(),
	})
}

func (s *Service) inWriteTx(ctx context.Context, operation string, fn func(tx *storage.WriteTx) error) error {
	if s == nil || s.db == nil {
		s.logError(operation, "missing_database", errMissingDatabase)
		return newServiceError(operation, "missing_database", errMissingDatabase)
	}
	tx, err := storage.BeginWrite(ctx, s.db)
	if err != nil {
		s.logError(operation, "begin_failed", err)
		return newServiceError(operation, "begin_failed", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		reason := classify(err)
		s.logError(operation, reason, err)
		return newServiceError(operation, reason, err)
	}
	if err := tx.Commit(); err != nil {
		s.logError(operation, "commit_failed", err)
		return newServiceError(operation, "commit_failed", err)
	}
	return nil
}

func (s *Service) inReadTx(ctx context.Context, operation string, fn func(view *storage.ReadTx) error) error {
	if s == nil || s.db == nil {
		s.logError(operation, "missing_database", errMissingDatabase)
		return newServiceError(operation, "missing_database", errMissingDatabase)
	}
	view, err := storage.BeginRead(ctx, s.db)
	if err != nil {
		s.logError(operation, "begin_failed", err)
		return newServiceError(operation, "begin_failed", err)
	}
	defer view.Close() //nolint:errcheck

	if err := fn(view); err != nil {
		reason := classify(err)
		s.logError(operation, reason, err)
		return newServiceError(operation, reason, err)
	}
	return nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, resetstore.ErrResetAlreadyTracked):
		return "already_tracked"
	case errors.Is(err, resetstore.ErrInvalidReset):
		return "invalid_reset"
	case resetstore.IsStructural(err):
		return "store_corrupted"
	default:
		return "store_failed"
	}
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	if reason == "already_tracked" || reason == "invalid_reset" {
		s.loggerOrDefault().Warn("reset service rejected request", attrs...)
		return
	}
	s.loggerOrDefault().Error("reset service error", attrs...)
}
