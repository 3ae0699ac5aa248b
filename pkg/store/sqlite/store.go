// Package sqlite implements [store.Store] on SQLite through gorm.
//
// All access goes through a single connection, so transactions within one
// process never contend; separate processes sharing a database file are
// serialized by SQLite's own locking.
package sqlite

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/matzehuels/certforge/pkg/certificate"
	"github.com/matzehuels/certforge/pkg/store"
)

// Store is a SQLite-backed certificate store.
type Store struct {
	db     *gorm.DB
	logger *log.Logger
}

// Open opens (creating if needed) the database at path. An empty path or
// ":memory:" opens a private in-memory database.
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	var dsn string
	if path == "" || path == ":memory:" {
		dsn = fmt.Sprintf("file:certforge-%s?mode=memory&cache=shared", uuid.NewString())
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		sqlDB.Close()
		return nil, err
	}
	for _, model := range migrateModels {
		logger.Debug("migrating table", "model", fmt.Sprintf("%T", model))
		if err := db.AutoMigrate(model); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("migrate %T: %w", model, err)
		}
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Get(ctx context.Context, eventID, userID string) (*certificate.Certificate, error) {
	var row Certificate
	err := s.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Take(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toCertificate(), nil
}

func (s *Store) GetByNumber(ctx context.Context, eventID, number string) (*certificate.Certificate, error) {
	var row Certificate
	err := s.db.WithContext(ctx).
		Where("event_id = ? AND number = ?", eventID, number).
		Take(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toCertificate(), nil
}

func (s *Store) List(ctx context.Context, eventID string) ([]certificate.Certificate, error) {
	var rows []Certificate
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("sequence ASC").Order("number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]certificate.Certificate, len(rows))
	for i, r := range rows {
		out[i] = *r.toCertificate()
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, c *certificate.Certificate) error {
	row := fromCertificate(c)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Certificate{}).
			Where("event_id = ? AND user_id = ?", c.EventID, c.UserID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return store.ErrDuplicateCertificate
		}

		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return store.ErrNumberTaken
			}
			return err
		}
		return nil
	})
}

func (s *Store) Sequence(ctx context.Context, eventID string) (int64, error) {
	var row EventSequence
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return row.Value, err
}

func (s *Store) CompareAndSwapSequence(ctx context.Context, eventID string, prev, next int64) (bool, error) {
	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&EventSequence{EventID: eventID, Value: 0}).Error; err != nil {
		return false, err
	}
	res := db.Model(&EventSequence{}).
		Where("event_id = ? AND value = ?", eventID, prev).
		Update("value", next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) Claim(ctx context.Context, eventID, userID, owner string, ttl time.Duration) error {
	db := s.db.WithContext(ctx)
	now := time.Now().UnixNano()

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&GenerationClaim{
		EventID:   eventID,
		UserID:    userID,
		Owner:     owner,
		ClaimedAt: now,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var existing GenerationClaim
	err := db.Where("event_id = ? AND user_id = ?", eventID, userID).Take(&existing).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		// Released between our insert and read; try once more.
		return s.Claim(ctx, eventID, userID, owner, ttl)
	}
	if err != nil {
		return err
	}
	if existing.Owner != owner && time.Duration(now-existing.ClaimedAt) < ttl {
		return store.ErrClaimHeld
	}

	// Our own claim, or an abandoned one: take it over if nobody else did.
	res = db.Model(&GenerationClaim{}).
		Where("event_id = ? AND user_id = ? AND owner = ? AND claimed_at = ?",
			eventID, userID, existing.Owner, existing.ClaimedAt).
		Updates(map[string]any{"owner": owner, "claimed_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return store.ErrClaimHeld
	}
	if existing.Owner != owner {
		s.logger.Warn("took over stale generation claim", "event", eventID, "user", userID, "previous", existing.Owner)
	}
	return nil
}

func (s *Store) Release(ctx context.Context, eventID, userID, owner string) error {
	return s.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ? AND owner = ?", eventID, userID, owner).
		Delete(&GenerationClaim{}).Error
}

func isUniqueViolation(err error) bool {
	return stderrors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ store.Store = (*Store)(nil)
