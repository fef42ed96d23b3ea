package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clinicflow/drafthub/internal/model"
)

type pgStateStore struct {
	db    *gorm.DB
	clock clockwork.Clock
}

// NewPGStateStore returns a StateStore backed by the draft_records table.
// Expired rows are hidden from reads and removed by PurgeExpired.
func NewPGStateStore(db *gorm.DB, clock clockwork.Clock) StateStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &pgStateStore{db: db, clock: clock}
}

func (s *pgStateStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.clock.Now()
	rec := model.DraftRecord{
		Key:       key,
		Payload:   value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		rec.ExpiresAt = &exp
	}

	// Full replacement: every column but created_at is overwritten.
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "expires_at", "updated_at"}),
		}).
		Create(&rec).Error
}

func (s *pgStateStore) Get(ctx context.Context, key string) ([]byte, error) {
	var rec model.DraftRecord
	err := s.live(ctx).Where("key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.Payload, nil
}

func (s *pgStateStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&model.DraftRecord{}).Error
}

func (s *pgStateStore) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	if err := s.live(ctx).Model(&model.DraftRecord{}).Where("key = ?", key).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *pgStateStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", s.clock.Now()).
		Delete(&model.DraftRecord{})
	return res.RowsAffected, res.Error
}

func (s *pgStateStore) live(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Where("expires_at IS NULL OR expires_at >= ?", s.clock.Now())
}
