package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"threadline/internal/models"
)

const appendAttempts = 3

// GORMSettingRepository is a GORM implementation of SettingRepository.
type GORMSettingRepository struct {
	db *gorm.DB
}

// NewGORMSettingRepository creates a new instance of GORMSettingRepository.
func NewGORMSettingRepository(db *gorm.DB) *GORMSettingRepository {
	return &GORMSettingRepository{db: db}
}

// Latest returns the current value of key.
func (r *GORMSettingRepository) Latest(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	err := r.db.WithContext(ctx).Where("key = ?", key).Order("version desc").First(&setting).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, translate(err))
	}
	return &setting, nil
}

// Append writes a new version. Two concurrent writers collide on the (key, version) index; the
// loser retries with the next version.
func (r *GORMSettingRepository) Append(ctx context.Context, key, value string) (*models.Setting, error) {
	var lastErr error
	for attempt := 0; attempt < appendAttempts; attempt++ {
		var current int
		err := r.db.WithContext(ctx).Model(&models.Setting{}).
			Where("key = ?", key).
			Select("COALESCE(MAX(version), 0)").
			Scan(&current).Error
		if err != nil {
			return nil, fmt.Errorf("failed to read setting %s version: %w", key, err)
		}

		setting := &models.Setting{Key: key, Value: value, Version: current + 1}
		err = translate(r.db.WithContext(ctx).Create(setting).Error)
		if err == nil {
			return setting, nil
		}
		if !errors.Is(err, ErrDuplicate) {
			return nil, fmt.Errorf("failed to append setting %s: %w", key, err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to append setting %s: %w", key, lastErr)
}

// History returns the newest entries first.
func (r *GORMSettingRepository) History(ctx context.Context, key string, limit int) ([]models.Setting, error) {
	q := r.db.WithContext(ctx).Where("key = ?", key).Order("version desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var settings []models.Setting
	if err := q.Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to list setting history %s: %w", key, err)
	}
	return settings, nil
}
