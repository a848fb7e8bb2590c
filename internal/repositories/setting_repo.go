package repositories

import (
	"context"

	"threadline/internal/models"
)

// SettingRepository stores settings as an append-only log per key.
type SettingRepository interface {
	// Latest returns the newest entry for key, or ErrNotFound.
	Latest(ctx context.Context, key string) (*models.Setting, error)
	// Append stores value as the next version of key.
	Append(ctx context.Context, key, value string) (*models.Setting, error)
	History(ctx context.Context, key string, limit int) ([]models.Setting, error)
}
