package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"threadline/internal/cache"
	"threadline/internal/models"
	"threadline/internal/repositories"
	"threadline/pkg/logger"
)

// ShippingService resolves the flat shipping charge applied to every order.
type ShippingService struct {
	settings repositories.SettingRepository
	cache    cache.RateCache
	ttl      time.Duration
	logger   *zap.Logger
}

// NewShippingService creates a ShippingService. rateCache may be nil.
func NewShippingService(settings repositories.SettingRepository, rateCache cache.RateCache, ttl time.Duration, log *zap.Logger) *ShippingService {
	return &ShippingService{settings: settings, cache: rateCache, ttl: ttl, logger: logger.OrNop(log)}
}

// CurrentRate returns the latest configured charge. No configured charge means free shipping.
func (s *ShippingService) CurrentRate(ctx context.Context) (decimal.Decimal, error) {
	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, models.SettingShippingCharges)
		if err != nil {
			s.logger.Warn("shipping rate cache read failed", zap.Error(err))
		} else if found {
			if rate, parseErr := decimal.NewFromString(cached); parseErr == nil {
				return rate, nil
			}
		}
	}

	rate := decimal.Zero
	setting, err := s.settings.Latest(ctx, models.SettingShippingCharges)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
	case err != nil:
		return decimal.Zero, fmt.Errorf("failed to load shipping rate: %w", err)
	default:
		rate, err = decimal.NewFromString(setting.Value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("stored shipping rate %q is not a number: %w", setting.Value, err)
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, models.SettingShippingCharges, rate.String(), s.ttl); err != nil {
			s.logger.Warn("shipping rate cache write failed", zap.Error(err))
		}
	}
	return rate, nil
}

// SetShippingRate appends a new version of the shipping charge.
func (s *ShippingService) SetShippingRate(ctx context.Context, amount decimal.Decimal) (*models.Setting, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	setting, err := s.settings.Append(ctx, models.SettingShippingCharges, amount.StringFixed(2))
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, models.SettingShippingCharges); err != nil {
			s.logger.Warn("shipping rate cache invalidation failed", zap.Error(err))
		}
	}
	s.logger.Info("shipping rate updated", zap.String("value", setting.Value), zap.Int("version", setting.Version))
	return setting, nil
}

// History lists past shipping charges, newest first.
func (s *ShippingService) History(ctx context.Context, limit int) ([]models.Setting, error) {
	return s.settings.History(ctx, models.SettingShippingCharges, limit)
}
