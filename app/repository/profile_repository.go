package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lexdrive/ratehub/app/models"
	"github.com/lexdrive/ratehub/internal/pkg/cache"
)

const profileCacheTTL = 10 * time.Minute

// profileRepository implements the ProfileRepository interface. Profiles are
// read on every import, so reads go through the cache; the database stays the
// source of truth and the cache entry is invalidated on every save.
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new provider profile repository instance
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func profileCacheKey(providerCode string) string {
	return fmt.Sprintf("provider_profile:%s", providerCode)
}

// GetByProviderCode retrieves a profile, cache first
func (r *profileRepository) GetByProviderCode(ctx context.Context, providerCode string) (*models.ProviderProfile, error) {
	if cached, err := cache.Get(profileCacheKey(providerCode)); err == nil && cached != "" {
		var profile models.ProviderProfile
		if err := json.Unmarshal([]byte(cached), &profile); err == nil {
			return &profile, nil
		}
	}

	var profile models.ProviderProfile
	if err := r.db.WithContext(ctx).Where("provider_code = ?", providerCode).First(&profile).Error; err != nil {
		return nil, err
	}

	if data, err := json.Marshal(&profile); err == nil {
		_ = cache.Set(profileCacheKey(providerCode), string(data), profileCacheTTL)
	}
	return &profile, nil
}

// Save upserts a profile and invalidates its cache entry
func (r *profileRepository) Save(ctx context.Context, profile *models.ProviderProfile) error {
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return err
	}
	_ = cache.Delete(profileCacheKey(profile.ProviderCode))
	return nil
}

// List retrieves all provider profiles
func (r *profileRepository) List(ctx context.Context) ([]models.ProviderProfile, error) {
	var profiles []models.ProviderProfile
	err := r.db.WithContext(ctx).Order("provider_code ASC").Find(&profiles).Error
	return profiles, err
}
