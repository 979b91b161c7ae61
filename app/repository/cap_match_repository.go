package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/lexdrive/ratehub/app/models"
)

// capMatchRepository implements the CapMatchRepository interface
type capMatchRepository struct {
	db *gorm.DB
}

// NewCapMatchRepository creates a new cap match repository instance
func NewCapMatchRepository(db *gorm.DB) CapMatchRepository {
	return &capMatchRepository{db: db}
}

// GetByID retrieves a match record by its ID
func (r *capMatchRepository) GetByID(ctx context.Context, id uint) (*models.VehicleCapMatch, error) {
	var match models.VehicleCapMatch
	err := r.db.WithContext(ctx).First(&match, id).Error
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// GetBySourceKey retrieves a match record by its provider descriptor key
func (r *capMatchRepository) GetBySourceKey(ctx context.Context, sourceKey string) (*models.VehicleCapMatch, error) {
	var match models.VehicleCapMatch
	err := r.db.WithContext(ctx).Where("source_key = ?", sourceKey).First(&match).Error
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// GetBySourceKeys retrieves all match records for a set of descriptor keys,
// used for the per-chunk batched lookup during imports
func (r *capMatchRepository) GetBySourceKeys(ctx context.Context, sourceKeys []string) ([]models.VehicleCapMatch, error) {
	if len(sourceKeys) == 0 {
		return nil, nil
	}
	var matches []models.VehicleCapMatch
	err := r.db.WithContext(ctx).Where("source_key IN ?", sourceKeys).Find(&matches).Error
	return matches, err
}

// Create inserts a new match record
func (r *capMatchRepository) Create(ctx context.Context, match *models.VehicleCapMatch) error {
	return r.db.WithContext(ctx).Create(match).Error
}

// Update saves changes to an existing match record
func (r *capMatchRepository) Update(ctx context.Context, match *models.VehicleCapMatch) error {
	return r.db.WithContext(ctx).Save(match).Error
}

// List retrieves match records with optional provider and status filters
func (r *capMatchRepository) List(ctx context.Context, provider, status string, offset, limit int) ([]models.VehicleCapMatch, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.VehicleCapMatch{})
	if provider != "" {
		query = query.Where("source_provider = ?", provider)
	}
	if status != "" {
		query = query.Where("match_status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var matches []models.VehicleCapMatch
	err := query.Order("updated_at DESC").Offset(offset).Limit(limit).Find(&matches).Error
	return matches, total, err
}
