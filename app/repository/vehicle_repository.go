package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/lexdrive/ratehub/app/models"
)

// vehicleRepository implements the VehicleRepository interface
type vehicleRepository struct {
	db *gorm.DB
}

// NewVehicleRepository creates a new vehicle catalog repository instance
func NewVehicleRepository(db *gorm.DB) VehicleRepository {
	return &vehicleRepository{db: db}
}

// GetByID retrieves a catalog vehicle by its ID
func (r *vehicleRepository) GetByID(ctx context.Context, id uint) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.WithContext(ctx).First(&vehicle, id).Error
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// GetByCapCode retrieves a catalog vehicle by its CAP code
func (r *vehicleRepository) GetByCapCode(ctx context.Context, capCode string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.WithContext(ctx).Where("cap_code = ?", capCode).First(&vehicle).Error
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// SearchByManufacturerModel finds catalog candidates for the matcher:
// case-insensitive manufacturer equality plus model substring match. Results
// are ordered by CAP code so tier ties break deterministically.
func (r *vehicleRepository) SearchByManufacturerModel(ctx context.Context, manufacturer, model string) ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	err := r.db.WithContext(ctx).
		Where("LOWER(manufacturer) = LOWER(?)", manufacturer).
		Where("LOWER(model) LIKE LOWER(?)", "%"+model+"%").
		Order("cap_code ASC").
		Limit(200).
		Find(&vehicles).Error
	return vehicles, err
}

// Create adds a vehicle to the catalog
func (r *vehicleRepository) Create(ctx context.Context, vehicle *models.Vehicle) error {
	return r.db.WithContext(ctx).Create(vehicle).Error
}

// Count returns the catalog size
func (r *vehicleRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Vehicle{}).Count(&count).Error
	return count, err
}
