package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/lexdrive/ratehub/app/models"
)

// VehicleRepository defines catalog lookups consumed by the vehicle matcher.
// The catalog is read-only from the pipeline's perspective except for
// providers flagged to auto-create missing entries.
type VehicleRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Vehicle, error)
	GetByCapCode(ctx context.Context, capCode string) (*models.Vehicle, error)
	SearchByManufacturerModel(ctx context.Context, manufacturer, model string) ([]models.Vehicle, error)
	Create(ctx context.Context, vehicle *models.Vehicle) error
	Count(ctx context.Context) (int64, error)
}

// CapMatchRepository defines storage for provider-to-catalog vehicle matches.
type CapMatchRepository interface {
	GetByID(ctx context.Context, id uint) (*models.VehicleCapMatch, error)
	GetBySourceKey(ctx context.Context, sourceKey string) (*models.VehicleCapMatch, error)
	GetBySourceKeys(ctx context.Context, sourceKeys []string) ([]models.VehicleCapMatch, error)
	Create(ctx context.Context, match *models.VehicleCapMatch) error
	Update(ctx context.Context, match *models.VehicleCapMatch) error
	List(ctx context.Context, provider, status string, offset, limit int) ([]models.VehicleCapMatch, int64, error)
}

// ImportRepository defines storage for import batches and the latest pointer.
type ImportRepository interface {
	GetByBatchID(ctx context.Context, batchID string) (*models.RatebookImport, error)
	FindCompletedByHash(ctx context.Context, providerCode, fileHash string) (*models.RatebookImport, error)
	UpdateProgress(ctx context.Context, imp *models.RatebookImport) error
	List(ctx context.Context, providerCode string, offset, limit int) ([]models.RatebookImport, int64, error)
	Delete(ctx context.Context, imp *models.RatebookImport) error

	// CreateAndClaimLatest creates the batch and moves the latest pointer off
	// any prior holder for the same provider+contract type in one transaction.
	CreateAndClaimLatest(ctx context.Context, imp *models.RatebookImport) error
	// ReleaseLatest drops the latest pointer from a failed batch and restores
	// the most recent completed batch as latest, in one transaction.
	ReleaseLatest(ctx context.Context, imp *models.RatebookImport) error
}

// RateRepository defines storage and the query surface for provider rates.
type RateRepository interface {
	BulkInsert(ctx context.Context, rates []models.ProviderRate) error
	CountByImport(ctx context.Context, importID uint) (int64, error)
	Filter(ctx context.Context, filter RateFilter) ([]models.ProviderRate, int64, error)
	CompareByCapCode(ctx context.Context, capCode string) ([]models.ProviderRate, error)
	CoverageGaps(ctx context.Context) ([]CoverageGap, error)
	DeleteByImport(ctx context.Context, importID uint) error
	BackfillMatch(ctx context.Context, providerCode, manufacturer, model, variant string, vehicleID uint, capCode string) error
}

// RateFilter is the browse/filter query over imported rates. Queries are
// scoped to latest batches unless a specific BatchID is given.
type RateFilter struct {
	ProviderCode string
	ContractType string
	Manufacturer string
	CapCode      string
	BatchID      string
	MinPence     int64
	MaxPence     int64
	MinScore     int
	Offset       int
	Limit        int
}

// CoverageGap reports a CAP code carried by some providers but missing from
// others, within the latest batch set.
type CoverageGap struct {
	CapCode          string   `json:"cap_code"`
	Manufacturer     string   `json:"manufacturer"`
	Model            string   `json:"model"`
	ProvidersWith    []string `json:"providers_with"`
	ProvidersMissing []string `json:"providers_missing"`
}

// ProfileRepository defines storage for per-provider parsing configuration.
type ProfileRepository interface {
	GetByProviderCode(ctx context.Context, providerCode string) (*models.ProviderProfile, error)
	Save(ctx context.Context, profile *models.ProviderProfile) error
	List(ctx context.Context) ([]models.ProviderProfile, error)
}

// ImportJobRepository defines the persisted provider-scoped import queue.
type ImportJobRepository interface {
	Enqueue(ctx context.Context, job *models.ImportJob) error
	ClaimNext(ctx context.Context) (*models.ImportJob, error)
	Finish(ctx context.Context, job *models.ImportJob) error
	List(ctx context.Context, status string, limit int) ([]models.ImportJob, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Vehicle   VehicleRepository
	CapMatch  CapMatchRepository
	Import    ImportRepository
	Rate      RateRepository
	Profile   ProfileRepository
	ImportJob ImportJobRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Vehicle:   NewVehicleRepository(db),
		CapMatch:  NewCapMatchRepository(db),
		Import:    NewImportRepository(db),
		Rate:      NewRateRepository(db),
		Profile:   NewProfileRepository(db),
		ImportJob: NewImportJobRepository(db),
	}
}
