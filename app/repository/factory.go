package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetVehicleRepository returns the vehicle catalog repository instance
func (f *Factory) GetVehicleRepository() VehicleRepository {
	return f.GetRepositories().Vehicle
}

// GetCapMatchRepository returns the cap match repository instance
func (f *Factory) GetCapMatchRepository() CapMatchRepository {
	return f.GetRepositories().CapMatch
}

// GetImportRepository returns the ratebook import repository instance
func (f *Factory) GetImportRepository() ImportRepository {
	return f.GetRepositories().Import
}

// GetRateRepository returns the provider rate repository instance
func (f *Factory) GetRateRepository() RateRepository {
	return f.GetRepositories().Rate
}

// GetProfileRepository returns the provider profile repository instance
func (f *Factory) GetProfileRepository() ProfileRepository {
	return f.GetRepositories().Profile
}

// GetImportJobRepository returns the import job queue repository instance
func (f *Factory) GetImportJobRepository() ImportJobRepository {
	return f.GetRepositories().ImportJob
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
