package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/lexdrive/ratehub/app/models"
)

// importRepository implements the ImportRepository interface
type importRepository struct {
	db *gorm.DB
}

// NewImportRepository creates a new ratebook import repository instance
func NewImportRepository(db *gorm.DB) ImportRepository {
	return &importRepository{db: db}
}

// GetByBatchID retrieves an import batch by its external identifier
func (r *importRepository) GetByBatchID(ctx context.Context, batchID string) (*models.RatebookImport, error) {
	var imp models.RatebookImport
	err := r.db.WithContext(ctx).Where("batch_id = ?", batchID).First(&imp).Error
	if err != nil {
		return nil, err
	}
	return &imp, nil
}

// FindCompletedByHash finds a prior completed import of the same file content
// for a provider, used for duplicate upload detection
func (r *importRepository) FindCompletedByHash(ctx context.Context, providerCode, fileHash string) (*models.RatebookImport, error) {
	var imp models.RatebookImport
	err := r.db.WithContext(ctx).
		Where("provider_code = ? AND file_hash = ? AND status = ?",
			providerCode, fileHash, models.ImportStatusCompleted).
		Order("started_at DESC").
		First(&imp).Error
	if err != nil {
		return nil, err
	}
	return &imp, nil
}

// UpdateProgress persists the batch's running totals. Called after every
// chunk so a crash mid-import leaves observable partial progress.
func (r *importRepository) UpdateProgress(ctx context.Context, imp *models.RatebookImport) error {
	return r.db.WithContext(ctx).Save(imp).Error
}

// List retrieves import batches, newest first, optionally per provider
func (r *importRepository) List(ctx context.Context, providerCode string, offset, limit int) ([]models.RatebookImport, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.RatebookImport{})
	if providerCode != "" {
		query = query.Where("provider_code = ?", providerCode)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var imports []models.RatebookImport
	err := query.Order("started_at DESC").Offset(offset).Limit(limit).Find(&imports).Error
	return imports, total, err
}

// Delete removes a batch and its rates. The caller guards against deleting
// the latest batch of a provider.
func (r *importRepository) Delete(ctx context.Context, imp *models.RatebookImport) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("import_id = ?", imp.ID).Delete(&models.ProviderRate{}).Error; err != nil {
			return err
		}
		return tx.Delete(imp).Error
	})
}

// CreateAndClaimLatest creates the new batch and flips is_latest off the
// previous holder for the same provider+contract type. Both writes run in one
// transaction so at no observable point two latest batches coexist, nor none.
// The row lock taken by the UPDATE serializes concurrent imports for the same
// provider+contract type.
func (r *importRepository) CreateAndClaimLatest(ctx context.Context, imp *models.RatebookImport) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.RatebookImport{}).
			Where("provider_code = ? AND contract_type = ? AND is_latest = ?",
				imp.ProviderCode, imp.ContractType, true).
			Update("is_latest", false).Error; err != nil {
			return err
		}
		imp.IsLatest = true
		return tx.Create(imp).Error
	})
}

// ReleaseLatest clears the latest pointer from a failed batch and restores
// the most recent completed batch for the same provider+contract type. A
// failed batch must never stay latest.
func (r *importRepository) ReleaseLatest(ctx context.Context, imp *models.RatebookImport) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		imp.IsLatest = false
		if err := tx.Save(imp).Error; err != nil {
			return err
		}

		var previous models.RatebookImport
		err := tx.Where("provider_code = ? AND contract_type = ? AND status = ? AND id <> ?",
			imp.ProviderCode, imp.ContractType, models.ImportStatusCompleted, imp.ID).
			Order("completed_at DESC").
			First(&previous).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}
		return tx.Model(&previous).Update("is_latest", true).Error
	})
}
