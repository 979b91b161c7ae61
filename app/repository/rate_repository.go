package repository

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/lexdrive/ratehub/app/models"
)

// rateRepository implements the RateRepository interface
type rateRepository struct {
	db *gorm.DB
}

// NewRateRepository creates a new provider rate repository instance
func NewRateRepository(db *gorm.DB) RateRepository {
	return &rateRepository{db: db}
}

// BulkInsert writes one chunk of rates in a single batched insert. A failure
// fails the whole chunk; the import manager accounts for it at chunk
// granularity.
func (r *rateRepository) BulkInsert(ctx context.Context, rates []models.ProviderRate) error {
	if len(rates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(rates, len(rates)).Error
}

// CountByImport counts the rates persisted for one batch
func (r *rateRepository) CountByImport(ctx context.Context, importID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProviderRate{}).
		Where("import_id = ?", importID).Count(&count).Error
	return count, err
}

// Filter implements the browse/filter query surface. Queries are scoped to
// latest batches unless an explicit batch is requested.
func (r *rateRepository) Filter(ctx context.Context, filter RateFilter) ([]models.ProviderRate, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ProviderRate{})

	if filter.BatchID != "" {
		query = query.Joins("JOIN ratebook_imports ON ratebook_imports.id = provider_rates.import_id").
			Where("ratebook_imports.batch_id = ?", filter.BatchID)
	} else {
		query = models.LatestRatesScope(query)
	}

	if filter.ProviderCode != "" {
		query = query.Where("provider_rates.provider_code = ?", filter.ProviderCode)
	}
	if filter.ContractType != "" {
		query = query.Where("provider_rates.contract_type = ?", filter.ContractType)
	}
	if filter.Manufacturer != "" {
		query = query.Where("LOWER(provider_rates.manufacturer) = LOWER(?)", filter.Manufacturer)
	}
	if filter.CapCode != "" {
		query = query.Where("provider_rates.cap_code = ?", filter.CapCode)
	}
	if filter.MinPence > 0 {
		query = query.Where("provider_rates.total_rental_pence >= ?", filter.MinPence)
	}
	if filter.MaxPence > 0 {
		query = query.Where("provider_rates.total_rental_pence <= ?", filter.MaxPence)
	}
	if filter.MinScore > 0 {
		query = query.Where("provider_rates.score >= ?", filter.MinScore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var rates []models.ProviderRate
	err := query.Order("provider_rates.total_rental_pence ASC").
		Offset(filter.Offset).Limit(limit).Find(&rates).Error
	return rates, total, err
}

// CompareByCapCode groups the latest rates for one CAP code across providers
func (r *rateRepository) CompareByCapCode(ctx context.Context, capCode string) ([]models.ProviderRate, error) {
	var rates []models.ProviderRate
	err := models.LatestRatesScope(r.db.WithContext(ctx).Model(&models.ProviderRate{})).
		Where("provider_rates.cap_code = ?", capCode).
		Order("provider_rates.provider_code ASC, provider_rates.total_rental_pence ASC").
		Find(&rates).Error
	return rates, err
}

// coverageRow is the flat scan row behind the coverage gap aggregation
type coverageRow struct {
	CapCode      string
	Manufacturer string
	Model        string
	ProviderCode string
}

// CoverageGaps identifies CAP codes present for some providers in the latest
// batch set but missing from others.
func (r *rateRepository) CoverageGaps(ctx context.Context) ([]CoverageGap, error) {
	var providers []string
	if err := models.LatestRatesScope(r.db.WithContext(ctx).Model(&models.ProviderRate{})).
		Distinct("provider_rates.provider_code").
		Pluck("provider_rates.provider_code", &providers).Error; err != nil {
		return nil, err
	}
	if len(providers) < 2 {
		return nil, nil
	}

	var rows []coverageRow
	if err := models.LatestRatesScope(r.db.WithContext(ctx).Model(&models.ProviderRate{})).
		Where("provider_rates.cap_code IS NOT NULL").
		Select("DISTINCT provider_rates.cap_code, provider_rates.manufacturer, provider_rates.model, provider_rates.provider_code").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	byCap := map[string]*CoverageGap{}
	covered := map[string]map[string]bool{}
	for _, row := range rows {
		gap, ok := byCap[row.CapCode]
		if !ok {
			gap = &CoverageGap{
				CapCode:      row.CapCode,
				Manufacturer: row.Manufacturer,
				Model:        row.Model,
			}
			byCap[row.CapCode] = gap
			covered[row.CapCode] = map[string]bool{}
		}
		if !covered[row.CapCode][row.ProviderCode] {
			covered[row.CapCode][row.ProviderCode] = true
			gap.ProvidersWith = append(gap.ProvidersWith, row.ProviderCode)
		}
	}

	var gaps []CoverageGap
	for capCode, gap := range byCap {
		for _, provider := range providers {
			if !covered[capCode][provider] {
				gap.ProvidersMissing = append(gap.ProvidersMissing, provider)
			}
		}
		if len(gap.ProvidersMissing) == 0 {
			continue
		}
		sort.Strings(gap.ProvidersWith)
		sort.Strings(gap.ProvidersMissing)
		gaps = append(gaps, *gap)
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].CapCode < gaps[j].CapCode })
	return gaps, nil
}

// DeleteByImport removes all rates owned by a batch
func (r *rateRepository) DeleteByImport(ctx context.Context, importID uint) error {
	return r.db.WithContext(ctx).Where("import_id = ?", importID).Delete(&models.ProviderRate{}).Error
}

// BackfillMatch attaches a confirmed vehicle identity to already-persisted
// rates of a provider descriptor. The only mutation rates see after insert.
func (r *rateRepository) BackfillMatch(ctx context.Context, providerCode, manufacturer, model, variant string, vehicleID uint, capCode string) error {
	return r.db.WithContext(ctx).Model(&models.ProviderRate{}).
		Where("provider_code = ? AND manufacturer = ? AND model = ? AND variant = ?",
			providerCode, manufacturer, model, variant).
		Updates(map[string]interface{}{"vehicle_id": vehicleID, "cap_code": capCode}).Error
}
