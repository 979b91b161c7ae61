package models

import (
	"time"

	"gorm.io/gorm"
)

// ProviderRate is one normalized lease rate discovered in an import batch.
// Rows belong to exactly one RatebookImport and are never mutated after insert,
// except for vehicle_id/cap_code backfill during matching. All monetary values
// are pence.
type ProviderRate struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	ImportID     uint           `gorm:"index;not null" json:"import_id"`
	Import       RatebookImport `gorm:"foreignKey:ImportID" json:"-"`
	ProviderCode string         `gorm:"type:varchar(50);index:idx_rate_provider_contract;not null" json:"provider_code"`
	ContractType string         `gorm:"type:varchar(50);index:idx_rate_provider_contract;not null" json:"contract_type"`

	CapCode   *string  `gorm:"type:varchar(20);index" json:"cap_code"`
	VehicleID *uint    `gorm:"index" json:"vehicle_id"`
	Vehicle   *Vehicle `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`

	Manufacturer string `gorm:"type:varchar(100);index" json:"manufacturer"`
	Model        string `gorm:"type:varchar(100)" json:"model"`
	Variant      string `gorm:"type:varchar(255)" json:"variant"`

	TermMonths    int    `gorm:"not null" json:"term_months"`
	AnnualMileage int    `gorm:"not null" json:"annual_mileage"`
	PaymentPlan   string `gorm:"type:varchar(30)" json:"payment_plan"`
	InitialMonths int    `gorm:"default:1" json:"initial_months"`

	TotalRentalPence   int64  `gorm:"not null" json:"total_rental_pence"`
	LeaseRentalPence   *int64 `json:"lease_rental_pence"`
	ServiceRentalPence *int64 `json:"service_rental_pence"`

	// optional component fields carried through from the source sheet
	CO2                *int    `json:"co2"`
	P11DPence          *int64  `gorm:"column:p11d_pence" json:"p11d_pence"`
	FuelType           *string `gorm:"type:varchar(30)" json:"fuel_type"`
	BodyStyle          *string `gorm:"type:varchar(50)" json:"body_style"`
	InsuranceGroup     *string `gorm:"type:varchar(20)" json:"insurance_group"`
	BIKPercent         *int    `json:"bik_percent"`
	WholeLifeCostPence *int64  `json:"whole_life_cost_pence"`

	Score int `gorm:"default:0;index" json:"score"`

	SourceSheet string `gorm:"type:varchar(100)" json:"source_sheet"`
	SourceRow   int    `json:"source_row"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// LatestRatesScope restricts a query to rows belonging to latest import batches
func LatestRatesScope(db *gorm.DB) *gorm.DB {
	return db.Joins("JOIN ratebook_imports ON ratebook_imports.id = provider_rates.import_id").
		Where("ratebook_imports.is_latest = ?", true)
}
