package models

import (
	"time"

	"gorm.io/gorm"
)

// Vehicle is an entry in the canonical vehicle catalog, keyed by CAP code.
// The ingestion pipeline treats the catalog as read-only, except that
// providers flagged with auto_create_vehicles may add entries for vehicles
// the catalog has never seen.
type Vehicle struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CapCode      string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"cap_code"`
	Manufacturer string    `gorm:"type:varchar(100);index;not null" json:"manufacturer"`
	Model        string    `gorm:"type:varchar(100);index;not null" json:"model"`
	Variant      string    `gorm:"type:varchar(255)" json:"variant"`
	P11DPence    int64     `gorm:"column:p11d_pence;default:0" json:"p11d_pence"`
	FuelType     string    `gorm:"type:varchar(30)" json:"fuel_type"`
	Transmission string    `gorm:"type:varchar(30)" json:"transmission"`
	BodyStyle    string    `gorm:"type:varchar(50)" json:"body_style"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// FindVehicleByCapCode finds a catalog entry by its CAP code
func FindVehicleByCapCode(db *gorm.DB, capCode string) (*Vehicle, error) {
	var vehicle Vehicle
	result := db.Where("cap_code = ?", capCode).First(&vehicle)
	return &vehicle, result.Error
}
