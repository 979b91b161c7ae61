package models

import (
	"fmt"
	"strings"
	"time"
)

// Match status values form a small state machine: pending is the only state a
// rematch may run from; confirmed, rejected and manual are terminal until an
// explicit reset back to pending.
const (
	MatchStatusPending   = "pending"
	MatchStatusConfirmed = "confirmed"
	MatchStatusRejected  = "rejected"
	MatchStatusManual    = "manual"
)

// Match method values
const (
	MatchMethodExact     = "exact"
	MatchMethodModelOnly = "model-only"
	MatchMethodManual    = "manual"
	MatchMethodAuto      = "auto" // catalog entry created during import
	MatchMethodNone      = "none"
)

// VehicleCapMatch links one provider vehicle descriptor to a CAP code. It is
// owned by the (provider, descriptor) pair and survives across import batches,
// so repeated imports reuse previously confirmed matches.
type VehicleCapMatch struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	SourceProvider string `gorm:"type:varchar(50);index;not null" json:"source_provider"`
	SourceKey      string `gorm:"type:varchar(500);uniqueIndex;not null" json:"source_key"`

	Manufacturer string `gorm:"type:varchar(100)" json:"manufacturer"`
	Model        string `gorm:"type:varchar(100)" json:"model"`
	Variant      string `gorm:"type:varchar(255)" json:"variant"`
	P11DPence    int64  `gorm:"column:p11d_pence;default:0" json:"p11d_pence"`

	CapCode             *string `gorm:"type:varchar(20);index" json:"cap_code"`
	MatchedVehicleID    *uint   `json:"matched_vehicle_id"`
	MatchedManufacturer *string `gorm:"type:varchar(100)" json:"matched_manufacturer"`
	MatchedModel        *string `gorm:"type:varchar(100)" json:"matched_model"`
	MatchedVariant      *string `gorm:"type:varchar(255)" json:"matched_variant"`
	MatchedP11DPence    *int64  `gorm:"column:matched_p11d_pence" json:"matched_p11d_pence"`

	MatchConfidence int    `gorm:"default:0" json:"match_confidence"`
	MatchStatus     string `gorm:"type:varchar(20);default:pending;index" json:"match_status"`
	MatchMethod     string `gorm:"type:varchar(20);default:none" json:"match_method"`

	MatchedAt   *time.Time `gorm:"type:datetime" json:"matched_at"`
	ConfirmedAt *time.Time `gorm:"type:datetime" json:"confirmed_at"`
	ConfirmedBy *string    `gorm:"type:varchar(100)" json:"confirmed_by"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BuildSourceKey builds the dedup key used for VehicleCapMatch.SourceKey
func BuildSourceKey(provider, manufacturer, model, variant string) string {
	return strings.ToLower(fmt.Sprintf("%s|%s|%s|%s",
		strings.TrimSpace(provider),
		strings.TrimSpace(manufacturer),
		strings.TrimSpace(model),
		strings.TrimSpace(variant)))
}

// IsTerminal reports whether the match status requires an explicit reset
// before a new machine suggestion may replace it
func (m *VehicleCapMatch) IsTerminal() bool {
	switch m.MatchStatus {
	case MatchStatusConfirmed, MatchStatusRejected, MatchStatusManual:
		return true
	}
	return false
}

// ClearMatch removes the matched catalog snapshot, used on reject and reset
func (m *VehicleCapMatch) ClearMatch() {
	m.CapCode = nil
	m.MatchedVehicleID = nil
	m.MatchedManufacturer = nil
	m.MatchedModel = nil
	m.MatchedVariant = nil
	m.MatchedP11DPence = nil
	m.MatchConfidence = 0
	m.MatchMethod = MatchMethodNone
}
