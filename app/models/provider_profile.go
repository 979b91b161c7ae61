package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Term code conventions for "<n>+<m>" payment plans. The observed rate sheets
// disagree on whether m already includes the first month; the convention is a
// per-provider data decision, never reconciled silently in code.
const (
	TermConventionRemainingPlusOne     = "remaining_plus_one"     // term = m + 1
	TermConventionInitialPlusRemaining = "initial_plus_remaining" // term = n + m
)

// ProviderProfile holds the per-provider configuration that steers parsing:
// confirmed column mappings, sheet skip lists, boilerplate patterns and
// manufacturer aliases. New providers are onboarded by inserting a row, not by
// deploying code.
type ProviderProfile struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	ProviderCode string `gorm:"type:varchar(50);uniqueIndex;not null" json:"provider_code"`
	DisplayName  string `gorm:"type:varchar(100)" json:"display_name"`

	ColumnMap           *JSON  `gorm:"type:json" json:"column_map"`
	SkipSheets          *JSON  `gorm:"type:json" json:"skip_sheets"`
	BoilerplatePatterns *JSON  `gorm:"type:json" json:"boilerplate_patterns"`
	ManufacturerAliases *JSON  `gorm:"type:json" json:"manufacturer_aliases"`
	TermConvention      string `gorm:"type:varchar(30);default:remaining_plus_one" json:"term_convention"`
	AutoCreateVehicles  bool   `gorm:"default:false" json:"auto_create_vehicles"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ColumnMapEntries decodes the confirmed header-to-field mapping
func (p *ProviderProfile) ColumnMapEntries() map[string]string {
	return decodeStringMap(p.ColumnMap)
}

// SetColumnMap stores a confirmed header-to-field mapping
func (p *ProviderProfile) SetColumnMap(m map[string]string) error {
	j, err := encodeJSON(m)
	if err != nil {
		return err
	}
	p.ColumnMap = j
	return nil
}

// SkipSheetPatterns decodes the sheet-name skip list
func (p *ProviderProfile) SkipSheetPatterns() []string {
	return decodeStringList(p.SkipSheets)
}

// SetSkipSheets stores the sheet-name skip list
func (p *ProviderProfile) SetSkipSheets(patterns []string) error {
	j, err := encodeJSON(patterns)
	if err != nil {
		return err
	}
	p.SkipSheets = j
	return nil
}

// BoilerplateList decodes the row boilerplate patterns used by the matrix decoder
func (p *ProviderProfile) BoilerplateList() []string {
	return decodeStringList(p.BoilerplatePatterns)
}

// SetBoilerplatePatterns stores the row boilerplate patterns
func (p *ProviderProfile) SetBoilerplatePatterns(patterns []string) error {
	j, err := encodeJSON(patterns)
	if err != nil {
		return err
	}
	p.BoilerplatePatterns = j
	return nil
}

// AliasTable decodes the manufacturer normalization table
func (p *ProviderProfile) AliasTable() map[string]string {
	return decodeStringMap(p.ManufacturerAliases)
}

// SetManufacturerAliases stores the manufacturer normalization table
func (p *ProviderProfile) SetManufacturerAliases(aliases map[string]string) error {
	j, err := encodeJSON(aliases)
	if err != nil {
		return err
	}
	p.ManufacturerAliases = j
	return nil
}

func encodeJSON(v interface{}) (*JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	j := JSON(data)
	return &j, nil
}

func decodeStringMap(j *JSON) map[string]string {
	if j == nil {
		return map[string]string{}
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(*j), &m); err != nil || m == nil {
		return map[string]string{}
	}
	return m
}

func decodeStringList(j *JSON) []string {
	if j == nil {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(*j), &list); err != nil {
		return nil
	}
	return list
}

// FindProviderProfile finds a profile by provider code
func FindProviderProfile(db *gorm.DB, providerCode string) (*ProviderProfile, error) {
	var profile ProviderProfile
	result := db.Where("provider_code = ?", providerCode).First(&profile)
	return &profile, result.Error
}
