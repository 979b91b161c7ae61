package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSON is a type for storing JSON documents in the database
type JSON json.RawMessage

// Value implements the driver.Valuer interface
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements the sql.Scanner interface
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = JSON("{}")
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid scan source")
	}
	*j = JSON(bytes)
	return nil
}

// MarshalJSON implements the json.Marshaler interface
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = JSON(data)
	return nil
}

// Import status values
const (
	ImportStatusProcessing = "processing"
	ImportStatusCompleted  = "completed"
	ImportStatusFailed     = "failed"
)

// Bounds for the per-batch error log: we keep the first 100 row/chunk errors in
// the database, API responses surface only the first 20.
const (
	ErrorLogStoredLimit   = 100
	ErrorLogResponseLimit = 20
)

// RatebookImport is one versioned import batch of a provider rate sheet.
// Exactly one import per (provider_code, contract_type) holds is_latest at a time.
type RatebookImport struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	BatchID        string     `gorm:"type:char(36);uniqueIndex;not null" json:"batch_id"`
	ProviderCode   string     `gorm:"type:varchar(50);index:idx_provider_contract;not null" json:"provider_code"`
	ContractType   string     `gorm:"type:varchar(50);index:idx_provider_contract;not null" json:"contract_type"`
	FileName       string     `gorm:"type:varchar(255)" json:"file_name"`
	FileHash       string     `gorm:"type:char(64);index" json:"file_hash"`
	Status         string     `gorm:"type:varchar(20);default:processing;index" json:"status"`
	IsLatest       bool       `gorm:"default:false;index" json:"is_latest"`
	TotalRows      int        `gorm:"default:0" json:"total_rows"`
	SuccessRows    int        `gorm:"default:0" json:"success_rows"`
	ErrorRows      int        `gorm:"default:0" json:"error_rows"`
	UniqueCapCodes int        `gorm:"default:0" json:"unique_cap_codes"`
	SheetsImported *JSON      `gorm:"type:json" json:"sheets_imported"`
	ErrorLog       *JSON      `gorm:"type:json" json:"error_log"`
	StartedAt      time.Time  `gorm:"autoCreateTime" json:"started_at"`
	CompletedAt    *time.Time `gorm:"type:datetime" json:"completed_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Rates []ProviderRate `gorm:"foreignKey:ImportID" json:"rates,omitempty"`
}

// BeforeCreate assigns a batch identifier if none was supplied
func (r *RatebookImport) BeforeCreate(tx *gorm.DB) error {
	if r.BatchID == "" {
		r.BatchID = uuid.New().String()
	}
	return nil
}

// SetErrorLog stores the given error strings, truncated to ErrorLogStoredLimit
func (r *RatebookImport) SetErrorLog(errs []string) error {
	if len(errs) > ErrorLogStoredLimit {
		errs = errs[:ErrorLogStoredLimit]
	}
	data, err := json.Marshal(errs)
	if err != nil {
		return err
	}
	j := JSON(data)
	r.ErrorLog = &j
	return nil
}

// ErrorLogEntries decodes the stored error log; an empty log yields nil
func (r *RatebookImport) ErrorLogEntries() []string {
	if r.ErrorLog == nil {
		return nil
	}
	var errs []string
	if err := json.Unmarshal([]byte(*r.ErrorLog), &errs); err != nil {
		return nil
	}
	return errs
}

// SetSheetsImported stores the names of sheets that produced rates
func (r *RatebookImport) SetSheetsImported(names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	j := JSON(data)
	r.SheetsImported = &j
	return nil
}

// SheetsImportedNames decodes the stored sheet name list
func (r *RatebookImport) SheetsImportedNames() []string {
	if r.SheetsImported == nil {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(*r.SheetsImported), &names); err != nil {
		return nil
	}
	return names
}

// FindImportByBatchID finds an import batch by its external identifier
func FindImportByBatchID(db *gorm.DB, batchID string) (*RatebookImport, error) {
	var imp RatebookImport
	result := db.Where("batch_id = ?", batchID).First(&imp)
	return &imp, result.Error
}
