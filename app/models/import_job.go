package models

import (
	"time"
)

// Import job status values. Jobs move pending -> running -> complete|error;
// the transitions live in the database so a restart never loses queue state.
const (
	JobStatusPending  = "pending"
	JobStatusRunning  = "running"
	JobStatusComplete = "complete"
	JobStatusError    = "error"
)

// ImportJob is a persisted, provider-scoped queue entry for a deferred import.
// The uploaded file is archived to object storage before the job is enqueued;
// ArchiveKey points at it.
type ImportJob struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	ProviderCode string `gorm:"type:varchar(50);index;not null" json:"provider_code"`
	ContractType string `gorm:"type:varchar(50);not null" json:"contract_type"`
	FileName     string `gorm:"type:varchar(255)" json:"file_name"`
	ArchiveKey   string `gorm:"type:varchar(500)" json:"archive_key"`
	Payload      []byte `gorm:"type:longblob" json:"-"`

	Status   string  `gorm:"type:varchar(20);default:pending;index" json:"status"`
	BatchID  *string `gorm:"type:char(36)" json:"batch_id"`
	ErrorMsg string  `gorm:"type:text" json:"error_msg"`

	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	StartedAt  *time.Time `gorm:"type:datetime" json:"started_at"`
	FinishedAt *time.Time `gorm:"type:datetime" json:"finished_at"`
}
