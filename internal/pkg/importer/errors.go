package importer

import (
	"fmt"
	"time"
)

// DuplicateFileError is returned when the same file content was already
// imported successfully for a provider. Raised before any row work begins.
type DuplicateFileError struct {
	ProviderCode    string
	FileName        string
	OriginalBatchID string
	ImportedAt      time.Time
}

func (e *DuplicateFileError) Error() string {
	return fmt.Sprintf("file %q already imported for provider %s on %s (batch %s)",
		e.FileName, e.ProviderCode, e.ImportedAt.Format(time.RFC3339), e.OriginalBatchID)
}

// NoParseableSheetsError is returned when no sheet of the workbook could be
// classified as tabular or matrix.
type NoParseableSheetsError struct {
	FileName string
	Reasons  []string
}

func (e *NoParseableSheetsError) Error() string {
	return fmt.Sprintf("no parseable sheets in %q", e.FileName)
}
