package importer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lexdrive/ratehub/internal/pkg/cache"
)

const progressTTL = 2 * time.Hour

// Progress mirrors a running batch's counters into the cache so dashboards
// can poll without hitting the import row. The database stays the source of
// truth; the cache entry is dropped on finalize.
type Progress struct {
	BatchID     string `json:"batch_id"`
	Status      string `json:"status"`
	TotalRows   int    `json:"total_rows"`
	SuccessRows int    `json:"success_rows"`
	ErrorRows   int    `json:"error_rows"`
}

func progressKey(batchID string) string {
	return fmt.Sprintf("import:progress:%s", batchID)
}

func publishProgress(p Progress) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	// best effort, the batch row carries the same counters
	_ = cache.Set(progressKey(p.BatchID), string(data), progressTTL)
}

func clearProgress(batchID string) {
	_ = cache.Delete(progressKey(batchID))
}

// GetProgress reads the live progress of a running batch, if any.
func GetProgress(batchID string) (*Progress, bool) {
	raw, err := cache.Get(progressKey(batchID))
	if err != nil || raw == "" {
		return nil, false
	}
	var p Progress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, false
	}
	return &p, true
}
