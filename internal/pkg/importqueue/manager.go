// Package importqueue runs deferred rate sheet imports from the persisted job
// table. Uploads accepted with async=true land here; workers claim jobs one at
// a time so large workbooks never block the request path.
package importqueue

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/lexdrive/ratehub/app/models"
	"github.com/lexdrive/ratehub/app/repository"
	"github.com/lexdrive/ratehub/internal/pkg/env"
	"github.com/lexdrive/ratehub/internal/pkg/importer"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultWorkerCount  = 2

	// a single import is bounded so one pathological workbook cannot pin a
	// worker forever
	jobTimeout = 30 * time.Minute
)

// Manager polls the import job queue and executes claimed jobs.
type Manager struct {
	jobs     repository.ImportJobRepository
	importer *importer.Importer
	fetcher  Fetcher

	interval time.Duration
	workers  int

	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// Fetcher retrieves an archived upload when a job carries no inline payload.
// Satisfied by the s3archive client.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// NewManager creates a queue manager. Poll interval and worker count come from
// IMPORT_QUEUE_POLL_SECONDS and IMPORT_QUEUE_WORKERS.
func NewManager(jobs repository.ImportJobRepository, imp *importer.Importer, fetcher Fetcher) *Manager {
	interval := defaultPollInterval
	if raw := env.GetEnv("IMPORT_QUEUE_POLL_SECONDS", ""); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			interval = time.Duration(n) * time.Second
		}
	}
	workers := defaultWorkerCount
	if raw := env.GetEnv("IMPORT_QUEUE_WORKERS", ""); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			workers = n
		}
	}
	return &Manager{
		jobs:     jobs,
		importer: imp,
		fetcher:  fetcher,
		interval: interval,
		workers:  workers,
	}
}

// Start launches the polling workers. Safe to call repeatedly.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.stopCh = make(chan struct{})
	m.ticker = time.NewTicker(m.interval)
	m.running = true
	log.Infof("[ImportQueue] Starting %d workers (poll interval %s)", m.workers, m.interval)

	for n := 0; n < m.workers; n++ {
		m.wg.Add(1)
		go m.worker(n)
	}
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	log.Info("[ImportQueue] Stopping workers...")
	m.ticker.Stop()
	close(m.stopCh)
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
	log.Info("[ImportQueue] Stopped")
}

func (m *Manager) worker(id int) {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			log.Infof("[ImportQueue] Worker %d stopping", id)
			return
		case <-m.ticker.C:
			m.drain(id)
		}
	}
}

// drain claims and runs jobs until the queue is empty or a stop is requested.
func (m *Manager) drain(id int) {
	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		job, err := m.jobs.ClaimNext(context.Background())
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Errorf("[ImportQueue] Worker %d claim failed: %v", id, err)
			}
			return
		}
		m.runJob(id, job)
	}
}

func (m *Manager) runJob(id int, job *models.ImportJob) {
	log.Infof("[ImportQueue] Worker %d running job %d (%s/%s %q)",
		id, job.ID, job.ProviderCode, job.ContractType, job.FileName)

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	content := job.Payload
	if len(content) == 0 && job.ArchiveKey != "" && m.fetcher != nil {
		fetched, err := m.fetcher.Fetch(ctx, job.ArchiveKey)
		if err != nil {
			m.finish(job, nil, err)
			return
		}
		content = fetched
	}
	if len(content) == 0 {
		m.finish(job, nil, errors.New("job has no payload and no archive key"))
		return
	}

	result, err := m.importer.Run(ctx, job.ProviderCode, job.ContractType, job.FileName, content)
	m.finish(job, result, err)
}

func (m *Manager) finish(job *models.ImportJob, result *importer.Result, runErr error) {
	if runErr != nil {
		job.Status = models.JobStatusError
		job.ErrorMsg = runErr.Error()
	} else {
		job.Status = models.JobStatusComplete
		job.BatchID = &result.Import.BatchID
		// claimed payloads are not kept around once the batch row exists
		job.Payload = nil
	}

	if err := m.jobs.Finish(context.Background(), job); err != nil {
		log.Errorf("[ImportQueue] Persisting result of job %d failed: %v", job.ID, err)
		return
	}
	if runErr != nil {
		log.Errorf("[ImportQueue] Job %d failed: %v", job.ID, runErr)
	} else {
		log.Infof("[ImportQueue] Job %d complete, batch %s", job.ID, result.Import.BatchID)
	}
}
