// Package importer runs the end-to-end ingestion of one uploaded rate sheet:
// duplicate detection, format detection, parsing, vehicle resolution, scoring
// and chunked persistence under a versioned import batch.
package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/lexdrive/ratehub/app/models"
	"github.com/lexdrive/ratehub/app/repository"
	"github.com/lexdrive/ratehub/internal/pkg/classify"
	"github.com/lexdrive/ratehub/internal/pkg/env"
	"github.com/lexdrive/ratehub/internal/pkg/ratesheet"
	"github.com/lexdrive/ratehub/internal/pkg/scoring"
	"github.com/lexdrive/ratehub/internal/pkg/vehiclematch"
)

const (
	defaultChunkSize   = 250
	bulkInsertAttempts = 3

	// classifier suggestions below this confidence are ignored
	classifierMinConfidence = 70
	classifierSampleRows    = 5
)

// Archiver stores the original upload alongside its batch. Satisfied by the
// s3archive client; nil disables archiving.
type Archiver interface {
	Archive(ctx context.Context, providerCode, batchID, fileName string, content []byte) (string, error)
}

// Importer wires the parsing core to the repositories and runs import batches.
type Importer struct {
	imports    repository.ImportRepository
	rates      repository.RateRepository
	profiles   repository.ProfileRepository
	matcher    *vehiclematch.Matcher
	classifier *classify.Client
	archive    Archiver
	chunkSize  int
}

// NewImporter creates an importer over the given repositories. The chunk size
// defaults to 250 rows and can be tuned via IMPORT_CHUNK_SIZE.
func NewImporter(repos *repository.Repositories, matcher *vehiclematch.Matcher, classifier *classify.Client, archive Archiver) *Importer {
	size := defaultChunkSize
	if raw := env.GetEnv("IMPORT_CHUNK_SIZE", ""); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			size = n
		}
	}
	return &Importer{
		imports:    repos.Import,
		rates:      repos.Rate,
		profiles:   repos.Profile,
		matcher:    matcher,
		classifier: classifier,
		archive:    archive,
		chunkSize:  size,
	}
}

// Result is the outcome of one import run.
type Result struct {
	Import        *models.RatebookImport
	SkippedSheets []string
	ArchiveKey    string
}

// plannedSheet is one sheet that passed detection and pre-flight validation.
type plannedSheet struct {
	sheet ratesheet.Sheet
	det   ratesheet.SheetDetection
	cmap  ratesheet.ColumnMap
}

// Run executes a full import of one uploaded file. Validation failures before
// the batch row exists (duplicate file, unreadable workbook, no parseable
// sheets, unmappable required columns) return an error and leave no trace.
// Once the batch is created it always finalizes as completed or failed; row
// level problems are recorded in the batch error log, never returned.
func (i *Importer) Run(ctx context.Context, providerCode, contractType, fileName string, content []byte) (*Result, error) {
	sum := sha256.Sum256(content)
	fileHash := hex.EncodeToString(sum[:])

	prior, err := i.imports.FindCompletedByHash(ctx, providerCode, fileHash)
	if err == nil {
		return nil, &DuplicateFileError{
			ProviderCode:    providerCode,
			FileName:        fileName,
			OriginalBatchID: prior.BatchID,
			ImportedAt:      prior.StartedAt,
		}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	profile, err := i.profiles.GetByProviderCode(ctx, providerCode)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	cfg := ratesheet.ConfigFromProfile(profile)
	cfg.ProviderCode = providerCode

	wb, err := ratesheet.OpenWorkbook(fileName, content)
	if err != nil {
		return nil, err
	}

	plan, skipped, err := i.buildPlan(ctx, cfg, wb, profile)
	if err != nil {
		return nil, err
	}
	if len(plan) == 0 {
		return nil, &NoParseableSheetsError{FileName: fileName, Reasons: skipped}
	}

	imp := &models.RatebookImport{
		ProviderCode: providerCode,
		ContractType: contractType,
		FileName:     fileName,
		FileHash:     fileHash,
		Status:       models.ImportStatusProcessing,
		StartedAt:    time.Now(),
	}
	if err := i.imports.CreateAndClaimLatest(ctx, imp); err != nil {
		return nil, err
	}
	log.Infof("[Importer] batch %s started for %s/%s file %q (%d sheets planned, %d skipped)",
		imp.BatchID, providerCode, contractType, fileName, len(plan), len(skipped))

	result := &Result{Import: imp, SkippedSheets: skipped}
	if i.archive != nil {
		if key, archiveErr := i.archive.Archive(ctx, providerCode, imp.BatchID, fileName, content); archiveErr != nil {
			log.Warnf("[Importer] archiving %q for batch %s failed: %v", fileName, imp.BatchID, archiveErr)
		} else {
			result.ArchiveKey = key
		}
	}

	rows, errLog, sheetNames := i.parseSheets(cfg, plan)
	imp.TotalRows = len(rows) + len(errLog)
	imp.ErrorRows = len(errLog)

	uniqueCaps := map[string]struct{}{}
	canceled := false
	for start := 0; start < len(rows); start += i.chunkSize {
		if ctxErr := ctx.Err(); ctxErr != nil {
			errLog = append(errLog, fmt.Sprintf("import aborted: %v", ctxErr))
			imp.ErrorRows += len(rows) - start
			canceled = true
			break
		}

		end := start + i.chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		inserted, chunkErrs := i.processChunk(ctx, imp, profile, chunk, uniqueCaps)
		imp.SuccessRows += inserted
		imp.ErrorRows += len(chunk) - inserted
		imp.UniqueCapCodes = len(uniqueCaps)
		errLog = append(errLog, chunkErrs...)

		if err := i.imports.UpdateProgress(ctx, imp); err != nil {
			log.Warnf("[Importer] progress update for batch %s failed: %v", imp.BatchID, err)
		}
		publishProgress(Progress{
			BatchID:     imp.BatchID,
			Status:      imp.Status,
			TotalRows:   imp.TotalRows,
			SuccessRows: imp.SuccessRows,
			ErrorRows:   imp.ErrorRows,
		})
	}

	return result, i.finalize(ctx, imp, errLog, sheetNames, canceled)
}

// buildPlan validates every non-skipped sheet before any database write. For
// tabular sheets the required columns must map; unmapped headers are sent to
// the external classifier, when configured, before giving up.
func (i *Importer) buildPlan(ctx context.Context, cfg ratesheet.Config, wb *ratesheet.Workbook, profile *models.ProviderProfile) ([]plannedSheet, []string, error) {
	detections := ratesheet.DetectWorkbook(cfg, wb)

	var plan []plannedSheet
	var skipped []string
	for idx, det := range detections {
		sheet := wb.Sheets[idx]
		switch det.Format {
		case ratesheet.FormatTabular:
			cmap, err := i.mapSheetColumns(ctx, cfg, sheet, det, profile)
			if err != nil {
				return nil, nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
			}
			plan = append(plan, plannedSheet{sheet: sheet, det: det, cmap: cmap})
		case ratesheet.FormatMatrix:
			plan = append(plan, plannedSheet{sheet: sheet, det: det})
		default:
			skipped = append(skipped, fmt.Sprintf("%s: %s", sheet.Name, det.Reason))
		}
	}
	return plan, skipped, nil
}

// mapSheetColumns resolves the column map of a tabular sheet. Profile
// overrides win outright; when the built-in patterns leave required fields
// unmapped the classifier service gets one shot, and confident suggestions
// are saved back to the profile so the next import maps without the call.
func (i *Importer) mapSheetColumns(ctx context.Context, cfg ratesheet.Config, sheet ratesheet.Sheet, det ratesheet.SheetDetection, profile *models.ProviderProfile) (ratesheet.ColumnMap, error) {
	headers := sheet.Rows[det.HeaderRow]

	cmap, err := ratesheet.MapHeaders(headers, cfg.ColumnOverrides)
	if err == nil {
		cmap.HeaderRow = det.HeaderRow
		return cmap, nil
	}

	var missing *ratesheet.MissingMappingError
	if !errors.As(err, &missing) || i.classifier == nil {
		return cmap, err
	}

	suggestion, sErr := i.classifier.Suggest(ctx, headers, sampleRows(sheet, det.HeaderRow))
	if sErr != nil {
		log.Warnf("[Importer] classifier call for sheet %q failed: %v", sheet.Name, sErr)
		return cmap, err
	}

	overrides := map[string]string{}
	for k, v := range cfg.ColumnOverrides {
		overrides[k] = v
	}
	accepted := suggestion.OverrideMap(classifierMinConfidence)
	for k, v := range accepted {
		overrides[k] = v
	}

	cmap, err = ratesheet.MapHeaders(headers, overrides)
	if err != nil {
		return cmap, err
	}
	cmap.HeaderRow = det.HeaderRow

	if profile != nil && len(accepted) > 0 {
		merged := profile.ColumnMapEntries()
		if merged == nil {
			merged = map[string]string{}
		}
		for k, v := range accepted {
			merged[k] = v
		}
		if pErr := profile.SetColumnMap(merged); pErr == nil {
			if pErr = i.profiles.Save(ctx, profile); pErr != nil {
				log.Warnf("[Importer] saving classifier mappings for %s failed: %v", profile.ProviderCode, pErr)
			}
		}
	}
	return cmap, nil
}

func sampleRows(sheet ratesheet.Sheet, headerRow int) [][]string {
	var sample [][]string
	for idx := headerRow + 1; idx < len(sheet.Rows) && len(sample) < classifierSampleRows; idx++ {
		sample = append(sample, sheet.Rows[idx])
	}
	return sample
}

// parseSheets runs every planned sheet through its decoder and collects rows,
// row errors and the names of sheets that actually produced rates.
func (i *Importer) parseSheets(cfg ratesheet.Config, plan []plannedSheet) ([]ratesheet.RateRow, []string, []string) {
	var rows []ratesheet.RateRow
	var errLog []string
	var sheetNames []string

	for _, p := range plan {
		var parsed []ratesheet.RateRow
		var rowErrs []ratesheet.RowError
		switch p.det.Format {
		case ratesheet.FormatTabular:
			parsed, rowErrs = ratesheet.ExtractTabularRows(p.sheet, p.cmap, cfg)
		case ratesheet.FormatMatrix:
			parsed, rowErrs = ratesheet.DecodeMatrixSheet(cfg, p.sheet)
		}
		if len(parsed) > 0 {
			sheetNames = append(sheetNames, p.sheet.Name)
		}
		rows = append(rows, parsed...)
		for _, rowErr := range rowErrs {
			errLog = append(errLog, rowErr.Error())
		}
	}
	return rows, errLog, sheetNames
}

// processChunk resolves the chunk's vehicles, scores each row and bulk-inserts
// the resulting rates. Returns the inserted count and any chunk-level errors.
func (i *Importer) processChunk(ctx context.Context, imp *models.RatebookImport, profile *models.ProviderProfile, chunk []ratesheet.RateRow, uniqueCaps map[string]struct{}) (int, []string) {
	keys := make([]vehiclematch.VehicleKey, 0, len(chunk))
	for _, row := range chunk {
		keys = append(keys, vehiclematch.VehicleKey{
			Manufacturer: row.Manufacturer,
			Model:        row.Model,
			Variant:      row.Variant,
			P11DPence:    row.ListPricePence,
		})
	}

	resolved, err := i.matcher.ResolveKeys(ctx, imp.ProviderCode, keys)
	if err != nil {
		return 0, []string{fmt.Sprintf("vehicle resolution failed: %v", err)}
	}

	autoCreate := profile != nil && profile.AutoCreateVehicles
	chunkCaps := map[string]struct{}{}
	batch := make([]models.ProviderRate, 0, len(chunk))
	for _, row := range chunk {
		sourceKey := models.BuildSourceKey(imp.ProviderCode, row.Manufacturer, row.Model, row.Variant)
		record := resolved[sourceKey]
		rate := buildRate(imp, row)

		listPrice := row.ListPricePence
		if record != nil {
			if autoCreate && record.MatchStatus == models.MatchStatusPending && record.CapCode == nil && row.ListPricePence > 0 {
				if _, acErr := i.matcher.AutoCreateEntry(ctx, record, autoCapCode(sourceKey)); acErr != nil {
					log.Warnf("[Importer] catalog auto-create for %q failed: %v", sourceKey, acErr)
				}
			}
			if record.MatchStatus != models.MatchStatusRejected && record.CapCode != nil {
				rate.CapCode = record.CapCode
				rate.VehicleID = record.MatchedVehicleID
				chunkCaps[*record.CapCode] = struct{}{}
			}
			if listPrice == 0 && record.MatchedP11DPence != nil {
				listPrice = *record.MatchedP11DPence
			}
		}
		rate.Score = scoring.Score(row.TotalRentalPence, listPrice, row.TermMonths)
		batch = append(batch, rate)
	}

	var insertErr error
	for attempt := 1; attempt <= bulkInsertAttempts; attempt++ {
		if insertErr = i.rates.BulkInsert(ctx, batch); insertErr == nil {
			break
		}
		log.Warnf("[Importer] bulk insert attempt %d/%d for batch %s failed: %v",
			attempt, bulkInsertAttempts, imp.BatchID, insertErr)
		time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
	}
	if insertErr != nil {
		return 0, []string{fmt.Sprintf("chunk of %d rows dropped after %d insert attempts: %v",
			len(batch), bulkInsertAttempts, insertErr)}
	}
	// a dropped chunk must not count toward the batch's unique cap codes
	for code := range chunkCaps {
		uniqueCaps[code] = struct{}{}
	}
	return len(batch), nil
}

func buildRate(imp *models.RatebookImport, row ratesheet.RateRow) models.ProviderRate {
	rate := models.ProviderRate{
		ImportID:           imp.ID,
		ProviderCode:       imp.ProviderCode,
		ContractType:       imp.ContractType,
		Manufacturer:       row.Manufacturer,
		Model:              row.Model,
		Variant:            row.Variant,
		TermMonths:         row.TermMonths,
		AnnualMileage:      row.AnnualMileage,
		PaymentPlan:        row.PaymentPlan,
		InitialMonths:      row.InitialMonths,
		TotalRentalPence:   row.TotalRentalPence,
		LeaseRentalPence:   row.LeaseRentalPence,
		ServiceRentalPence: row.ServiceRentalPence,
		CO2:                row.CO2,
		FuelType:           row.FuelType,
		BodyStyle:          row.BodyStyle,
		InsuranceGroup:     row.InsuranceGroup,
		BIKPercent:         row.BIKPercent,
		WholeLifeCostPence: row.WholeLifeCostPence,
		SourceSheet:        row.SourceSheet,
		SourceRow:          row.SourceRow,
	}
	if row.ListPricePence > 0 {
		p11d := row.ListPricePence
		rate.P11DPence = &p11d
	}
	return rate
}

// autoCapCode derives a stable synthetic CAP code for auto-created catalog
// entries, so re-imports of the same descriptor hit the same entry.
func autoCapCode(sourceKey string) string {
	sum := sha256.Sum256([]byte(sourceKey))
	return "AUTO-" + strings.ToUpper(hex.EncodeToString(sum[:4]))
}

// finalize writes the batch's terminal state. A batch fails when it was
// aborted, produced no rates at all, or errored on more than half its rows;
// failed batches hand the latest pointer back to the previous completed batch.
func (i *Importer) finalize(ctx context.Context, imp *models.RatebookImport, errLog, sheetNames []string, canceled bool) error {
	now := time.Now()
	imp.CompletedAt = &now
	imp.Status = models.ImportStatusCompleted
	if canceled || imp.SuccessRows == 0 || imp.ErrorRows > imp.TotalRows/2 {
		imp.Status = models.ImportStatusFailed
	}

	if err := imp.SetErrorLog(errLog); err != nil {
		log.Warnf("[Importer] encoding error log for batch %s failed: %v", imp.BatchID, err)
	}
	if err := imp.SetSheetsImported(sheetNames); err != nil {
		log.Warnf("[Importer] encoding sheet list for batch %s failed: %v", imp.BatchID, err)
	}

	var err error
	if imp.Status == models.ImportStatusFailed {
		err = i.imports.ReleaseLatest(ctx, imp)
	} else {
		err = i.imports.UpdateProgress(ctx, imp)
	}
	clearProgress(imp.BatchID)

	log.Infof("[Importer] batch %s finished: status=%s total=%d success=%d errors=%d unique_caps=%d",
		imp.BatchID, imp.Status, imp.TotalRows, imp.SuccessRows, imp.ErrorRows, imp.UniqueCapCodes)
	return err
}
