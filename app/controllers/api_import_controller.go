package controllers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/lexdrive/ratehub/app/models"
	"github.com/lexdrive/ratehub/app/repository"
	"github.com/lexdrive/ratehub/internal/pkg/importer"
)

// uploadRequest is the multipart form accompanying a rate sheet upload.
type uploadRequest struct {
	ProviderCode string `form:"provider_code" validate:"required,min=2,max=50"`
	ContractType string `form:"contract_type" validate:"required,oneof=BCH PCH"`
	Async        bool   `form:"async"`
}

// importSummary is the API shape of a batch; the stored error log is cut to
// the response limit so a pathological file cannot bloat every status call.
type importSummary struct {
	BatchID        string   `json:"batch_id"`
	ProviderCode   string   `json:"provider_code"`
	ContractType   string   `json:"contract_type"`
	FileName       string   `json:"file_name"`
	Status         string   `json:"status"`
	IsLatest       bool     `json:"is_latest"`
	TotalRows      int      `json:"total_rows"`
	SuccessRows    int      `json:"success_rows"`
	ErrorRows      int      `json:"error_rows"`
	UniqueCapCodes int      `json:"unique_cap_codes"`
	SheetsImported []string `json:"sheets_imported,omitempty"`
	Errors         []string `json:"errors,omitempty"`
	StartedAt      string   `json:"started_at"`
	CompletedAt    *string  `json:"completed_at,omitempty"`
}

func summarize(imp *models.RatebookImport) importSummary {
	s := importSummary{
		BatchID:        imp.BatchID,
		ProviderCode:   imp.ProviderCode,
		ContractType:   imp.ContractType,
		FileName:       imp.FileName,
		Status:         imp.Status,
		IsLatest:       imp.IsLatest,
		TotalRows:      imp.TotalRows,
		SuccessRows:    imp.SuccessRows,
		ErrorRows:      imp.ErrorRows,
		UniqueCapCodes: imp.UniqueCapCodes,
		SheetsImported: imp.SheetsImportedNames(),
		StartedAt:      imp.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if errs := imp.ErrorLogEntries(); len(errs) > 0 {
		if len(errs) > models.ErrorLogResponseLimit {
			errs = errs[:models.ErrorLogResponseLimit]
		}
		s.Errors = errs
	}
	if imp.CompletedAt != nil {
		ts := imp.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
		s.CompletedAt = &ts
	}
	return s
}

// HandleCreateImport accepts a rate sheet upload and runs the import, or
// enqueues it when async is requested.
func HandleCreateImport(c *fiber.Ctx) error {
	var req uploadRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid form data")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file missing")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return serverError(c, "could not read upload")
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return serverError(c, "could not read upload")
	}

	if req.Async {
		job := &models.ImportJob{
			ProviderCode: req.ProviderCode,
			ContractType: req.ContractType,
			FileName:     fileHeader.Filename,
			Payload:      content,
		}
		if err := repository.GetGlobalRepositories().ImportJob.Enqueue(c.Context(), job); err != nil {
			log.Errorf("[API] enqueue import for %s failed: %v", req.ProviderCode, err)
			return serverError(c, "could not enqueue import")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": job.ID, "status": job.Status})
	}

	result, err := importService.Run(c.Context(), req.ProviderCode, req.ContractType, fileHeader.Filename, content)
	if err != nil {
		var dup *importer.DuplicateFileError
		if errors.As(err, &dup) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":             "duplicate_file",
				"message":           dup.Error(),
				"original_batch_id": dup.OriginalBatchID,
			})
		}
		var noSheets *importer.NoParseableSheetsError
		if errors.As(err, &noSheets) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":   "no_parseable_sheets",
				"message": noSheets.Error(),
				"sheets":  noSheets.Reasons,
			})
		}
		log.Errorf("[API] import of %q for %s failed: %v", fileHeader.Filename, req.ProviderCode, err)
		return jsonError(c, fiber.StatusUnprocessableEntity, "import_failed", err.Error())
	}

	resp := fiber.Map{"import": summarize(result.Import)}
	if len(result.SkippedSheets) > 0 {
		resp["skipped_sheets"] = result.SkippedSheets
	}
	if result.ArchiveKey != "" {
		resp["archive_key"] = result.ArchiveKey
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// HandleListImports lists batches, newest first, optionally per provider.
func HandleListImports(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	imports, total, err := repository.GetGlobalRepositories().Import.List(
		c.Context(), c.Query("provider_code"), offset, limit)
	if err != nil {
		return serverError(c, "could not list imports")
	}

	summaries := make([]importSummary, 0, len(imports))
	for i := range imports {
		summaries = append(summaries, summarize(&imports[i]))
	}
	return c.JSON(fiber.Map{"total": total, "imports": summaries})
}

// HandleGetImport returns one batch, with live progress while processing.
func HandleGetImport(c *fiber.Ctx) error {
	imp, err := repository.GetGlobalRepositories().Import.GetByBatchID(c.Context(), c.Params("batchID"))
	if err != nil {
		return notFound(c, "batch not found")
	}

	resp := fiber.Map{"import": summarize(imp)}
	if imp.Status == models.ImportStatusProcessing {
		if progress, ok := importer.GetProgress(imp.BatchID); ok {
			resp["progress"] = progress
		}
	}
	return c.JSON(resp)
}

// HandleDeleteImport deletes a batch and its rates. The latest batch of a
// provider is protected; supersede it with a new import first.
func HandleDeleteImport(c *fiber.Ctx) error {
	repos := repository.GetGlobalRepositories()
	imp, err := repos.Import.GetByBatchID(c.Context(), c.Params("batchID"))
	if err != nil {
		return notFound(c, "batch not found")
	}
	if imp.IsLatest {
		return jsonError(c, fiber.StatusConflict, "batch_is_latest",
			"cannot delete the latest batch; import a replacement first")
	}
	if err := repos.Import.Delete(c.Context(), imp); err != nil {
		log.Errorf("[API] deleting batch %s failed: %v", imp.BatchID, err)
		return serverError(c, "could not delete batch")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleListImportJobs exposes the deferred import queue.
func HandleListImportJobs(c *fiber.Ctx) error {
	_, limit := pagination(c)
	jobs, err := repository.GetGlobalRepositories().ImportJob.List(c.Context(), c.Query("status"), limit)
	if err != nil {
		return serverError(c, "could not list jobs")
	}
	return c.JSON(fiber.Map{"jobs": jobs})
}
