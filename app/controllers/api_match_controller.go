package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/lexdrive/ratehub/app/models"
	"github.com/lexdrive/ratehub/app/repository"
	"github.com/lexdrive/ratehub/internal/pkg/vehiclematch"
)

// HandleListMatches lists vehicle match records, optionally filtered by
// provider and workflow status.
func HandleListMatches(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	status := c.Query("status")
	switch status {
	case "", models.MatchStatusPending, models.MatchStatusConfirmed,
		models.MatchStatusRejected, models.MatchStatusManual:
	default:
		return badRequest(c, "unknown status filter")
	}

	matches, total, err := repository.GetGlobalRepositories().CapMatch.List(
		c.Context(), c.Query("provider_code"), status, offset, limit)
	if err != nil {
		return serverError(c, "could not list matches")
	}
	return c.JSON(fiber.Map{"total": total, "matches": matches})
}

// actionRequest carries the acting user of a workflow transition, and the CAP
// code for manual assignment.
type actionRequest struct {
	ActionBy string `json:"action_by" validate:"required,min=2,max=100"`
	CapCode  string `json:"cap_code"`
}

// HandleMatchAction executes a workflow transition on one match record. The
// verb comes from the route: confirm, reject, manual, rematch or reset.
func HandleMatchAction(c *fiber.Ctx) error {
	matchID, err := c.ParamsInt("id")
	if err != nil || matchID <= 0 {
		return badRequest(c, "invalid match id")
	}

	action := c.Params("action")
	var req actionRequest
	if action != "rematch" {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid body")
		}
		if err := validate.Struct(&req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	var record *models.VehicleCapMatch
	switch action {
	case "confirm":
		record, err = matchService.Confirm(c.Context(), uint(matchID), req.ActionBy)
	case "reject":
		record, err = matchService.Reject(c.Context(), uint(matchID), req.ActionBy)
	case "manual":
		if req.CapCode == "" {
			return badRequest(c, "cap_code missing")
		}
		record, err = matchService.Manual(c.Context(), uint(matchID), req.CapCode, req.ActionBy)
	case "rematch":
		record, err = matchService.Rematch(c.Context(), uint(matchID))
	case "reset":
		record, err = matchService.ResetToPending(c.Context(), uint(matchID), req.ActionBy)
	default:
		return badRequest(c, "unknown action")
	}

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "match not found")
		}
		if errors.Is(err, vehiclematch.ErrInvalidTransition) {
			return jsonError(c, fiber.StatusConflict, "invalid_transition", err.Error())
		}
		if errors.Is(err, vehiclematch.ErrUnknownCapCode) {
			return badRequest(c, err.Error())
		}
		log.Errorf("[API] match action %s on %d failed: %v", action, matchID, err)
		return serverError(c, "match action failed")
	}
	return c.JSON(fiber.Map{"match": record})
}
