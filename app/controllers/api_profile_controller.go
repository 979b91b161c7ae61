package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/lexdrive/ratehub/app/models"
	"github.com/lexdrive/ratehub/app/repository"
)

// profileRequest is the writable view of a provider profile. Parsing behavior
// is data: new providers are onboarded by saving a profile, not by deploying.
type profileRequest struct {
	DisplayName         string            `json:"display_name" validate:"max=100"`
	ColumnMap           map[string]string `json:"column_map"`
	SkipSheets          []string          `json:"skip_sheets"`
	BoilerplatePatterns []string          `json:"boilerplate_patterns"`
	ManufacturerAliases map[string]string `json:"manufacturer_aliases"`
	TermConvention      string            `json:"term_convention" validate:"omitempty,oneof=remaining_plus_one initial_plus_remaining"`
	AutoCreateVehicles  bool              `json:"auto_create_vehicles"`
}

// HandleGetProfile returns the parsing profile of one provider.
func HandleGetProfile(c *fiber.Ctx) error {
	profile, err := repository.GetGlobalRepositories().Profile.GetByProviderCode(c.Context(), c.Params("code"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "no profile for provider")
		}
		return serverError(c, "could not load profile")
	}
	return c.JSON(fiber.Map{"profile": presentProfile(profile)})
}

// HandleListProfiles lists all provider profiles.
func HandleListProfiles(c *fiber.Ctx) error {
	profiles, err := repository.GetGlobalRepositories().Profile.List(c.Context())
	if err != nil {
		return serverError(c, "could not list profiles")
	}
	views := make([]fiber.Map, 0, len(profiles))
	for i := range profiles {
		views = append(views, presentProfile(&profiles[i]))
	}
	return c.JSON(fiber.Map{"profiles": views})
}

// HandleSaveProfile creates or updates the parsing profile of one provider.
func HandleSaveProfile(c *fiber.Ctx) error {
	code := c.Params("code")
	var req profileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	repos := repository.GetGlobalRepositories()
	profile, err := repos.Profile.GetByProviderCode(c.Context(), code)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return serverError(c, "could not load profile")
		}
		profile = &models.ProviderProfile{ProviderCode: code}
	}

	profile.DisplayName = req.DisplayName
	profile.AutoCreateVehicles = req.AutoCreateVehicles
	if req.TermConvention != "" {
		profile.TermConvention = req.TermConvention
	}
	if err := profile.SetColumnMap(req.ColumnMap); err != nil {
		return badRequest(c, "invalid column map")
	}
	if err := profile.SetSkipSheets(req.SkipSheets); err != nil {
		return badRequest(c, "invalid skip sheets")
	}
	if err := profile.SetBoilerplatePatterns(req.BoilerplatePatterns); err != nil {
		return badRequest(c, "invalid boilerplate patterns")
	}
	if err := profile.SetManufacturerAliases(req.ManufacturerAliases); err != nil {
		return badRequest(c, "invalid manufacturer aliases")
	}

	if err := repos.Profile.Save(c.Context(), profile); err != nil {
		log.Errorf("[API] saving profile %s failed: %v", code, err)
		return serverError(c, "could not save profile")
	}
	return c.JSON(fiber.Map{"profile": presentProfile(profile)})
}

func presentProfile(p *models.ProviderProfile) fiber.Map {
	return fiber.Map{
		"provider_code":        p.ProviderCode,
		"display_name":         p.DisplayName,
		"column_map":           p.ColumnMapEntries(),
		"skip_sheets":          p.SkipSheetPatterns(),
		"boilerplate_patterns": p.BoilerplateList(),
		"manufacturer_aliases": p.AliasTable(),
		"term_convention":      p.TermConvention,
		"auto_create_vehicles": p.AutoCreateVehicles,
		"updated_at":           p.UpdatedAt,
	}
}
