package controllers

import (
	"sort"

	"github.com/gofiber/fiber/v2"

	"github.com/lexdrive/ratehub/app/models"
	"github.com/lexdrive/ratehub/app/repository"
	"github.com/lexdrive/ratehub/internal/pkg/ratesheet"
	"github.com/lexdrive/ratehub/internal/pkg/scoring"
)

// HandleListRates filters the imported rates. Queries are scoped to latest
// batches unless a specific batch_id is given.
func HandleListRates(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	filter := repository.RateFilter{
		ProviderCode: c.Query("provider_code"),
		ContractType: c.Query("contract_type"),
		Manufacturer: c.Query("manufacturer"),
		CapCode:      c.Query("cap_code"),
		BatchID:      c.Query("batch_id"),
		MinPence:     int64(c.QueryInt("min_pence", 0)),
		MaxPence:     int64(c.QueryInt("max_pence", 0)),
		MinScore:     c.QueryInt("min_score", 0),
		Offset:       offset,
		Limit:        limit,
	}

	rates, total, err := repository.GetGlobalRepositories().Rate.Filter(c.Context(), filter)
	if err != nil {
		return serverError(c, "could not query rates")
	}
	return c.JSON(fiber.Map{"total": total, "rates": presentRates(rates)})
}

// rateView augments a stored rate with its formatted rental and score band.
type rateView struct {
	models.ProviderRate
	MonthlyRental string `json:"monthly_rental"`
	ScoreBand     string `json:"score_band"`
}

func presentRates(rates []models.ProviderRate) []rateView {
	views := make([]rateView, 0, len(rates))
	for i := range rates {
		views = append(views, rateView{
			ProviderRate:  rates[i],
			MonthlyRental: ratesheet.FormatPence(rates[i].TotalRentalPence),
			ScoreBand:     scoring.Band(rates[i].Score),
		})
	}
	return views
}

// HandleCompareRates groups the latest rates of one CAP code by provider,
// cheapest first within each group.
func HandleCompareRates(c *fiber.Ctx) error {
	capCode := c.Query("cap_code")
	if capCode == "" {
		return badRequest(c, "cap_code missing")
	}

	rates, err := repository.GetGlobalRepositories().Rate.CompareByCapCode(c.Context(), capCode)
	if err != nil {
		return serverError(c, "could not query rates")
	}
	if len(rates) == 0 {
		return notFound(c, "no rates for cap code")
	}

	byProvider := map[string][]rateView{}
	for i := range rates {
		byProvider[rates[i].ProviderCode] = append(byProvider[rates[i].ProviderCode],
			rateView{
				ProviderRate:  rates[i],
				MonthlyRental: ratesheet.FormatPence(rates[i].TotalRentalPence),
				ScoreBand:     scoring.Band(rates[i].Score),
			})
	}
	for code := range byProvider {
		group := byProvider[code]
		sort.Slice(group, func(a, b int) bool {
			return group[a].TotalRentalPence < group[b].TotalRentalPence
		})
	}
	return c.JSON(fiber.Map{"cap_code": capCode, "providers": byProvider})
}

// HandleRateCoverage reports CAP codes carried by some providers but missing
// from others, within the latest batch set.
func HandleRateCoverage(c *fiber.Ctx) error {
	gaps, err := repository.GetGlobalRepositories().Rate.CoverageGaps(c.Context())
	if err != nil {
		return serverError(c, "could not compute coverage")
	}
	return c.JSON(fiber.Map{"total": len(gaps), "gaps": gaps})
}
