// Package vehiclematch resolves provider vehicle descriptors against the
// canonical CAP catalog, scores the match confidence and drives the human
// confirm/reject/manual workflow on VehicleCapMatch records.
package vehiclematch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"gorm.io/gorm"

	"github.com/lexdrive/ratehub/app/models"
	"github.com/lexdrive/ratehub/app/repository"
)

// Length of the variant prefix used for the exact-tier comparison. Trailing
// trim/spec differences ("SE Nav 5dr" vs "SE Nav") make full-variant equality
// useless, the prefix tolerates them.
const variantPrefixLen = 20

// Match method tier confidences.
const (
	exactBaseConfidence  = 90
	modelOnlyConfidence  = 60
	modelOnlyConfidenceC = 75 // ceiling of the model-only band
)

// ErrInvalidTransition is returned when a workflow action is not permitted
// from the record's current status.
var ErrInvalidTransition = errors.New("match status does not permit this action")

// ErrUnknownCapCode is returned by Manual when the supplied CAP code has no
// catalog entry.
var ErrUnknownCapCode = errors.New("unknown cap code")

// MatchResult is the outcome of one catalog search.
type MatchResult struct {
	Vehicle    *models.Vehicle
	CapCode    *string
	Confidence int
	Method     string
}

// VehicleKey identifies one distinct parsed vehicle within an import chunk.
type VehicleKey struct {
	Manufacturer string
	Model        string
	Variant      string
	P11DPence    int64
}

// Matcher searches the catalog and maintains VehicleCapMatch records.
type Matcher struct {
	vehicles repository.VehicleRepository
	matches  repository.CapMatchRepository
	rates    repository.RateRepository
}

// NewMatcher creates a matcher over the given repositories.
func NewMatcher(vehicles repository.VehicleRepository, matches repository.CapMatchRepository, rates repository.RateRepository) *Matcher {
	return &Matcher{vehicles: vehicles, matches: matches, rates: rates}
}

// FindMatch searches the catalog for the best candidate. Tier 1 requires
// manufacturer equality, model substring and the variant prefix; tier 2 drops
// the variant requirement. Ties within a tier break on CAP code order, which
// the repository guarantees; an arbitrary but deterministic pick is acceptable
// because confirmation is a human workflow.
func (m *Matcher) FindMatch(ctx context.Context, manufacturer, model, variant string, p11dPence int64) (MatchResult, error) {
	none := MatchResult{Method: models.MatchMethodNone}
	if manufacturer == "" || model == "" {
		return none, nil
	}

	candidates, err := m.vehicles.SearchByManufacturerModel(ctx, manufacturer, model)
	if err != nil {
		return none, err
	}
	if len(candidates) == 0 {
		return none, nil
	}

	if variant != "" {
		prefix := strings.ToLower(variant)
		if len(prefix) > variantPrefixLen {
			prefix = prefix[:variantPrefixLen]
		}
		for i := range candidates {
			if !strings.Contains(strings.ToLower(candidates[i].Variant), prefix) {
				continue
			}
			confidence := exactBaseConfidence + (8*similarityPercent(variant, candidates[i].Variant))/100
			return MatchResult{
				Vehicle:    &candidates[i],
				CapCode:    &candidates[i].CapCode,
				Confidence: confidence,
				Method:     models.MatchMethodExact,
			}, nil
		}
	}

	best := &candidates[0]
	confidence := modelOnlyConfidence +
		((modelOnlyConfidenceC-modelOnlyConfidence)*similarityPercent(variant, best.Variant))/100
	return MatchResult{
		Vehicle:    best,
		CapCode:    &best.CapCode,
		Confidence: confidence,
		Method:     models.MatchMethodModelOnly,
	}, nil
}

// similarityPercent is the levenshtein similarity of two strings as 0-100.
func similarityPercent(a, b string) int {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" && b == "" {
		return 100
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	if dist >= longest {
		return 0
	}
	return 100 * (longest - dist) / longest
}

// ResolveKeys resolves a set of distinct vehicle keys for one provider,
// creating pending match records on first sight and reusing prior records,
// confirmed or otherwise, on every later import. Returns the records keyed by
// source key.
func (m *Matcher) ResolveKeys(ctx context.Context, providerCode string, keys []VehicleKey) (map[string]*models.VehicleCapMatch, error) {
	sourceKeys := make([]string, 0, len(keys))
	byKey := map[string]VehicleKey{}
	for _, key := range keys {
		sk := models.BuildSourceKey(providerCode, key.Manufacturer, key.Model, key.Variant)
		if _, seen := byKey[sk]; seen {
			continue
		}
		byKey[sk] = key
		sourceKeys = append(sourceKeys, sk)
	}

	existing, err := m.matches.GetBySourceKeys(ctx, sourceKeys)
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]*models.VehicleCapMatch, len(sourceKeys))
	for i := range existing {
		resolved[existing[i].SourceKey] = &existing[i]
	}

	for _, sk := range sourceKeys {
		if _, ok := resolved[sk]; ok {
			continue
		}
		key := byKey[sk]
		record := &models.VehicleCapMatch{
			SourceProvider: providerCode,
			SourceKey:      sk,
			Manufacturer:   key.Manufacturer,
			Model:          key.Model,
			Variant:        key.Variant,
			P11DPence:      key.P11DPence,
			MatchStatus:    models.MatchStatusPending,
			MatchMethod:    models.MatchMethodNone,
		}
		if err := m.applySuggestion(ctx, record, key); err != nil {
			return nil, err
		}
		if err := m.matches.Create(ctx, record); err != nil {
			return nil, err
		}
		resolved[sk] = record
	}
	return resolved, nil
}

// applySuggestion runs FindMatch and writes the machine suggestion onto the
// record without touching its workflow status.
func (m *Matcher) applySuggestion(ctx context.Context, record *models.VehicleCapMatch, key VehicleKey) error {
	result, err := m.FindMatch(ctx, key.Manufacturer, key.Model, key.Variant, key.P11DPence)
	if err != nil {
		return err
	}
	record.MatchConfidence = result.Confidence
	record.MatchMethod = result.Method
	if result.Vehicle != nil {
		record.CapCode = result.CapCode
		record.MatchedVehicleID = &result.Vehicle.ID
		record.MatchedManufacturer = &result.Vehicle.Manufacturer
		record.MatchedModel = &result.Vehicle.Model
		record.MatchedVariant = &result.Vehicle.Variant
		record.MatchedP11DPence = &result.Vehicle.P11DPence
		now := time.Now()
		record.MatchedAt = &now
	}
	return nil
}

// Confirm accepts the machine suggestion. Valid only from pending with a
// suggested CAP code; backfills already-persisted rates of the descriptor.
func (m *Matcher) Confirm(ctx context.Context, matchID uint, confirmedBy string) (*models.VehicleCapMatch, error) {
	record, err := m.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if record.MatchStatus != models.MatchStatusPending || record.CapCode == nil {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	record.MatchStatus = models.MatchStatusConfirmed
	record.ConfirmedAt = &now
	record.ConfirmedBy = &confirmedBy
	if err := m.matches.Update(ctx, record); err != nil {
		return nil, err
	}
	if err := m.backfill(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Reject discards the machine suggestion and clears the matched fields.
func (m *Matcher) Reject(ctx context.Context, matchID uint, rejectedBy string) (*models.VehicleCapMatch, error) {
	record, err := m.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if record.MatchStatus != models.MatchStatusPending {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	record.ClearMatch()
	record.MatchStatus = models.MatchStatusRejected
	record.ConfirmedAt = &now
	record.ConfirmedBy = &rejectedBy
	return record, m.matches.Update(ctx, record)
}

// Manual attaches a human-supplied CAP code, confidence forced to 100.
func (m *Matcher) Manual(ctx context.Context, matchID uint, capCode, suppliedBy string) (*models.VehicleCapMatch, error) {
	record, err := m.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if record.MatchStatus == models.MatchStatusConfirmed {
		return nil, ErrInvalidTransition
	}

	vehicle, err := m.vehicles.GetByCapCode(ctx, capCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownCapCode
		}
		return nil, err
	}

	now := time.Now()
	record.CapCode = &vehicle.CapCode
	record.MatchedVehicleID = &vehicle.ID
	record.MatchedManufacturer = &vehicle.Manufacturer
	record.MatchedModel = &vehicle.Model
	record.MatchedVariant = &vehicle.Variant
	record.MatchedP11DPence = &vehicle.P11DPence
	record.MatchConfidence = 100
	record.MatchMethod = models.MatchMethodManual
	record.MatchStatus = models.MatchStatusManual
	record.MatchedAt = &now
	record.ConfirmedAt = &now
	record.ConfirmedBy = &suppliedBy
	if err := m.matches.Update(ctx, record); err != nil {
		return nil, err
	}
	if err := m.backfill(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Rematch re-runs the catalog search and overwrites the suggestion. Only
// valid from pending; confirmed, rejected and manual records require an
// explicit reset first.
func (m *Matcher) Rematch(ctx context.Context, matchID uint) (*models.VehicleCapMatch, error) {
	record, err := m.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if record.MatchStatus != models.MatchStatusPending {
		return nil, ErrInvalidTransition
	}

	record.ClearMatch()
	key := VehicleKey{
		Manufacturer: record.Manufacturer,
		Model:        record.Model,
		Variant:      record.Variant,
		P11DPence:    record.P11DPence,
	}
	if err := m.applySuggestion(ctx, record, key); err != nil {
		return nil, err
	}
	return record, m.matches.Update(ctx, record)
}

// ResetToPending moves a terminal record back to pending, clearing the match.
// Deliberately a separate action requiring the same authority as the original
// confirmation, so a rematch can never silently override a confirmed match.
func (m *Matcher) ResetToPending(ctx context.Context, matchID uint, resetBy string) (*models.VehicleCapMatch, error) {
	record, err := m.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !record.IsTerminal() {
		return nil, ErrInvalidTransition
	}

	record.ClearMatch()
	record.MatchStatus = models.MatchStatusPending
	record.ConfirmedAt = nil
	record.ConfirmedBy = &resetBy
	return record, m.matches.Update(ctx, record)
}

// AutoCreateEntry creates a catalog vehicle for an unmatched descriptor and
// attaches it to the record as an auto suggestion. Used by imports for
// providers whose profile enables catalog auto-creation. The record keeps its
// pending status so the created entry still passes through human review.
func (m *Matcher) AutoCreateEntry(ctx context.Context, record *models.VehicleCapMatch, capCode string) (*models.Vehicle, error) {
	if record.MatchStatus != models.MatchStatusPending || record.CapCode != nil {
		return nil, ErrInvalidTransition
	}

	vehicle := &models.Vehicle{
		CapCode:      capCode,
		Manufacturer: record.Manufacturer,
		Model:        record.Model,
		Variant:      record.Variant,
		P11DPence:    record.P11DPence,
	}
	if err := m.vehicles.Create(ctx, vehicle); err != nil {
		return nil, err
	}

	now := time.Now()
	record.CapCode = &vehicle.CapCode
	record.MatchedVehicleID = &vehicle.ID
	record.MatchedManufacturer = &vehicle.Manufacturer
	record.MatchedModel = &vehicle.Model
	record.MatchedVariant = &vehicle.Variant
	record.MatchedP11DPence = &vehicle.P11DPence
	record.MatchConfidence = 100
	record.MatchMethod = models.MatchMethodAuto
	record.MatchedAt = &now
	return vehicle, m.matches.Update(ctx, record)
}

func (m *Matcher) backfill(ctx context.Context, record *models.VehicleCapMatch) error {
	if record.CapCode == nil || record.MatchedVehicleID == nil || m.rates == nil {
		return nil
	}
	return m.rates.BackfillMatch(ctx, record.SourceProvider,
		record.Manufacturer, record.Model, record.Variant,
		*record.MatchedVehicleID, *record.CapCode)
}
