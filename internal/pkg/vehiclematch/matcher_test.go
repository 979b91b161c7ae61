package vehiclematch

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lexdrive/ratehub/app/models"
	"github.com/lexdrive/ratehub/app/repository"
)

// fakeVehicleRepo is an in-memory catalog.
type fakeVehicleRepo struct {
	vehicles    []models.Vehicle
	nextID      uint
	searchCalls int
}

func (f *fakeVehicleRepo) GetByID(ctx context.Context, id uint) (*models.Vehicle, error) {
	for i := range f.vehicles {
		if f.vehicles[i].ID == id {
			v := f.vehicles[i]
			return &v, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeVehicleRepo) GetByCapCode(ctx context.Context, capCode string) (*models.Vehicle, error) {
	for i := range f.vehicles {
		if f.vehicles[i].CapCode == capCode {
			v := f.vehicles[i]
			return &v, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeVehicleRepo) SearchByManufacturerModel(ctx context.Context, manufacturer, model string) ([]models.Vehicle, error) {
	f.searchCalls++
	var out []models.Vehicle
	for _, v := range f.vehicles {
		if strings.EqualFold(v.Manufacturer, manufacturer) &&
			strings.Contains(strings.ToLower(v.Model), strings.ToLower(model)) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapCode < out[j].CapCode })
	return out, nil
}

func (f *fakeVehicleRepo) Create(ctx context.Context, vehicle *models.Vehicle) error {
	f.nextID++
	vehicle.ID = f.nextID
	f.vehicles = append(f.vehicles, *vehicle)
	return nil
}

func (f *fakeVehicleRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(f.vehicles)), nil
}

// fakeMatchRepo stores VehicleCapMatch records keyed by ID and source key.
type fakeMatchRepo struct {
	records map[uint]models.VehicleCapMatch
	nextID  uint
	creates int
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{records: map[uint]models.VehicleCapMatch{}}
}

func (f *fakeMatchRepo) GetByID(ctx context.Context, id uint) (*models.VehicleCapMatch, error) {
	if rec, ok := f.records[id]; ok {
		return &rec, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMatchRepo) GetBySourceKey(ctx context.Context, sourceKey string) (*models.VehicleCapMatch, error) {
	for _, rec := range f.records {
		if rec.SourceKey == sourceKey {
			out := rec
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMatchRepo) GetBySourceKeys(ctx context.Context, sourceKeys []string) ([]models.VehicleCapMatch, error) {
	var out []models.VehicleCapMatch
	for _, sk := range sourceKeys {
		for _, rec := range f.records {
			if rec.SourceKey == sk {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func (f *fakeMatchRepo) Create(ctx context.Context, match *models.VehicleCapMatch) error {
	f.creates++
	f.nextID++
	match.ID = f.nextID
	f.records[match.ID] = *match
	return nil
}

func (f *fakeMatchRepo) Update(ctx context.Context, match *models.VehicleCapMatch) error {
	f.records[match.ID] = *match
	return nil
}

func (f *fakeMatchRepo) List(ctx context.Context, provider, status string, offset, limit int) ([]models.VehicleCapMatch, int64, error) {
	var out []models.VehicleCapMatch
	for _, rec := range f.records {
		if provider != "" && rec.SourceProvider != provider {
			continue
		}
		if status != "" && rec.MatchStatus != status {
			continue
		}
		out = append(out, rec)
	}
	return out, int64(len(out)), nil
}

type backfillCall struct {
	Provider     string
	Manufacturer string
	Model        string
	Variant      string
	VehicleID    uint
	CapCode      string
}

// fakeRateRepo only records backfill calls; the matcher touches nothing else.
type fakeRateRepo struct {
	backfills []backfillCall
}

func (f *fakeRateRepo) BulkInsert(ctx context.Context, rates []models.ProviderRate) error { return nil }
func (f *fakeRateRepo) CountByImport(ctx context.Context, importID uint) (int64, error) {
	return 0, nil
}
func (f *fakeRateRepo) Filter(ctx context.Context, filter repository.RateFilter) ([]models.ProviderRate, int64, error) {
	return nil, 0, nil
}
func (f *fakeRateRepo) CompareByCapCode(ctx context.Context, capCode string) ([]models.ProviderRate, error) {
	return nil, nil
}
func (f *fakeRateRepo) CoverageGaps(ctx context.Context) ([]repository.CoverageGap, error) {
	return nil, nil
}
func (f *fakeRateRepo) DeleteByImport(ctx context.Context, importID uint) error { return nil }
func (f *fakeRateRepo) BackfillMatch(ctx context.Context, providerCode, manufacturer, model, variant string, vehicleID uint, capCode string) error {
	f.backfills = append(f.backfills, backfillCall{
		Provider:     providerCode,
		Manufacturer: manufacturer,
		Model:        model,
		Variant:      variant,
		VehicleID:    vehicleID,
		CapCode:      capCode,
	})
	return nil
}

func newTestMatcher(t *testing.T) (*Matcher, *fakeVehicleRepo, *fakeMatchRepo, *fakeRateRepo) {
	t.Helper()
	vehicles := &fakeVehicleRepo{}
	matches := newFakeMatchRepo()
	rates := &fakeRateRepo{}
	return NewMatcher(vehicles, matches, rates), vehicles, matches, rates
}

func seedCatalog(t *testing.T, repo *fakeVehicleRepo, entries ...models.Vehicle) {
	t.Helper()
	for i := range entries {
		require.NoError(t, repo.Create(context.Background(), &entries[i]))
	}
}

func TestFindMatchExactTier(t *testing.T) {
	m, vehicles, _, _ := newTestMatcher(t)
	seedCatalog(t, vehicles, models.Vehicle{
		CapCode:      "FOFO36STL5HPTA",
		Manufacturer: "Ford",
		Model:        "Focus",
		Variant:      "ST-Line X 1.0 EcoBoost 125 5dr",
		P11DPence:    2756000,
	})

	result, err := m.FindMatch(context.Background(), "Ford", "Focus", "ST-Line X 1.0 EcoBoost 125 5dr", 2756000)
	require.NoError(t, err)
	require.NotNil(t, result.Vehicle)
	assert.Equal(t, models.MatchMethodExact, result.Method)
	assert.Equal(t, 98, result.Confidence)
	require.NotNil(t, result.CapCode)
	assert.Equal(t, "FOFO36STL5HPTA", *result.CapCode)
}

func TestFindMatchVariantPrefixTolerance(t *testing.T) {
	m, vehicles, _, _ := newTestMatcher(t)
	seedCatalog(t, vehicles, models.Vehicle{
		CapCode:      "FOFO36STL5HPTA",
		Manufacturer: "Ford",
		Model:        "Focus",
		Variant:      "ST-Line X 1.0 EcoBoost 125 5dr",
	})

	// provider sheet drops the trailing engine/door spec
	result, err := m.FindMatch(context.Background(), "Ford", "Focus", "ST-Line X 1.0 EcoBoost", 0)
	require.NoError(t, err)
	assert.Equal(t, models.MatchMethodExact, result.Method)
	assert.Equal(t, 95, result.Confidence)
}

func TestFindMatchModelOnlyTier(t *testing.T) {
	m, vehicles, _, _ := newTestMatcher(t)
	seedCatalog(t, vehicles,
		models.Vehicle{CapCode: "FOFO36ZET5HPTA", Manufacturer: "Ford", Model: "Focus", Variant: "Zetec 5dr"},
		models.Vehicle{CapCode: "FOFO36TIT5HPTA", Manufacturer: "Ford", Model: "Focus", Variant: "Titanium 5dr"},
	)

	// no variant: the exact tier never runs and the floor confidence applies
	result, err := m.FindMatch(context.Background(), "Ford", "Focus", "", 0)
	require.NoError(t, err)
	assert.Equal(t, models.MatchMethodModelOnly, result.Method)
	assert.Equal(t, 60, result.Confidence)
	// deterministic pick: lowest CAP code
	assert.Equal(t, "FOFO36TIT5HPTA", *result.CapCode)
}

func TestFindMatchNoCandidates(t *testing.T) {
	m, vehicles, _, _ := newTestMatcher(t)

	result, err := m.FindMatch(context.Background(), "Ford", "Focus", "ST-Line", 0)
	require.NoError(t, err)
	assert.Nil(t, result.Vehicle)
	assert.Equal(t, models.MatchMethodNone, result.Method)
	assert.Equal(t, 0, result.Confidence)

	// missing identifiers never hit the catalog
	_, err = m.FindMatch(context.Background(), "", "Focus", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, vehicles.searchCalls)
}

func TestResolveKeysDedupAndReuse(t *testing.T) {
	m, vehicles, matches, _ := newTestMatcher(t)
	seedCatalog(t, vehicles, models.Vehicle{
		CapCode: "VWGO36GTI5HPTA", Manufacturer: "Volkswagen", Model: "Golf GTI", Variant: "",
	})

	keys := []VehicleKey{
		{Manufacturer: "Volkswagen", Model: "Golf GTI", Variant: "", P11DPence: 3500000},
		{Manufacturer: "Volkswagen", Model: "Golf GTI", Variant: "", P11DPence: 3500000}, // duplicate row
		{Manufacturer: "Ford", Model: "Puma", Variant: "Titanium"},
	}

	resolved, err := m.ResolveKeys(context.Background(), "VENUS", keys)
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, 2, matches.creates)

	golfKey := models.BuildSourceKey("VENUS", "Volkswagen", "Golf GTI", "")
	golf := resolved[golfKey]
	require.NotNil(t, golf)
	assert.Equal(t, models.MatchStatusPending, golf.MatchStatus)
	require.NotNil(t, golf.CapCode)
	assert.Equal(t, "VWGO36GTI5HPTA", *golf.CapCode)
	assert.NotNil(t, golf.MatchedAt)

	pumaKey := models.BuildSourceKey("VENUS", "Ford", "Puma", "Titanium")
	puma := resolved[pumaKey]
	require.NotNil(t, puma)
	assert.Nil(t, puma.CapCode)
	assert.Equal(t, models.MatchMethodNone, puma.MatchMethod)

	// a later import reuses the stored records, including their status
	_, err = m.Confirm(context.Background(), golf.ID, "analyst@lexdrive")
	require.NoError(t, err)

	again, err := m.ResolveKeys(context.Background(), "VENUS", keys)
	require.NoError(t, err)
	assert.Equal(t, 2, matches.creates)
	assert.Equal(t, models.MatchStatusConfirmed, again[golfKey].MatchStatus)
}

func TestConfirm(t *testing.T) {
	m, vehicles, matches, rates := newTestMatcher(t)
	seedCatalog(t, vehicles, models.Vehicle{
		CapCode: "VWGO36GTI5HPTA", Manufacturer: "Volkswagen", Model: "Golf GTI",
	})

	resolved, err := m.ResolveKeys(context.Background(), "VENUS", []VehicleKey{
		{Manufacturer: "Volkswagen", Model: "Golf GTI"},
	})
	require.NoError(t, err)
	record := resolved[models.BuildSourceKey("VENUS", "Volkswagen", "Golf GTI", "")]

	confirmed, err := m.Confirm(context.Background(), record.ID, "analyst@lexdrive")
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusConfirmed, confirmed.MatchStatus)
	require.NotNil(t, confirmed.ConfirmedBy)
	assert.Equal(t, "analyst@lexdrive", *confirmed.ConfirmedBy)
	assert.NotNil(t, confirmed.ConfirmedAt)

	require.Len(t, rates.backfills, 1)
	assert.Equal(t, "VENUS", rates.backfills[0].Provider)
	assert.Equal(t, "Golf GTI", rates.backfills[0].Model)
	assert.Equal(t, "VWGO36GTI5HPTA", rates.backfills[0].CapCode)

	// confirmed is terminal
	_, err = m.Confirm(context.Background(), record.ID, "analyst@lexdrive")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// pending without a suggestion has nothing to confirm
	noSuggestion := &models.VehicleCapMatch{
		SourceProvider: "VENUS", SourceKey: "venus|ford|puma|",
		MatchStatus: models.MatchStatusPending, MatchMethod: models.MatchMethodNone,
	}
	require.NoError(t, matches.Create(context.Background(), noSuggestion))
	_, err = m.Confirm(context.Background(), noSuggestion.ID, "analyst@lexdrive")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReject(t *testing.T) {
	m, vehicles, _, _ := newTestMatcher(t)
	seedCatalog(t, vehicles, models.Vehicle{
		CapCode: "VWGO36GTI5HPTA", Manufacturer: "Volkswagen", Model: "Golf GTI",
	})

	resolved, err := m.ResolveKeys(context.Background(), "VENUS", []VehicleKey{
		{Manufacturer: "Volkswagen", Model: "Golf GTI"},
	})
	require.NoError(t, err)
	record := resolved[models.BuildSourceKey("VENUS", "Volkswagen", "Golf GTI", "")]

	rejected, err := m.Reject(context.Background(), record.ID, "analyst@lexdrive")
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusRejected, rejected.MatchStatus)
	assert.Nil(t, rejected.CapCode)
	assert.Nil(t, rejected.MatchedVehicleID)
	assert.Equal(t, 0, rejected.MatchConfidence)
	assert.Equal(t, models.MatchMethodNone, rejected.MatchMethod)

	_, err = m.Reject(context.Background(), record.ID, "analyst@lexdrive")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestManual(t *testing.T) {
	m, vehicles, matches, rates := newTestMatcher(t)
	seedCatalog(t, vehicles, models.Vehicle{
		CapCode: "AUA336SPT4SPTA", Manufacturer: "Audi", Model: "A3", Variant: "Sport 35 TFSI", P11DPence: 3105000,
	})

	record := &models.VehicleCapMatch{
		SourceProvider: "VENUS", SourceKey: "venus|audi|a3|sport",
		Manufacturer: "Audi", Model: "A3", Variant: "Sport",
		MatchStatus: models.MatchStatusPending, MatchMethod: models.MatchMethodNone,
	}
	require.NoError(t, matches.Create(context.Background(), record))

	_, err := m.Manual(context.Background(), record.ID, "NOSUCHCODE", "analyst@lexdrive")
	assert.ErrorIs(t, err, ErrUnknownCapCode)

	manual, err := m.Manual(context.Background(), record.ID, "AUA336SPT4SPTA", "analyst@lexdrive")
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusManual, manual.MatchStatus)
	assert.Equal(t, models.MatchMethodManual, manual.MatchMethod)
	assert.Equal(t, 100, manual.MatchConfidence)
	require.NotNil(t, manual.MatchedP11DPence)
	assert.Equal(t, int64(3105000), *manual.MatchedP11DPence)
	require.Len(t, rates.backfills, 1)

	// a manual assignment may be corrected with another manual assignment,
	// only a confirmed record is off limits
	_, err = m.Manual(context.Background(), record.ID, "AUA336SPT4SPTA", "analyst@lexdrive")
	require.NoError(t, err)
}

func TestManualRefusesConfirmed(t *testing.T) {
	m, vehicles, _, _ := newTestMatcher(t)
	seedCatalog(t, vehicles, models.Vehicle{
		CapCode: "VWGO36GTI5HPTA", Manufacturer: "Volkswagen", Model: "Golf GTI",
	})

	resolved, err := m.ResolveKeys(context.Background(), "VENUS", []VehicleKey{
		{Manufacturer: "Volkswagen", Model: "Golf GTI"},
	})
	require.NoError(t, err)
	record := resolved[models.BuildSourceKey("VENUS", "Volkswagen", "Golf GTI", "")]
	_, err = m.Confirm(context.Background(), record.ID, "analyst@lexdrive")
	require.NoError(t, err)

	_, err = m.Manual(context.Background(), record.ID, "VWGO36GTI5HPTA", "analyst@lexdrive")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRematchPicksUpNewCatalogEntries(t *testing.T) {
	m, vehicles, _, _ := newTestMatcher(t)

	// catalog is empty on first sight
	resolved, err := m.ResolveKeys(context.Background(), "VENUS", []VehicleKey{
		{Manufacturer: "Volkswagen", Model: "Golf GTI"},
	})
	require.NoError(t, err)
	record := resolved[models.BuildSourceKey("VENUS", "Volkswagen", "Golf GTI", "")]
	require.Nil(t, record.CapCode)

	seedCatalog(t, vehicles, models.Vehicle{
		CapCode: "VWGO36GTI5HPTA", Manufacturer: "Volkswagen", Model: "Golf GTI",
	})

	rematched, err := m.Rematch(context.Background(), record.ID)
	require.NoError(t, err)
	require.NotNil(t, rematched.CapCode)
	assert.Equal(t, "VWGO36GTI5HPTA", *rematched.CapCode)
	assert.Equal(t, models.MatchStatusPending, rematched.MatchStatus)
}

func TestRematchRequiresPending(t *testing.T) {
	m, _, matches, _ := newTestMatcher(t)
	record := &models.VehicleCapMatch{
		SourceProvider: "VENUS", SourceKey: "venus|ford|puma|",
		MatchStatus: models.MatchStatusRejected,
	}
	require.NoError(t, matches.Create(context.Background(), record))

	_, err := m.Rematch(context.Background(), record.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResetToPending(t *testing.T) {
	m, vehicles, _, _ := newTestMatcher(t)
	seedCatalog(t, vehicles, models.Vehicle{
		CapCode: "VWGO36GTI5HPTA", Manufacturer: "Volkswagen", Model: "Golf GTI",
	})

	resolved, err := m.ResolveKeys(context.Background(), "VENUS", []VehicleKey{
		{Manufacturer: "Volkswagen", Model: "Golf GTI"},
	})
	require.NoError(t, err)
	record := resolved[models.BuildSourceKey("VENUS", "Volkswagen", "Golf GTI", "")]

	_, err = m.ResetToPending(context.Background(), record.ID, "analyst@lexdrive")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = m.Confirm(context.Background(), record.ID, "analyst@lexdrive")
	require.NoError(t, err)

	reset, err := m.ResetToPending(context.Background(), record.ID, "analyst@lexdrive")
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusPending, reset.MatchStatus)
	assert.Nil(t, reset.CapCode)
	assert.Nil(t, reset.ConfirmedAt)
	require.NotNil(t, reset.ConfirmedBy)
	assert.Equal(t, "analyst@lexdrive", *reset.ConfirmedBy)
}

func TestAutoCreateEntry(t *testing.T) {
	m, vehicles, matches, _ := newTestMatcher(t)

	record := &models.VehicleCapMatch{
		SourceProvider: "VENUS", SourceKey: "venus|ineos|grenadier|station wagon",
		Manufacturer: "Ineos", Model: "Grenadier", Variant: "Station Wagon", P11DPence: 6900000,
		MatchStatus: models.MatchStatusPending, MatchMethod: models.MatchMethodNone,
	}
	require.NoError(t, matches.Create(context.Background(), record))

	vehicle, err := m.AutoCreateEntry(context.Background(), record, "AUTO-1A2B3C4D")
	require.NoError(t, err)
	assert.Equal(t, "AUTO-1A2B3C4D", vehicle.CapCode)
	assert.Equal(t, "Ineos", vehicle.Manufacturer)
	assert.Equal(t, int64(6900000), vehicle.P11DPence)
	assert.NotZero(t, vehicle.ID)

	assert.Equal(t, models.MatchStatusPending, record.MatchStatus)
	assert.Equal(t, models.MatchMethodAuto, record.MatchMethod)
	assert.Equal(t, 100, record.MatchConfidence)
	require.NotNil(t, record.CapCode)
	assert.Equal(t, "AUTO-1A2B3C4D", *record.CapCode)

	// the entry is findable for subsequent imports
	found, err := vehicles.GetByCapCode(context.Background(), "AUTO-1A2B3C4D")
	require.NoError(t, err)
	assert.Equal(t, vehicle.ID, found.ID)

	// a record that already carries a suggestion is never auto-created over
	_, err = m.AutoCreateEntry(context.Background(), record, "AUTO-X")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
