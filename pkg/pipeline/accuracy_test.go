package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codeready-toolchain/classify/pkg/config"
	"github.com/codeready-toolchain/classify/pkg/database"
	"github.com/codeready-toolchain/classify/pkg/llmgw"
	"github.com/codeready-toolchain/classify/pkg/masking"
	"github.com/codeready-toolchain/classify/pkg/models"
	"github.com/codeready-toolchain/classify/pkg/storage"
	"github.com/codeready-toolchain/classify/pkg/taxonomy"
)

// accuracyFixture is one entry of the golden labeling a full-scale
// integration run is graded against.
type accuracyFixture struct {
	ID           string
	Name         string
	Units        string
	Periodicity  string
	CurrencyCode string

	Family        models.Family
	IndicatorType string
	Temporal      models.TemporalAggregation
	Orientation   models.Orientation
	IsCurrency    bool
}

// buildAccuracyFixtures synthesizes 100 diverse indicators spread evenly
// across every family in the closed enumeration, each carrying its
// embedded expected labeling.
func buildAccuracyFixtures() []accuracyFixture {
	templates := []struct {
		family        models.Family
		indicatorType string
		temporal      models.TemporalAggregation
		orientation   models.Orientation
		namePrefix    string
		units         string
		currency      bool
	}{
		{models.FamilyPhysicalFundamental, "flow", models.TemporalPeriodTotal, models.OrientationHigherIsPositive, "Gross Domestic Product", "USD", true},
		{models.FamilyPhysicalFundamental, "stock", models.TemporalPointInTime, models.OrientationHigherIsPositive, "Foreign Exchange Reserves", "USD", true},
		{models.FamilyNumericMeasurement, "percentage", models.TemporalPointInTime, models.OrientationLowerIsPositive, "Unemployment Rate", "%", false},
		{models.FamilyNumericMeasurement, "ratio", models.TemporalNotApplicable, models.OrientationNeutral, "Debt to GDP Ratio", "ratio", false},
		{models.FamilyPriceValue, "price", models.TemporalPointInTime, models.OrientationNeutral, "Brent Crude Price", "USD/barrel", true},
		{models.FamilyPriceValue, "yield", models.TemporalPointInTime, models.OrientationNeutral, "10 Year Treasury Yield", "%", false},
		{models.FamilyChangeMovement, "rate", models.TemporalPeriodRate, models.OrientationNeutral, "Consumer Price Index Change", "%", false},
		{models.FamilyCompositeDerived, "index", models.TemporalPointInTime, models.OrientationHigherIsPositive, "Purchasing Managers Index", "index", false},
		{models.FamilyTemporal, "lag", models.TemporalNotApplicable, models.OrientationNeutral, "Leading Economic Index Lag", "months", false},
		{models.FamilyQualitative, "category", models.TemporalNotApplicable, models.OrientationNeutral, "Credit Rating Outlook", "category", false},
	}

	fixtures := make([]accuracyFixture, 0, 100)
	for i := 0; i < 100; i++ {
		tmpl := templates[i%len(templates)]
		id := fmt.Sprintf("ind-%03d", i)
		f := accuracyFixture{
			ID:            id,
			Name:          fmt.Sprintf("%s #%d", tmpl.namePrefix, i),
			Units:         tmpl.units,
			Periodicity:   "monthly",
			Family:        tmpl.family,
			IndicatorType: tmpl.indicatorType,
			Temporal:      tmpl.temporal,
			Orientation:   tmpl.orientation,
			IsCurrency:    tmpl.currency,
		}
		if tmpl.currency {
			f.CurrencyCode = "USD"
		}
		fixtures = append(fixtures, f)
	}
	return fixtures
}

var accuracyIDToken = regexp.MustCompile(`\[id=([^\]]+)\]`)

// fixtureProvider is a stand-in llmgw.Provider whose responses are drawn
// from a fixed golden labeling instead of a live model. It deliberately
// mislabels a known subset of indicators so the accuracy computation in
// TestFullScaleClassificationMeetsAccuracyThresholds exercises a
// realistic, non-trivial score instead of a vacuous 100%.
type fixtureProvider struct {
	byID map[string]accuracyFixture
}

func newFixtureProvider(fixtures []accuracyFixture) *fixtureProvider {
	byID := make(map[string]accuracyFixture, len(fixtures))
	for _, f := range fixtures {
		byID[f.ID] = f
	}
	return &fixtureProvider{byID: byID}
}

// wrongFamily returns a family distinct from correct, used to simulate a
// realistic misclassification for a minority of fixtures.
func wrongFamily(correct models.Family) models.Family {
	for _, f := range models.AllFamilies {
		if f != correct {
			return f
		}
	}
	return correct
}

// wrongTypeFor returns a taxonomy-valid indicator_type for family that is
// not correctType, so a deliberately mislabeled fixture still passes
// schema validation instead of tripping a type-family-mismatch flag that
// would make the resulting row's final indicator_type unpredictable.
func wrongTypeFor(family models.Family, correctType string) string {
	for _, typ := range taxonomy.Builtin().TypesFor(family) {
		if typ != correctType {
			return typ
		}
	}
	return correctType
}

func (p *fixtureProvider) Chat(_ context.Context, req llmgw.ChatRequest) (llmgw.ChatResponse, error) {
	var ids []string
	for _, m := range req.Messages {
		if m.Role != "user" {
			continue
		}
		for _, match := range accuracyIDToken.FindAllStringSubmatch(m.Content, -1) {
			ids = append(ids, match[1])
		}
	}

	var sb strings.Builder
	sb.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		f, ok := p.byID[id]
		if !ok {
			continue
		}

		family := f.Family
		indicatorType := f.IndicatorType
		temporal := f.Temporal
		// Every 10th fixture gets a deliberately wrong (but still
		// taxonomy-valid) family+type pair, and every 23rd an
		// otherwise-correct family but a wrong indicator_type, so the
		// overall/per-field accuracy split is exercised rather than
		// trivially 100% across the board.
		n := fixtureIndex(id)
		if n%10 == 0 {
			family = wrongFamily(f.Family)
			indicatorType = taxonomy.Builtin().PlaceholderType(family)
		} else if n%23 == 0 {
			indicatorType = wrongTypeFor(f.Family, f.IndicatorType)
		}

		sb.WriteString(fmt.Sprintf(
			`{"indicator_id":%q,"family":%q,"confidence_family":0.9,"indicator_type":%q,"indicator_category":"fixture","temporal_aggregation":%q,"is_currency_denominated":%t,"confidence_cls":0.9,"heat_map_orientation":%q,"confidence_orient":0.9,"reasoning":"fixture response"}`,
			id, string(family), indicatorType, string(temporal), f.IsCurrency, string(f.Orientation),
		))
	}
	sb.WriteByte(']')

	text := sb.String()
	return llmgw.ChatResponse{Text: text, TokensIn: len(req.Messages[0].Content) / 4, TokensOut: len(text) / 4}, nil
}

func fixtureIndex(id string) int {
	var n int
	_, _ = fmt.Sscanf(id, "ind-%d", &n)
	return n
}

// accuracyTestStore spins up a disposable Postgres container, mirroring
// storage_test.go's bootstrap.
func accuracyTestStore(t *testing.T) *storage.Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	client, err := database.NewClient(ctx, database.Config{
		Host: host, Port: port.Int(), User: "test", Password: "test",
		Database: "test", SSLMode: "disable", MaxOpenConns: 10, MaxIdleConns: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return storage.New(client.DB())
}

// TestFullScaleClassificationMeetsAccuracyThresholds seeds 100 diverse
// indicators, runs the full driver against a fixture provider whose
// answers mostly but not always match the embedded golden labeling, and
// asserts the resulting Classification rows clear the overall and
// per-field accuracy floors.
func TestFullScaleClassificationMeetsAccuracyThresholds(t *testing.T) {
	ctx := context.Background()
	store := accuracyTestStore(t)
	cfg, err := config.Initialize(ctx, t.TempDir())
	require.NoError(t, err)

	provider := newFixtureProvider(buildAccuracyFixtures())
	providers := mustBuildProviderSetWithOverride(t, cfg, provider)

	drv := &Driver{
		Cfg:       cfg,
		Providers: providers,
		Masking:   masking.NewService(cfg.Defaults.MaskingEnabled),
		Registry:  NewSpecialistRegistry(),
		Repos: Repos{
			Indicators:      storage.NewIndicatorRepo(store),
			Router:          storage.NewRouterRepo(store),
			Specialist:      storage.NewSpecialistRepo(store),
			Validation:      storage.NewValidationRepo(store),
			Orientation:     storage.NewOrientationRepo(store),
			Flagging:        storage.NewFlaggingRepo(store),
			Review:          storage.NewReviewRepo(store),
			Classifications: storage.NewClassificationRepo(store),
			Executions:      storage.NewExecutionRepo(store),
		},
	}

	fixtures := buildAccuracyFixtures()
	items := make([]models.Indicator, 0, len(fixtures))
	byID := make(map[string]accuracyFixture, len(fixtures))
	for _, f := range fixtures {
		items = append(items, models.Indicator{
			ID: f.ID, Name: f.Name, Units: f.Units, Periodicity: f.Periodicity,
			CurrencyCode: f.CurrencyCode,
			SampleValues: []models.Sample{{Date: "2024-01-01", Value: 1}, {Date: "2024-02-01", Value: 1.1}},
		})
		byID[f.ID] = f
		require.NoError(t, drv.Repos.Indicators.Put(ctx, items[len(items)-1]))
	}

	executionID := "exec-accuracy"
	_, err = drv.Run(ctx, executionID, items)
	require.NoError(t, err)

	classifications, err := drv.Repos.Classifications.ListByExecution(ctx, executionID)
	require.NoError(t, err)
	require.NotEmpty(t, classifications)

	var exact, familyRight, typeRight int
	for _, c := range classifications {
		want, ok := byID[c.IndicatorID]
		if !ok {
			continue
		}
		if c.Family == want.Family {
			familyRight++
		}
		if c.IndicatorType == want.IndicatorType {
			typeRight++
		}
		if c.Family == want.Family && c.IndicatorType == want.IndicatorType {
			exact++
		}
	}

	total := len(classifications)
	overallAccuracy := float64(exact) / float64(total)
	familyAccuracy := float64(familyRight) / float64(total)
	typeAccuracy := float64(typeRight) / float64(total)

	assert.GreaterOrEqual(t, overallAccuracy, 0.70, "overall accuracy %.2f below 70%% floor", overallAccuracy)
	assert.GreaterOrEqual(t, familyAccuracy, 0.80, "family accuracy %.2f below 80%% floor", familyAccuracy)
	assert.GreaterOrEqual(t, typeAccuracy, 0.80, "indicator_type accuracy %.2f below 80%% floor", typeAccuracy)
}

// mustBuildProviderSetWithOverride builds a real ProviderSet from cfg (so
// every stage resolves a provider name the usual way) then substitutes
// the fixture provider for every registered name, so every stage talks to
// the fixture instead of a live or mock backend.
func mustBuildProviderSetWithOverride(t *testing.T, cfg *config.Config, provider llmgw.Provider) *ProviderSet {
	t.Helper()
	dry := *cfg
	dry.DryRun = true
	set, err := BuildProviderSet(&dry)
	require.NoError(t, err)
	for name := range set.providers {
		set.providers[name] = provider
	}
	return set
}
