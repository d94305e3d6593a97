package pipeline

import (
	"fmt"
	"strings"

	"github.com/codeready-toolchain/classify/pkg/masking"
	"github.com/codeready-toolchain/classify/pkg/models"
	"github.com/codeready-toolchain/classify/pkg/taxonomy"
)

// Specialist is one family's classification worker: its own system prompt,
// its own restricted indicator_type enumeration, and its own input
// projection (the price-value specialist surfaces currency_code
// prominently; the change-movement specialist surfaces units/% hints).
// One variant is registered per family (§4.3, §9 "polymorphic Specialist").
type Specialist interface {
	Family() models.Family
	BuildPrompt(items []models.Indicator, masker *masking.Service) (system, user string)
	TypeSet() []string
	ProjectInput(models.Indicator) any
}

// SpecialistRegistry dispatches by family to the variant built at startup.
type SpecialistRegistry map[models.Family]Specialist

// NewSpecialistRegistry builds the seven family-specific specialists.
func NewSpecialistRegistry() SpecialistRegistry {
	return SpecialistRegistry{
		models.FamilyPhysicalFundamental: physicalFundamentalSpecialist{base(models.FamilyPhysicalFundamental)},
		models.FamilyNumericMeasurement:  numericMeasurementSpecialist{base(models.FamilyNumericMeasurement)},
		models.FamilyPriceValue:          priceValueSpecialist{base(models.FamilyPriceValue)},
		models.FamilyChangeMovement:      changeMovementSpecialist{base(models.FamilyChangeMovement)},
		models.FamilyCompositeDerived:    compositeDerivedSpecialist{base(models.FamilyCompositeDerived)},
		models.FamilyTemporal:            temporalSpecialist{base(models.FamilyTemporal)},
		models.FamilyQualitative:         qualitativeSpecialist{base(models.FamilyQualitative)},
	}
}

// baseSpecialist supplies the two methods every variant shares: its family
// and its restricted type enumeration, sourced from the taxonomy table
// rather than duplicated per variant.
type baseSpecialist struct {
	family models.Family
}

func base(f models.Family) baseSpecialist { return baseSpecialist{family: f} }

func (b baseSpecialist) Family() models.Family { return b.family }
func (b baseSpecialist) TypeSet() []string     { return taxonomy.Builtin().TypesFor(b.family) }

// specialistUserPrompt renders the common enumeration-plus-projection body
// every variant's BuildPrompt uses, varying only the per-item projection
// line a variant contributes via project.
func specialistUserPrompt(items []models.Indicator, masker *masking.Service, typeSet []string, project func(models.Indicator) string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Valid indicator_type values for this batch: %s\n\n", strings.Join(typeSet, ", ")))
	for i, ind := range items {
		name, desc := masker.MaskIndicator(ind.Name, ind.Description)
		sb.WriteString(fmt.Sprintf("#%d [id=%s] %s", i+1, ind.ID, name))
		if desc != "" {
			sb.WriteString(" - " + desc)
		}
		if extra := project(ind); extra != "" {
			sb.WriteString(" | " + extra)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

const specialistResponseContract = `Respond with a JSON array. Each element must be
{"indicator_id": string, "indicator_type": string, "indicator_category": string, "temporal_aggregation": string, "is_currency_denominated": boolean, "confidence_cls": number between 0 and 1, "reasoning": string}.
temporal_aggregation must be one of: point-in-time, period-rate, period-cumulative, period-average, period-total, not-applicable.
Return exactly one element per indicator, carrying back its indicator_id unchanged.`

type physicalFundamentalSpecialist struct{ baseSpecialist }

func (s physicalFundamentalSpecialist) ProjectInput(ind models.Indicator) any {
	return fmt.Sprintf("units=%s aggregation=%s", ind.Units, ind.AggregationMethod)
}

func (s physicalFundamentalSpecialist) BuildPrompt(items []models.Indicator, masker *masking.Service) (string, string) {
	system := "You classify real-economy stocks, flows, and balances (reserves, GDP, exports, trade balance) into indicator_type: stock, flow, or balance.\n\n" + specialistResponseContract
	user := specialistUserPrompt(items, masker, s.TypeSet(), func(ind models.Indicator) string {
		return s.ProjectInput(ind).(string)
	})
	return system, user
}

type numericMeasurementSpecialist struct{ baseSpecialist }

func (s numericMeasurementSpecialist) ProjectInput(ind models.Indicator) any {
	return fmt.Sprintf("units=%s", ind.Units)
}

func (s numericMeasurementSpecialist) BuildPrompt(items []models.Indicator, masker *masking.Service) (string, string) {
	system := "You classify unitless counts, percentages, ratios, and shares into indicator_type: count, percentage, ratio, or share.\n\n" + specialistResponseContract
	user := specialistUserPrompt(items, masker, s.TypeSet(), func(ind models.Indicator) string {
		return s.ProjectInput(ind).(string)
	})
	return system, user
}

type priceValueSpecialist struct{ baseSpecialist }

func (s priceValueSpecialist) ProjectInput(ind models.Indicator) any {
	return fmt.Sprintf("currency_code=%s units=%s", ind.CurrencyCode, ind.Units)
}

func (s priceValueSpecialist) BuildPrompt(items []models.Indicator, masker *masking.Service) (string, string) {
	system := "You classify market prices, yields, and spreads into indicator_type: price, yield, or spread. currency_code is the strongest signal available.\n\n" + specialistResponseContract
	user := specialistUserPrompt(items, masker, s.TypeSet(), func(ind models.Indicator) string {
		return s.ProjectInput(ind).(string)
	})
	return system, user
}

type changeMovementSpecialist struct{ baseSpecialist }

func (s changeMovementSpecialist) ProjectInput(ind models.Indicator) any {
	return fmt.Sprintf("units=%s periodicity=%s", ind.Units, ind.Periodicity)
}

func (s changeMovementSpecialist) BuildPrompt(items []models.Indicator, masker *masking.Service) (string, string) {
	system := "You classify period-over-period rates of change and traded volumes into indicator_type: rate or volume. A % units hint usually means rate.\n\n" + specialistResponseContract
	user := specialistUserPrompt(items, masker, s.TypeSet(), func(ind models.Indicator) string {
		return s.ProjectInput(ind).(string)
	})
	return system, user
}

type compositeDerivedSpecialist struct{ baseSpecialist }

func (s compositeDerivedSpecialist) ProjectInput(ind models.Indicator) any {
	return fmt.Sprintf("aggregation=%s scale=%s", ind.AggregationMethod, ind.Scale)
}

func (s compositeDerivedSpecialist) BuildPrompt(items []models.Indicator, masker *masking.Service) (string, string) {
	system := "You classify composite indices referenced to a base period, and derived ratios, into indicator_type: index or ratio.\n\n" + specialistResponseContract
	user := specialistUserPrompt(items, masker, s.TypeSet(), func(ind models.Indicator) string {
		return s.ProjectInput(ind).(string)
	})
	return system, user
}

type temporalSpecialist struct{ baseSpecialist }

func (s temporalSpecialist) ProjectInput(ind models.Indicator) any {
	return fmt.Sprintf("periodicity=%s", ind.Periodicity)
}

func (s temporalSpecialist) BuildPrompt(items []models.Indicator, masker *masking.Service) (string, string) {
	system := "You classify lagged/leading indicators and seasonal adjustment factors into indicator_type: lag or seasonal-factor.\n\n" + specialistResponseContract
	user := specialistUserPrompt(items, masker, s.TypeSet(), func(ind models.Indicator) string {
		return s.ProjectInput(ind).(string)
	})
	return system, user
}

type qualitativeSpecialist struct{ baseSpecialist }

func (s qualitativeSpecialist) ProjectInput(ind models.Indicator) any {
	return fmt.Sprintf("dataset=%s topic=%s", ind.Dataset, ind.Topic)
}

func (s qualitativeSpecialist) BuildPrompt(items []models.Indicator, masker *masking.Service) (string, string) {
	system := "You classify indicators with no numeric magnitude into indicator_type: category or rating.\n\n" + specialistResponseContract
	user := specialistUserPrompt(items, masker, s.TypeSet(), func(ind models.Indicator) string {
		return s.ProjectInput(ind).(string)
	})
	return system, user
}
