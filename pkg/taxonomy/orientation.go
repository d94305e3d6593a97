package taxonomy

import (
	"regexp"

	"github.com/codeready-toolchain/classify/pkg/models"
)

// OrientationOverride is one name-pattern-to-orientation rule applied after
// the Orientation stage's LLM call, taking precedence over the LLM result.
type OrientationOverride struct {
	Name        string
	NamePattern *regexp.Regexp
	TypePattern *regexp.Regexp // optional, matched against indicator_type when set
	Orientation models.Orientation
}

// OrientationOverrides is the fixed, ordered override table from spec §4.5.
// Evaluated top to bottom; the first match wins.
var OrientationOverrides = []OrientationOverride{
	{
		Name:        "fx-yield-interest-rate",
		NamePattern: regexp.MustCompile(`(?i)fx rate|exchange rate|yield|interest rate|sofr|libor`),
		Orientation: models.OrientationNeutral,
	},
	{
		Name:        "unemployment",
		NamePattern: regexp.MustCompile(`(?i)unemployment`),
		Orientation: models.OrientationLowerIsPositive,
	},
	{
		Name:        "inflation-rate",
		NamePattern: regexp.MustCompile(`(?i)inflation`),
		Orientation: models.OrientationLowerIsPositive,
	},
	{
		Name:        "cpi-ppi-rate",
		NamePattern: regexp.MustCompile(`(?i)cpi|ppi`),
		TypePattern: regexp.MustCompile(`^rate$`),
		Orientation: models.OrientationLowerIsPositive,
	},
	{
		Name:        "cpi-ppi-level-index",
		NamePattern: regexp.MustCompile(`(?i)cpi|ppi`),
		TypePattern: regexp.MustCompile(`^index$`),
		Orientation: models.OrientationNeutral,
	},
	{
		Name:        "debt",
		NamePattern: regexp.MustCompile(`(?i)debt|dt\.dod|dt\.amt`),
		Orientation: models.OrientationLowerIsPositive,
	},
}

// MatchOrientationOverride returns the orientation forced by name/type, and
// whether any override matched. The cpi/ppi rules are order-sensitive: the
// rate variant is checked before the level-index variant since both match
// the same name pattern.
func MatchOrientationOverride(name, indicatorType string) (models.Orientation, bool) {
	for _, o := range OrientationOverrides {
		if !o.NamePattern.MatchString(name) {
			continue
		}
		if o.TypePattern != nil && !o.TypePattern.MatchString(indicatorType) {
			continue
		}
		return o.Orientation, true
	}
	return "", false
}
