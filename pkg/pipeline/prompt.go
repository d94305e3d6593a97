package pipeline

import (
	"fmt"
	"strings"

	"github.com/codeready-toolchain/classify/pkg/models"
)

// enumerateIndicators renders items as stable, ID-carrying ordinals a
// stage's user prompt can enumerate: "#<ordinal> [id=<indicator_id>] <name>
// (<units>, <periodicity>)". The ordinal is positional and only for human
// readability; pairing responses back to items always goes through
// indicator_id (§4.7), never the ordinal.
func enumerateIndicators(items []models.Indicator) string {
	var sb strings.Builder
	for i, ind := range items {
		sb.WriteString(fmt.Sprintf("#%d [id=%s] %s", i+1, ind.ID, ind.Name))
		if ind.Units != "" || ind.Periodicity != "" {
			sb.WriteString(fmt.Sprintf(" (%s, %s)", ind.Units, ind.Periodicity))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
