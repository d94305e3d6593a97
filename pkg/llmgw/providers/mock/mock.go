// Package mock implements llmgw.Provider without calling any network
// service. It is used for dryRun runs and for tests: instead of returning
// fixed text, it parses the indicator IDs out of the enumerated batch
// prompt (the "[id=...]" tokens the router/specialist/orientation system
// prompts require — see the driver's batch-rendering helper) and
// synthesizes a deterministic, schema-valid response for each one, so a
// dry run still exercises pairing, validation, and storage end to end.
// Every synthesized indicator_type is drawn from the real taxonomy for the
// chosen family, so a dry run's classifications pass the same
// type-family-mismatch check a live run's would.
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"regexp"
	"strings"

	"github.com/codeready-toolchain/classify/pkg/llmgw"
	"github.com/codeready-toolchain/classify/pkg/models"
	"github.com/codeready-toolchain/classify/pkg/taxonomy"
)

// Provider is a deterministic llmgw.Provider. The zero value is ready to use.
type Provider struct{}

// New returns a ready mock Provider.
func New() *Provider {
	return &Provider{}
}

var idToken = regexp.MustCompile(`\[id=([^\]]+)\]`)

// Chat synthesizes a JSON array with one object per indicator_id found in
// the request's user messages, deterministic on the ID alone so repeated
// calls in tests are reproducible.
func (p *Provider) Chat(_ context.Context, req llmgw.ChatRequest) (llmgw.ChatResponse, error) {
	var ids []string
	for _, m := range req.Messages {
		if m.Role != "user" {
			continue
		}
		for _, match := range idToken.FindAllStringSubmatch(m.Content, -1) {
			ids = append(ids, match[1])
		}
	}

	var sb strings.Builder
	sb.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(synthesize(id))
	}
	sb.WriteByte(']')

	text := sb.String()
	return llmgw.ChatResponse{
		Text:      text,
		TokensIn:  estimateTokens(req),
		TokensOut: len(text) / 4,
	}, nil
}

func estimateTokens(req llmgw.ChatRequest) int {
	var total int
	for _, m := range req.Messages {
		total += len(m.Content)
	}
	return total / 4
}

// synthesize deterministically picks a family/type/temporal-aggregation/
// orientation for id by hashing it, so the same ID always mocks to the
// same classification.
func synthesize(id string) string {
	h := sha256.Sum256([]byte(id))
	n := binary.BigEndian.Uint64(h[:8])

	family := models.AllFamilies[n%uint64(len(models.AllFamilies))]
	temporal := models.AllTemporalAggregations[(n/7)%uint64(len(models.AllTemporalAggregations))]
	orientations := []models.Orientation{models.OrientationHigherIsPositive, models.OrientationLowerIsPositive, models.OrientationNeutral}
	orientation := orientations[(n/13)%uint64(len(orientations))]
	isCurrency := n%2 == 0

	types := taxonomy.Builtin().TypesFor(family)
	indicatorType := taxonomy.Builtin().PlaceholderType(family)
	if len(types) > 0 {
		indicatorType = types[(n/17)%uint64(len(types))]
	}

	return fmt.Sprintf(
		`{"indicator_id":%q,"family":%q,"confidence_family":0.95,"indicator_type":%q,"indicator_category":"mock-category","temporal_aggregation":%q,"is_currency_denominated":%t,"confidence_cls":0.95,"heat_map_orientation":%q,"confidence_orient":0.95,"reasoning":"mock deterministic response"}`,
		id, string(family), indicatorType, string(temporal), isCurrency, string(orientation),
	)
}
