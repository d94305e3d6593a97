package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/classify/pkg/config"
	"github.com/codeready-toolchain/classify/pkg/masking"
	"github.com/codeready-toolchain/classify/pkg/models"
	"github.com/codeready-toolchain/classify/pkg/storage"
	"github.com/codeready-toolchain/classify/pkg/taxonomy"
)

// Repos bundles every stage-result repository the driver needs to run the
// full pipeline, one per table named in the external-interfaces section.
type Repos struct {
	Indicators      *storage.IndicatorRepo
	Router          *storage.RouterRepo
	Specialist      *storage.SpecialistRepo
	Validation      *storage.ValidationRepo
	Orientation     *storage.OrientationRepo
	Flagging        *storage.FlaggingRepo
	Review          *storage.ReviewRepo
	Classifications *storage.ClassificationRepo
	Executions      *storage.ExecutionRepo
}

// Driver orchestrates the six stages in strict sequence over one
// execution_id and emits the telemetry record at the end.
type Driver struct {
	Cfg       *config.Config
	Providers *ProviderSet
	Masking   *masking.Service
	Registry  SpecialistRegistry
	Repos     Repos
}

// NewDriver wires a Driver from an already-loaded config and connection
// pool. The specialist registry and provider set are each built once,
// same as the teacher's agent/chain registries, and shared read-only
// across every stage invocation this driver runs.
func NewDriver(cfg *config.Config, store *storage.Store) (*Driver, error) {
	providers, err := BuildProviderSet(cfg)
	if err != nil {
		return nil, fmt.Errorf("building provider set: %w", err)
	}
	if err := taxonomy.LoadOverrides(taxonomy.Builtin(), cfg.TaxonomyOverridesPath); err != nil {
		return nil, fmt.Errorf("loading taxonomy overrides: %w", err)
	}
	return &Driver{
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
	}, nil
}

// RunResult summarizes one end-to-end pipeline run for the CLI's
// stage-by-stage report (§7).
type RunResult struct {
	ExecutionID     string
	Processed       int
	Classified      int
	Excluded        int
	Flagged         int
	Reviewed        int
	Fixed           int
	Escalated       int
	Failed          []models.FailedIndicator
	Elapsed         time.Duration
	Execution       models.PipelineExecution
}

// Run executes Router → Specialist → Validation → Orientation → Flagging →
// Review in order over items, under executionID, committing each stage's
// output before starting the next. Cancelling ctx stops new work from
// starting; already-committed rows are left in place and Run returns
// whatever it completed along with ctx.Err().
func (d *Driver) Run(ctx context.Context, executionID string, items []models.Indicator) (RunResult, error) {
	started := time.Now()
	result := RunResult{ExecutionID: executionID, Processed: len(items)}

	if err := d.Repos.Executions.Start(ctx, executionID); err != nil && err != storage.ErrAlreadyExists {
		return result, fmt.Errorf("starting execution %s: %w", executionID, err)
	}

	slog.Info("pipeline started", "execution_id", executionID, "indicators", len(items))

	router, failedRouter, err := RunRouter(ctx, executionID, items, RouterDeps{
		Providers: d.Providers, Cfg: d.Cfg, Masking: d.Masking, Repo: d.Repos.Router, Executions: d.Repos.Executions,
	})
	result.Failed = append(result.Failed, failedRouter...)
	if err != nil {
		return result, fmt.Errorf("router stage: %w", err)
	}
	if err := d.recordStage(ctx, executionID, "router", len(router)); err != nil {
		return result, err
	}
	if ctx.Err() != nil {
		return d.finish(ctx, result, started)
	}

	// router may have only returned freshly-processed rows (resumed runs
	// skip already-committed ones); reload the full committed set so
	// downstream stages see every indicator's family.
	router, err = d.Repos.Router.ListByExecution(ctx, executionID)
	if err != nil {
		return result, fmt.Errorf("reloading router results: %w", err)
	}

	specialist, failedSpecialist, err := RunSpecialist(ctx, executionID, items, router, SpecialistDeps{
		Providers: d.Providers, Cfg: d.Cfg, Masking: d.Masking, Repo: d.Repos.Specialist, Registry: d.Registry, Executions: d.Repos.Executions,
	})
	result.Failed = append(result.Failed, failedSpecialist...)
	if err != nil {
		return result, fmt.Errorf("specialist stage: %w", err)
	}
	if err := d.recordStage(ctx, executionID, "specialist", len(specialist)); err != nil {
		return result, err
	}
	if ctx.Err() != nil {
		return d.finish(ctx, result, started)
	}

	specialist, err = d.Repos.Specialist.ListByExecution(ctx, executionID)
	if err != nil {
		return result, fmt.Errorf("reloading specialist results: %w", err)
	}

	validation, err := RunValidation(ctx, executionID, items, specialist, ValidationDeps{Cfg: d.Cfg, Repo: d.Repos.Validation})
	if err != nil {
		return result, fmt.Errorf("validation stage: %w", err)
	}
	if err := d.recordStage(ctx, executionID, "validation", len(validation)); err != nil {
		return result, err
	}
	if ctx.Err() != nil {
		return d.finish(ctx, result, started)
	}

	validation, err = d.Repos.Validation.ListByExecution(ctx, executionID)
	if err != nil {
		return result, fmt.Errorf("reloading validation results: %w", err)
	}
	validationByID := make(map[string]models.ValidationResult, len(validation))
	for _, v := range validation {
		validationByID[v.IndicatorID] = v
	}

	orientation, failedOrientation, err := RunOrientation(ctx, executionID, items, specialist, OrientationDeps{
		Providers: d.Providers, Cfg: d.Cfg, Masking: d.Masking, Repo: d.Repos.Orientation, Executions: d.Repos.Executions,
	})
	result.Failed = append(result.Failed, failedOrientation...)
	if err != nil {
		return result, fmt.Errorf("orientation stage: %w", err)
	}
	if err := d.recordStage(ctx, executionID, "orientation", len(orientation)); err != nil {
		return result, err
	}
	if ctx.Err() != nil {
		return d.finish(ctx, result, started)
	}

	orientation, err = d.Repos.Orientation.ListByExecution(ctx, executionID)
	if err != nil {
		return result, fmt.Errorf("reloading orientation results: %w", err)
	}

	candidates := BuildFlagCandidates(executionID, items, router, specialist, orientation, time.Now())
	for _, c := range candidates {
		if err := d.Repos.Classifications.Put(ctx, c.Classification); err != nil {
			return result, fmt.Errorf("persisting classification %s: %w", c.IndicatorID, err)
		}
	}
	result.Classified = len(candidates)

	flagged, err := RunFlagging(ctx, executionID, candidates, validationByID, FlaggingDeps{Cfg: d.Cfg, Repo: d.Repos.Flagging})
	if err != nil {
		return result, fmt.Errorf("flagging stage: %w", err)
	}
	result.Flagged = len(flagged)
	if err := d.applyBlockExclusions(ctx, executionID, flagged); err != nil {
		return result, fmt.Errorf("applying block exclusions: %w", err)
	}
	if ctx.Err() != nil {
		return d.finish(ctx, result, started)
	}

	reviewItems := BuildReviewItems(candidates, flagged, validationByID)
	decisions, failedReview, err := RunReview(ctx, executionID, reviewItems, ReviewDeps{
		Providers: d.Providers, Cfg: d.Cfg, Masking: d.Masking, Repo: d.Repos.Review, Classification: d.Repos.Classifications, Executions: d.Repos.Executions,
	})
	result.Failed = append(result.Failed, failedReview...)
	if err != nil {
		return result, fmt.Errorf("review stage: %w", err)
	}
	for _, dec := range decisions {
		result.Reviewed++
		switch dec.Action {
		case models.ReviewFix:
			result.Fixed++
		case models.ReviewEscalate:
			result.Escalated++
		}
	}
	if err := d.recordStage(ctx, executionID, "review", len(decisions)); err != nil {
		return result, err
	}
	if err := d.reconcileFixedExclusions(ctx, executionID, decisions, flagged); err != nil {
		return result, fmt.Errorf("reconciling fixed exclusions: %w", err)
	}

	result.Excluded = d.countExcluded(ctx, executionID)

	return d.finish(ctx, result, started)
}

// ReviewAll re-reviews every already-classified indicator under
// executionID that has at least one flag, for the `review-all` CLI path.
// flagOnly forces every decision to escalate, same as Config.ReviewAllFlag,
// without requiring the original run to have been started with it.
func (d *Driver) ReviewAll(ctx context.Context, executionID string, flagOnly bool) (RunResult, error) {
	started := time.Now()
	result := RunResult{ExecutionID: executionID}

	flaggedClassifications, err := d.Repos.Classifications.ListFlaggedForReview(ctx, executionID)
	if err != nil {
		return result, fmt.Errorf("loading flagged classifications: %w", err)
	}
	result.Processed = len(flaggedClassifications)

	indicators, err := d.Repos.Indicators.ListByIDs(ctx, indicatorIDsOf(flaggedClassifications))
	if err != nil {
		return result, fmt.Errorf("loading indicators: %w", err)
	}
	namesByID := make(map[string]string, len(indicators))
	for _, ind := range indicators {
		namesByID[ind.ID] = ind.Name
	}

	flags, err := d.Repos.Flagging.ListByExecution(ctx, executionID)
	if err != nil {
		return result, fmt.Errorf("loading flags: %w", err)
	}

	validation, err := d.Repos.Validation.ListByExecution(ctx, executionID)
	if err != nil {
		return result, fmt.Errorf("loading validation results: %w", err)
	}
	validationByID := make(map[string]models.ValidationResult, len(validation))
	for _, v := range validation {
		validationByID[v.IndicatorID] = v
	}

	candidates := make([]FlagCandidate, 0, len(flaggedClassifications))
	for _, c := range flaggedClassifications {
		candidates = append(candidates, FlagCandidate{Classification: c, IndicatorName: namesByID[c.IndicatorID]})
	}

	reviewItems := BuildReviewItems(candidates, flags, validationByID)

	cfg := *d.Cfg
	cfg.ReviewAllFlag = cfg.ReviewAllFlag || flagOnly
	decisions, failedReview, err := RunReview(ctx, executionID, reviewItems, ReviewDeps{
		Providers: d.Providers, Cfg: &cfg, Masking: d.Masking, Repo: d.Repos.Review, Classification: d.Repos.Classifications, Executions: d.Repos.Executions,
	})
	result.Failed = append(result.Failed, failedReview...)
	if err != nil {
		return result, fmt.Errorf("review-all stage: %w", err)
	}
	for _, dec := range decisions {
		result.Reviewed++
		switch dec.Action {
		case models.ReviewFix:
			result.Fixed++
		case models.ReviewEscalate:
			result.Escalated++
		}
	}

	return d.finish(ctx, result, started)
}

// blockFlagTypes names the flag rules whose severity is always "block"
// (§4.6, §7): a candidate carrying one of these is excluded from the final
// Classification set until Review fixes the offending field.
var blockFlagTypes = map[string]bool{
	"missing-field":         true,
	"type-family-mismatch":  true,
	"temporal-rule-violation": true,
}

// applyBlockExclusions marks every indicator with a block-severity flag as
// excluded, per §7's "persistent data errors" rule.
func (d *Driver) applyBlockExclusions(ctx context.Context, executionID string, flagged []models.FlaggedIndicator) error {
	for _, f := range flagged {
		if f.Severity != models.SeverityBlock {
			continue
		}
		if err := d.Repos.Classifications.SetExcluded(ctx, executionID, f.IndicatorID, true, f.FlagReason); err != nil {
			return err
		}
	}
	return nil
}

// reconcileFixedExclusions clears the excluded flag for any indicator
// whose only block-severity flags were resolved by a Review "fix" action
// — "excluded from the final Classification set unless Review fixes it".
func (d *Driver) reconcileFixedExclusions(ctx context.Context, executionID string, decisions []models.ReviewDecision, flagged []models.FlaggedIndicator) error {
	blockedByIndicator := make(map[string]bool)
	for _, f := range flagged {
		if f.Severity == models.SeverityBlock && blockFlagTypes[f.FlagType] {
			blockedByIndicator[f.IndicatorID] = true
		}
	}
	fixedByIndicator := make(map[string]bool)
	for _, dec := range decisions {
		if dec.Action == models.ReviewFix {
			fixedByIndicator[dec.IndicatorID] = true
		}
	}
	for id := range blockedByIndicator {
		if fixedByIndicator[id] {
			if err := d.Repos.Classifications.SetExcluded(ctx, executionID, id, false, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

func indicatorIDsOf(cs []models.Classification) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.IndicatorID
	}
	return ids
}

func (d *Driver) recordStage(ctx context.Context, executionID, stage string, count int) error {
	if err := d.Repos.Executions.RecordStageCount(ctx, executionID, stage, count); err != nil {
		return fmt.Errorf("recording %s stage count: %w", stage, err)
	}
	return nil
}

func (d *Driver) countExcluded(ctx context.Context, executionID string) int {
	classifications, err := d.Repos.Classifications.ListByExecution(ctx, executionID)
	if err != nil {
		return 0
	}
	n := 0
	for _, c := range classifications {
		if c.Excluded {
			n++
		}
	}
	return n
}

func (d *Driver) finish(ctx context.Context, result RunResult, started time.Time) (RunResult, error) {
	result.Elapsed = time.Since(started)

	if err := d.Repos.Executions.Finish(context.WithoutCancel(ctx), result.ExecutionID); err != nil {
		slog.Warn("failed to stamp execution finished_at", "execution_id", result.ExecutionID, "error", err)
	}
	exec, err := d.Repos.Executions.Get(context.WithoutCancel(ctx), result.ExecutionID)
	if err == nil {
		result.Execution = exec
	}

	slog.Info("pipeline finished", "execution_id", result.ExecutionID,
		"processed", result.Processed, "classified", result.Classified, "flagged", result.Flagged,
		"reviewed", result.Reviewed, "fixed", result.Fixed, "escalated", result.Escalated,
		"failed", len(result.Failed), "elapsed", result.Elapsed)

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}
