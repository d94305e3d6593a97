// classify runs the batch economic-indicator classification pipeline —
// parses CLI flags, loads configuration and the database connection, then
// drives one of the two pipeline actions to completion.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/codeready-toolchain/classify/pkg/config"
	"github.com/codeready-toolchain/classify/pkg/database"
	"github.com/codeready-toolchain/classify/pkg/models"
	"github.com/codeready-toolchain/classify/pkg/pipeline"
	"github.com/codeready-toolchain/classify/pkg/storage"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/gin-gonic/gin"
)

// Exit codes (spec.md §6): 0 success, 1 validation error (bad config,
// missing API key), 2 transient failure exhausted retries, 3 storage error.
const (
	exitOK         = 0
	exitValidation = 1
	exitTransient  = 2
	exitStorage    = 3
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitValidation)
	}

	switch os.Args[1] {
	case "run-pipeline":
		os.Exit(runPipeline(os.Args[2:]))
	case "review-all":
		os.Exit(reviewAll(os.Args[2:]))
	case "-h", "--help", "help":
		usage()
		os.Exit(exitOK)
	default:
		log.Printf("unknown command %q", os.Args[1])
		usage()
		os.Exit(exitValidation)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: classify <run-pipeline|review-all> [flags]")
	fmt.Fprintln(os.Stderr, "  run-pipeline [--execution-id ID] [--limit N] [--config-dir DIR] [--status-addr ADDR]")
	fmt.Fprintln(os.Stderr, "  review-all [--execution-id ID] [--flag-only] [--config-dir DIR]")
}

func runPipeline(args []string) int {
	fs := flag.NewFlagSet("run-pipeline", flag.ExitOnError)
	executionID := fs.String("execution-id", "", "execution identifier (generated if omitted)")
	limit := fs.Int("limit", 0, "maximum number of indicators to classify (0 = all)")
	configDir := fs.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	statusAddr := fs.String("status-addr", getEnv("STATUS_ADDR", ""), "optional host:port for a live /health and /status endpoint")
	fs.Parse(args)

	if *executionID == "" {
		*executionID = uuid.New().String()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drv, store, code := bootstrap(ctx, *configDir)
	if store != nil {
		defer store.DB().Close()
	}
	if code != exitOK {
		return code
	}

	var srv *http.Server
	if *statusAddr != "" {
		srv = startStatusServer(*statusAddr, drv, store, executionID)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	items, err := loadIndicators(ctx, drv.Repos.Indicators, *limit)
	if err != nil {
		log.Printf("loading indicators: %v", err)
		return exitStorage
	}
	log.Printf("Starting run-pipeline: execution_id=%s indicators=%d", *executionID, len(items))

	result, err := drv.Run(ctx, *executionID, items)
	printSummary(result)
	if err != nil {
		if ctx.Err() != nil {
			log.Printf("run cancelled, partial progress committed: %v", err)
			return exitOK
		}
		log.Printf("run-pipeline failed: %v", err)
		return exitStorage
	}
	if len(result.Failed) > 0 {
		return exitTransient
	}
	return exitOK
}

func reviewAll(args []string) int {
	fs := flag.NewFlagSet("review-all", flag.ExitOnError)
	executionID := fs.String("execution-id", "", "execution identifier to re-review")
	flagOnly := fs.Bool("flag-only", false, "force every decision to escalate (audit mode)")
	configDir := fs.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	fs.Parse(args)

	if *executionID == "" {
		log.Println("review-all requires --execution-id")
		return exitValidation
	}

	ctx := context.Background()

	drv, store, code := bootstrap(ctx, *configDir)
	if store != nil {
		defer store.DB().Close()
	}
	if code != exitOK {
		return code
	}

	log.Printf("Starting review-all: execution_id=%s flag_only=%v", *executionID, *flagOnly)
	result, err := drv.ReviewAll(ctx, *executionID, *flagOnly)
	printSummary(result)
	if err != nil {
		log.Printf("review-all failed: %v", err)
		return exitStorage
	}
	if len(result.Failed) > 0 {
		return exitTransient
	}
	return exitOK
}

// bootstrap loads .env, configuration, and the database connection shared by
// both subcommands, returning a ready Driver or the exit code to report.
func bootstrap(ctx context.Context, configDir string) (*pipeline.Driver, *storage.Store, int) {
	envPath := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("no %s file found, continuing with existing environment", envPath)
	}

	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		log.Printf("configuration error: %v", err)
		return nil, nil, exitValidation
	}
	stats := cfg.Stats()
	log.Printf("configuration loaded: llm_providers=%d dry_run=%v", stats.LLMProviders, cfg.DryRun)

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Printf("database configuration error: %v", err)
		return nil, nil, exitValidation
	}
	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		log.Printf("database connection error: %v", err)
		return nil, nil, exitStorage
	}
	log.Println("connected to PostgreSQL and applied pending migrations")

	store := storage.New(dbClient.DB())
	drv, err := pipeline.NewDriver(cfg, store)
	if err != nil {
		log.Printf("driver setup error: %v", err)
		return nil, store, exitValidation
	}
	return drv, store, exitOK
}

// loadIndicators pages through source_indicators, honoring limit (0 means
// unlimited), and fetches each one's full sample series.
func loadIndicators(ctx context.Context, repo *storage.IndicatorRepo, limit int) ([]models.Indicator, error) {
	const pageSize = 200
	var out []models.Indicator
	afterID := ""
	for {
		want := pageSize
		if limit > 0 {
			remaining := limit - len(out)
			if remaining <= 0 {
				break
			}
			if remaining < want {
				want = remaining
			}
		}
		page, err := repo.List(ctx, afterID, want)
		if err != nil {
			return nil, fmt.Errorf("listing indicators: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, ind := range page {
			full, err := repo.Get(ctx, ind.ID)
			if err != nil {
				return nil, fmt.Errorf("loading indicator %s: %w", ind.ID, err)
			}
			out = append(out, full)
		}
		afterID = page[len(page)-1].ID
		if len(page) < want {
			break
		}
	}
	return out, nil
}

func printSummary(r pipeline.RunResult) {
	log.Printf(
		"execution_id=%s processed=%d classified=%d excluded=%d flagged=%d reviewed=%d fixed=%d escalated=%d failed=%d elapsed=%s api_calls=%d tokens_in=%d tokens_out=%d estimated_cost=$%.4f",
		r.ExecutionID, r.Processed, r.Classified, r.Excluded, r.Flagged, r.Reviewed, r.Fixed, r.Escalated,
		len(r.Failed), r.Elapsed.Round(time.Millisecond),
		r.Execution.APICalls, r.Execution.TokensIn, r.Execution.TokensOut, r.Execution.CostEstimate,
	)
	for _, f := range r.Failed {
		log.Printf("  failed: indicator_id=%s stage=%s error=%s retries=%d", f.IndicatorID, f.Stage, f.Error, f.Retries)
	}
}

// startStatusServer exposes live telemetry for the in-flight run, per the
// optional health/status surface; torn down by the caller when the run
// completes.
func startStatusServer(addr string, drv *pipeline.Driver, store *storage.Store, executionID *string) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.GET("/health", func(c *gin.Context) {
		status, err := database.Health(c.Request.Context(), store.DB())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		c.JSON(http.StatusOK, status)
	})
	router.GET("/status", func(c *gin.Context) {
		exec, err := drv.Repos.Executions.Get(c.Request.Context(), *executionID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, exec)
	})

	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("status server error: %v", err)
		}
	}()
	log.Printf("status server listening on %s", addr)
	return srv
}
