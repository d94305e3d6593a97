package config

import "time"

// BatchConfig contains per-stage batch sizes — how many indicators are
// enumerated in a single LLM request.
type BatchConfig struct {
	RouterBatchSize      int `yaml:"router_batch_size"`
	SpecialistBatchSize  int `yaml:"specialist_batch_size"`
	OrientationBatchSize int `yaml:"orientation_batch_size"`
	ReviewBatchSize      int `yaml:"review_batch_size"`
}

// DefaultBatchConfig returns the built-in batch-size defaults.
func DefaultBatchConfig() *BatchConfig {
	return &BatchConfig{
		RouterBatchSize:      25,
		SpecialistBatchSize:  25,
		OrientationBatchSize: 25,
		ReviewBatchSize:      10,
	}
}

// ConcurrencyConfig contains per-stage worker pool sizes.
type ConcurrencyConfig struct {
	Router      int `yaml:"router"`
	Specialist  int `yaml:"specialist"`
	Orientation int `yaml:"orientation"`
	Review      int `yaml:"review"`
}

// DefaultConcurrencyConfig returns the built-in concurrency defaults.
func DefaultConcurrencyConfig() *ConcurrencyConfig {
	return &ConcurrencyConfig{
		Router:      2,
		Specialist:  2,
		Orientation: 1,
		Review:      1,
	}
}

// RetryConfig contains the shared retry/backoff budget used by every
// LLM-calling stage and the gateway's per-item fanout.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// DefaultRetryConfig returns the built-in retry defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
	}
}

// ThresholdsConfig contains the confidence and statistical thresholds that
// gate acceptance, retry, and flagging decisions across stages.
type ThresholdsConfig struct {
	ConfidenceFamilyMin float64       `yaml:"confidence_family_min"`
	ConfidenceClsMin    float64       `yaml:"confidence_cls_min"`
	ConfidenceOrientMin float64       `yaml:"confidence_orient_min"`
	ReviewConfidenceMin float64       `yaml:"review_confidence_min"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`

	// FamilyConfidenceClsMin overrides ConfidenceClsMin for specific
	// families (keyed by models.Family string value). A family absent from
	// this map falls back to ConfidenceClsMin. Resolves the "which wins"
	// ambiguity between a global threshold and a per-family override: the
	// per-family value always wins when present.
	FamilyConfidenceClsMin map[string]float64 `yaml:"family_confidence_cls_min,omitempty"`
}

// DefaultThresholdsConfig returns the built-in threshold defaults.
func DefaultThresholdsConfig() *ThresholdsConfig {
	return &ThresholdsConfig{
		ConfidenceFamilyMin: 0.6,
		ConfidenceClsMin:    0.6,
		ConfidenceOrientMin: 0.6,
		ReviewConfidenceMin: 0.6,
		RequestTimeout:      30 * time.Second,
	}
}

// ForFamily returns the confidence_cls acceptance threshold for family,
// preferring a per-family override over the global ConfidenceClsMin.
func (t *ThresholdsConfig) ForFamily(family string) float64 {
	if t.FamilyConfidenceClsMin != nil {
		if v, ok := t.FamilyConfidenceClsMin[family]; ok {
			return v
		}
	}
	return t.ConfidenceClsMin
}

// DatabaseConfig holds PostgreSQL connection settings, the same shape the
// teacher's pkg/database.Config uses.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DefaultDatabaseConfig returns the built-in database connection defaults.
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "classify",
		Database:        "classify",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}
