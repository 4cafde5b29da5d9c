package audit

import (
	"bytes"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"socialsync/internal/core/record"
	perr "socialsync/internal/platform/errors"
)

// Critical names a field whose absence points at a misconfigured request
type Critical struct {
	Field string `yaml:"field" json:"field"`

	// When restricts the check to records whose field equals the value, e.g. type: Video.
	// Unset by default; set it from YAML
	When map[string]string `yaml:"when,omitempty" json:"when,omitempty"`
}

// Config holds the auditor thresholds
type Config struct {
	// DefaultLimits is the result count the scraper silently caps each kind at
	DefaultLimits map[record.Kind]int `yaml:"default_limits" json:"default_limits"`

	// CursorKeys are request parameters that signal explicit pagination
	CursorKeys []string `yaml:"cursor_keys" json:"cursor_keys"`

	// LimitKey is the request parameter holding an explicit result limit
	LimitKey string `yaml:"limit_key" json:"limit_key"`

	Critical map[record.Kind][]Critical `yaml:"critical" json:"critical"`

	// SmallBatchMax is the largest batch where a single missing critical field fires
	SmallBatchMax int `yaml:"small_batch_max" json:"small_batch_max"`

	// LargeBatchRatio is the missing fraction above which larger batches fire
	LargeBatchRatio float64 `yaml:"large_batch_ratio" json:"large_batch_ratio"`
}

// DefaultConfig returns the built-in thresholds
func DefaultConfig() Config {
	return Config{
		DefaultLimits: map[record.Kind]int{record.KindPost: 18},
		CursorKeys:    []string{"cursor", "endCursor", "nextCursor", "after", "maxId", "paginationToken", "offset", "page"},
		LimitKey:      "resultsLimit",
		Critical: map[record.Kind][]Critical{
			record.KindPost:    {{Field: "videoViewCount"}},
			record.KindProfile: {{Field: "followersCount"}},
		},
		SmallBatchMax:   20,
		LargeBatchRatio: 0.10,
	}
}

// LoadConfig reads YAML thresholds and merges them over the defaults.
// Keys left out of the file keep their default value
func LoadConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(bytes.TrimSpace(b)) == 0 {
		return cfg, nil
	}
	var file Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return cfg, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "audit config")
	}
	if err := mergo.Merge(&cfg, file, mergo.WithOverride); err != nil {
		return cfg, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "audit config merge")
	}
	if cfg.LargeBatchRatio < 0 || cfg.LargeBatchRatio > 1 {
		return cfg, perr.InvalidArgf("audit config: large_batch_ratio %v outside [0,1]", cfg.LargeBatchRatio)
	}
	if cfg.SmallBatchMax < 0 {
		return cfg, perr.InvalidArgf("audit config: small_batch_max %d is negative", cfg.SmallBatchMax)
	}
	return cfg, nil
}
