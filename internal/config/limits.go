package config

// FlowConfig controls traversal order and the per-component refinement
// budgets. Budgets of zero are meaningful: zero reader attempts means the
// first draft is written from focal code alone, zero verifier rejections
// means the first draft is final.
type FlowConfig struct {
	OrderMode               string          `yaml:"order_mode" validate:"required,ordermode"`
	OverwriteDocstrings     bool            `yaml:"overwrite_docstrings"`
	MaxReaderSearchAttempts int             `yaml:"max_reader_search_attempts" validate:"min=0,max=50"`
	MaxVerifierRejections   int             `yaml:"max_verifier_rejections" validate:"min=0,max=50"`
	ComponentTokenLimit     int             `yaml:"component_token_limit" validate:"required,min=256,max=200000"`
	TestMode                string          `yaml:"test_mode" validate:"required,testmode"`
	MaxRetries              int             `yaml:"max_retries" validate:"min=0,max=10"`
	Seed                    int64           `yaml:"seed"`
	RateLimit               RateLimitConfig `yaml:"rate_limit" validate:"required"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"required,min=1,max=1000"`
	BurstSize         int `yaml:"burst_size" validate:"required,min=1,max=100"`
}

func DefaultFlow() FlowConfig {
	return FlowConfig{
		OrderMode:               "dependency_first",
		OverwriteDocstrings:     false,
		MaxReaderSearchAttempts: 4,
		MaxVerifierRejections:   3,
		ComponentTokenLimit:     10000,
		TestMode:                "none",
		MaxRetries:              3,
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         15,
		},
	}
}
