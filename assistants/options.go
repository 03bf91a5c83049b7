package assistants

import (
	"time"

	"github.com/effective-security/toolagent/pkg/llms"
)

const (
	// DefaultMaxIterations is the default number of tool-enabled completions per query.
	DefaultMaxIterations = 10
	// DefaultMaxTokens is the default completion limit.
	DefaultMaxTokens = 1000
)

// Option is a function that can be used to modify the behavior of the Assistant Config.
type Option func(*Config)

type Config struct {
	// Model overrides the model name of the session's LLM in completion calls.
	Model    string
	modelSet bool

	// MaxTokens is the maximum number of tokens to generate in an LLM call.
	MaxTokens int

	// Temperature is the temperature for sampling to use in an LLM call, between 0 and 1.
	Temperature    float64
	temperatureSet bool

	// Seed is a seed for deterministic sampling in an LLM call.
	Seed    int
	seedSet bool

	// MaxIterations bounds the number of completions that carry tools.
	MaxIterations int

	// DuplicateNotice appends a tool message for a skipped repeated call,
	// instead of dropping it silently.
	DuplicateNotice bool

	// CallTimeout is the deadline of each completion and tool call, 0 means none.
	CallTimeout time.Duration

	// CallbackHandler receives the loop events.
	CallbackHandler Callback
}

// NewConfig returns the config with defaults applied.
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		MaxTokens:       DefaultMaxTokens,
		MaxIterations:   DefaultMaxIterations,
		CallbackHandler: NoopCallback{},
	}
	cfg.Apply(opts...)
	return cfg
}

// Apply applies the options.
func (cfg *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(cfg)
	}
}

// GetCallOptions returns the LLM call options for the config,
// followed by the extra options.
func (cfg *Config) GetCallOptions(extra ...llms.CallOption) []llms.CallOption {
	var opts []llms.CallOption
	if cfg.modelSet {
		opts = append(opts, llms.WithModel(cfg.Model))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(cfg.MaxTokens))
	}
	if cfg.temperatureSet {
		opts = append(opts, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.seedSet {
		opts = append(opts, llms.WithSeed(cfg.Seed))
	}
	return append(opts, extra...)
}

// WithModel sets the model to use in LLM calls.
func WithModel(model string) Option {
	return func(o *Config) {
		o.Model = model
		o.modelSet = model != ""
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Config) {
		o.MaxTokens = maxTokens
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = temperature
		o.temperatureSet = true
	}
}

// WithSeed sets the seed for deterministic sampling.
func WithSeed(seed int) Option {
	return func(o *Config) {
		o.Seed = seed
		o.seedSet = true
	}
}

// WithMaxIterations sets the number of tool-enabled completions per query.
// Values below 1 keep the default.
func WithMaxIterations(n int) Option {
	return func(o *Config) {
		if n > 0 {
			o.MaxIterations = n
		}
	}
}

// WithDuplicateNotice controls whether a skipped repeated call is reported
// to the model.
func WithDuplicateNotice(enabled bool) Option {
	return func(o *Config) {
		o.DuplicateNotice = enabled
	}
}

// WithCallTimeout sets the deadline of each completion and tool call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Config) {
		o.CallTimeout = d
	}
}

// WithCallback sets the callback.
func WithCallback(callback Callback) Option {
	return func(o *Config) {
		if callback == nil {
			callback = NoopCallback{}
		}
		o.CallbackHandler = callback
	}
}
