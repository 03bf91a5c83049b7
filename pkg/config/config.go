// Package config provides the configuration of the tool host and the chat client.
package config

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolagent/pkg/llmfactory"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
	"github.com/go-playground/validator/v10"
)

const (
	// DefaultServerName is the implementation name of the tool host.
	DefaultServerName = "toolagent"
	// DefaultVersion is reported in the MCP handshake.
	DefaultVersion = "1.0.0"
	// DefaultListenAddr is the address the tool host listens on.
	DefaultListenAddr = ":8000"
	// DefaultServerURL is the SSE endpoint the chat client connects to.
	DefaultServerURL = "http://localhost:8000/sse"
	// DefaultBaseURL is the chat completions endpoint of a local model server.
	DefaultBaseURL = "http://127.0.0.1:1234/v1"
	// DefaultModel is served by the local model server.
	DefaultModel = "gemma-3-4b-it"
	// DefaultToken is sent to endpoints that do not check it.
	DefaultToken = "not-needed"
	// DefaultMaxIterations caps the tool-enabled completions of one query.
	DefaultMaxIterations = 10
	// DefaultMaxTokens caps the tokens of one completion.
	DefaultMaxTokens = 1000
	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "INFO"
)

// Config of the application
type Config struct {
	Server Server            `json:"server" yaml:"server"`
	Client Client            `json:"client" yaml:"client"`
	LLM    llmfactory.Config `json:"llm" yaml:"llm"`
	Log    Log               `json:"log" yaml:"log"`
}

// Server is the tool host configuration
type Server struct {
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Version    string `json:"version,omitempty" yaml:"version,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty" validate:"required"`
	// BaseURL is advertised to SSE clients as the prefix of the message endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
}

// Client is the chat client configuration
type Client struct {
	ServerURL     string `json:"server_url,omitempty" yaml:"server_url,omitempty" validate:"url"`
	Model         string `json:"model,omitempty" yaml:"model,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty" validate:"gte=1"`
	MaxTokens     int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"gte=1"`
	// Temperature is the sampling temperature, nil for the provider default.
	Temperature     *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	DuplicateNotice bool     `json:"duplicate_notice,omitempty" yaml:"duplicate_notice,omitempty"`
	// CallTimeout bounds each completion, for example `30s`.
	CallTimeout string `json:"call_timeout,omitempty" yaml:"call_timeout,omitempty"`
}

// Log configuration
type Log struct {
	// Level is one of TRACE, DEBUG, INFO, NOTICE, WARNING, ERROR, CRITICAL
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
}

// Default returns the configuration used when no file is given:
// a tool host on :8000 and a local OpenAI-compatible model server.
func Default() *Config {
	cfg := new(Config)
	cfg.SetDefaults()
	return cfg
}

// Load returns the configuration from file, with defaults applied.
// Environment variables in the file are expanded.
func Load(file string) (*Config, error) {
	cfg := new(Config)
	if file != "" {
		if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
			return nil, errors.WithMessagef(err, "failed to load config %s", file)
		}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults fills the unset values
func (c *Config) SetDefaults() {
	c.Server.Name = values.StringsCoalesce(c.Server.Name, DefaultServerName)
	c.Server.Version = values.StringsCoalesce(c.Server.Version, DefaultVersion)
	c.Server.ListenAddr = values.StringsCoalesce(c.Server.ListenAddr, DefaultListenAddr)

	c.Client.ServerURL = values.StringsCoalesce(c.Client.ServerURL, DefaultServerURL)
	c.Client.MaxIterations = values.NumbersCoalesce(c.Client.MaxIterations, DefaultMaxIterations)
	c.Client.MaxTokens = values.NumbersCoalesce(c.Client.MaxTokens, DefaultMaxTokens)

	c.Log.Level = values.StringsCoalesce(c.Log.Level, DefaultLogLevel)

	if len(c.LLM.Providers) == 0 {
		c.LLM.Providers = []*llmfactory.ProviderConfig{
			{
				Name:            "local",
				Token:           DefaultToken,
				DefaultModel:    DefaultModel,
				AvailableModels: []string{DefaultModel},
				OpenAI: llmfactory.OpenAIConfig{
					APIType: "OPENAI",
					BaseURL: DefaultBaseURL,
				},
			},
		}
	}
	for _, p := range c.LLM.Providers {
		p.Token = values.StringsCoalesce(p.Token, DefaultToken)
	}
}

// Validate returns an error if the configuration is invalid
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.WithMessage(err, "invalid configuration")
	}
	if _, err := c.Client.CallTimeoutDuration(); err != nil {
		return err
	}
	if c.LLM.DefaultProvider != "" && c.LLM.Provider(c.LLM.DefaultProvider) == nil {
		return errors.Newf("invalid configuration: default provider %q is not configured", c.LLM.DefaultProvider)
	}
	return nil
}

// CallTimeoutDuration returns the parsed CallTimeout, zero if not set.
func (c *Client) CallTimeoutDuration() (time.Duration, error) {
	if c.CallTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.CallTimeout)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid configuration: call_timeout %q", c.CallTimeout)
	}
	if d < 0 {
		return 0, errors.Newf("invalid configuration: call_timeout %q is negative", c.CallTimeout)
	}
	return d, nil
}
