package openai

import (
	"net/http"
	"os"

	"github.com/effective-security/toolagent/pkg/llms"
	"github.com/effective-security/x/values"
)

const (
	tokenEnvVarName        = "OPENAI_API_KEY"      //nolint:gosec
	modelEnvVarName        = "OPENAI_MODEL"        //nolint:gosec
	baseURLEnvVarName      = "OPENAI_BASE_URL"     //nolint:gosec
	organizationEnvVarName = "OPENAI_ORGANIZATION" //nolint:gosec
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemma-3-4b-it"
	// DefaultMaxRetries is the number of retries of failed requests.
	DefaultMaxRetries = 2
)

type options struct {
	token        string
	model        string
	baseURL      string
	organization string
	provider     llms.ProviderType
	httpClient   *http.Client
	maxRetries   *int
}

// Option is a functional option for the OpenAI client.
type Option func(*options)

// WithToken passes the OpenAI API token to the client. If not set, the token
// is read from the OPENAI_API_KEY environment variable.
func WithToken(token string) Option {
	return func(opts *options) {
		opts.token = token
	}
}

// WithModel passes the OpenAI model to the client. If not set, the model
// is read from the OPENAI_MODEL environment variable.
func WithModel(model string) Option {
	return func(opts *options) {
		opts.model = model
	}
}

// WithBaseURL passes the base url of an OpenAI-compatible endpoint to the client.
// If not set, the base url is read from the OPENAI_BASE_URL environment variable.
func WithBaseURL(baseURL string) Option {
	return func(opts *options) {
		opts.baseURL = baseURL
	}
}

// WithOrganization passes the OpenAI organization to the client. If not set, the
// organization is read from the OPENAI_ORGANIZATION.
func WithOrganization(organization string) Option {
	return func(opts *options) {
		opts.organization = organization
	}
}

// WithProvider passes the provider type reported by the model.
// If not set, the default value is ProviderOpenAI.
func WithProvider(provider llms.ProviderType) Option {
	return func(opts *options) {
		opts.provider = provider
	}
}

// WithHTTPClient allows setting a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *options) {
		opts.httpClient = client
	}
}

// WithMaxRetries sets the number of retries of failed requests.
func WithMaxRetries(n int) Option {
	return func(opts *options) {
		opts.maxRetries = &n
	}
}

func newOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	o.token = values.StringsCoalesce(o.token, os.Getenv(tokenEnvVarName))
	o.model = values.StringsCoalesce(o.model, os.Getenv(modelEnvVarName), DefaultModel)
	o.baseURL = values.StringsCoalesce(o.baseURL, os.Getenv(baseURLEnvVarName))
	o.organization = values.StringsCoalesce(o.organization, os.Getenv(organizationEnvVarName))
	if o.provider == "" {
		o.provider = llms.ProviderOpenAI
	}
	if o.maxRetries == nil {
		n := DefaultMaxRetries
		o.maxRetries = &n
	}
	return o
}
