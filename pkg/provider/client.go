package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/pario-ai/readq/pkg/aierr"
	"github.com/pario-ai/readq/pkg/models"
	"github.com/pario-ai/readq/pkg/registry"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 4096
	defaultTimeout     = 60 * time.Second
	testMaxTokens      = 10
	testPrompt         = "Hello"
)

type options struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures an adapter.
type Option func(*options)

// WithBaseURL replaces the vendor endpoint, e.g. for a proxy or a test server.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithTimeout bounds each vendor call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the adapter logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// wire is the HTTP plumbing shared by all adapters.
type wire struct {
	name         string
	defaultModel string
	http         *resty.Client
	log          zerolog.Logger
}

func newWire(pt models.ProviderType, opts []Option) wire {
	cfg, _ := registry.Provider(pt)
	o := options{
		baseURL: cfg.Endpoint,
		timeout: defaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	var c *resty.Client
	if o.httpClient != nil {
		c = resty.NewWithClient(o.httpClient)
	} else {
		c = resty.New()
	}
	c.SetBaseURL(o.baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(o.timeout)

	return wire{
		name:         cfg.Name,
		defaultModel: cfg.DefaultModel,
		http:         c,
		log:          o.logger.With().Str("provider", string(pt)).Logger(),
	}
}

// generation is the merged set of request parameters.
type generation struct {
	model       string
	temperature float64
	maxTokens   int
}

func (w wire) resolve(opts *models.RequestOptions) generation {
	g := generation{model: w.defaultModel, temperature: defaultTemperature, maxTokens: defaultMaxTokens}
	if opts == nil {
		return g
	}
	if opts.Model != "" {
		g.model = opts.Model
	}
	if opts.Temperature != nil {
		g.temperature = *opts.Temperature
	}
	if opts.MaxTokens != nil {
		g.maxTokens = *opts.MaxTokens
	}
	return g
}

// statusError is a non-2xx vendor reply.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("request failed, status %d", e.status)
}

// envelope captures the error object every vendor uses for failures.
type envelope struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// post sends body to path and decodes a successful JSON reply into out.
func (w wire) post(req *resty.Request, path string, body, out any) error {
	resp, err := req.SetBody(body).Post(path)
	if err != nil {
		// url.Error embeds the request URL, which may carry an API key.
		var ue *url.Error
		if errors.As(err, &ue) {
			return ue.Err
		}
		return err
	}
	if resp.IsError() {
		se := &statusError{status: resp.StatusCode()}
		var env envelope
		if json.Unmarshal(resp.Body(), &env) == nil && env.Error != nil {
			se.message = env.Error.Message
		}
		return se
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return aierr.InvalidResponse(err.Error())
	}
	return nil
}

// failure converts a transport or status error into a failed response.
func (w wire) failure(err error) models.ProviderResponse {
	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.status >= 500:
			e := aierr.ProviderUnavailable(w.name)
			return models.Failure(e.Message, string(e.Code))
		case se.status == http.StatusRequestTimeout:
			e := aierr.Timeout()
			return models.Failure(e.Message, string(e.Code))
		}
		e := aierr.Classify(se)
		if e.Code == aierr.CodeUnknown && se.message != "" {
			return models.Failure(se.message, string(e.Code))
		}
		return models.Failure(e.Message, string(e.Code))
	}
	// Dial and read failures carry addresses whose digits must not be classified.
	var oe *net.OpError
	if errors.As(err, &oe) && !oe.Timeout() {
		e := aierr.ProviderUnavailable(w.name)
		return models.Failure(e.Message, string(e.Code))
	}
	e := aierr.Classify(err)
	return models.Failure(e.Message, string(e.Code))
}

func success(content string, tokens *int) models.ProviderResponse {
	return models.ProviderResponse{Success: true, Content: content, TokensUsed: tokens}
}
