package shelf

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	path       string
	url        string
	httpClient *http.Client
	timeout    time.Duration
	comma      rune

	weights   Weights
	maxEdits  int
	keepHTML  bool
	workers   int
	collation language.Tag

	suggestions int
	debounce    time.Duration

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithFile reads the catalog from a local file.
func WithFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.path = path
		c.url = ""
	})
}

// WithURL downloads the catalog with a GET request.
func WithURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.url = url
		c.path = ""
	})
}

// WithHTTPClient sets the client used by WithURL. Defaults to a client with
// the fetch timeout.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithFetchTimeout bounds a catalog download. Default: 30s.
func WithFetchTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithDelimiter sets the field delimiter of the catalog text. Default: ','.
func WithDelimiter(r rune) Option {
	return optionFunc(func(c *clientConfig) {
		c.comma = r
	})
}

// WithWeights sets per-field relevance multipliers.
func WithWeights(w Weights) Option {
	return optionFunc(func(c *clientConfig) {
		c.weights = w
	})
}

// WithMaxEdits caps the typo tolerance for long words (0..2). Default: 2.
func WithMaxEdits(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxEdits = n
	})
}

// WithKeepHTML indexes descriptions with their markup.
func WithKeepHTML() Option {
	return optionFunc(func(c *clientConfig) {
		c.keepHTML = true
	})
}

// WithWorkers bounds concurrently executing searches. Default: 4.
func WithWorkers(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.workers = n
	})
}

// WithCollation sets the locale used by the name sort keys. Default: English.
func WithCollation(tag language.Tag) Option {
	return optionFunc(func(c *clientConfig) {
		c.collation = tag
	})
}

// WithSuggestionCount sets how many titles Result.Suggestions carries. Default: 5.
func WithSuggestionCount(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.suggestions = n
	})
}

// WithDebounce sets how long Live query text must stay unchanged before it
// is dispatched. Default: 400ms.
func WithDebounce(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.debounce = d
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
