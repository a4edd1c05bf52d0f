package courier

import (
	"runtime"
	"time"

	"github.com/dogmatiq/courier/jobqueue"
	"github.com/dogmatiq/courier/persistence"
	"github.com/dogmatiq/courier/persistence/boltpersistence"
	"github.com/dogmatiq/courier/poller"
	"github.com/dogmatiq/courier/transport"
	"github.com/dogmatiq/courier/upload"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

var (
	// DefaultPersistenceProvider is the default persistence provider.
	//
	// It is overridden by the WithPersistence() option.
	DefaultPersistenceProvider persistence.Provider = &boltpersistence.FileProvider{
		Path: "/var/run/courier.boltdb",
	}

	// DefaultMaxAttempts is the default maximum number of attempts made at
	// each durable delivery job.
	//
	// It is overridden by the WithMaxAttempts() option.
	DefaultMaxAttempts = jobqueue.DefaultMaxAttempts

	// DefaultDeliveryBackoff is the default backoff strategy for delivery job
	// retries.
	//
	// It is overridden by the WithDeliveryBackoff() option.
	DefaultDeliveryBackoff backoff.Strategy = backoff.WithTransforms(
		backoff.Exponential(1*time.Second),
		linger.FullJitter,
		linger.Limiter(0, 1*time.Hour),
	)

	// DefaultConcurrencyLimit is the default number of delivery jobs to attempt
	// concurrently.
	//
	// It is overridden by the WithConcurrencyLimit() option.
	DefaultConcurrencyLimit = uint(runtime.GOMAXPROCS(0) * 2)

	// DefaultPollInterval is the default interval at which open groups are
	// polled.
	//
	// It is overridden by the WithPollInterval() option.
	DefaultPollInterval = poller.DefaultInterval

	// DefaultLogger is the default target for log messages produced by the
	// engine.
	//
	// It is overridden by the WithLogger() option.
	DefaultLogger = logging.DefaultLogger
)

// EngineOption configures the behavior of an engine.
type EngineOption func(*engineOptions)

// WithAccountKey returns an engine option that sets the public key of the
// local account.
//
// It identifies the account's data-store, and is excluded from the recipients
// of closed-group messages. This option is required.
func WithAccountKey(k string) EngineOption {
	if k == "" {
		panic("account key must not be empty")
	}

	return func(opts *engineOptions) {
		opts.AccountKey = k
	}
}

// WithPersistence returns an engine option that sets the persistence provider
// used to store delivery jobs, attachments and conversations.
//
// If this option is omitted or p is nil, DefaultPersistenceProvider is used.
func WithPersistence(p persistence.Provider) EngineOption {
	return func(opts *engineOptions) {
		opts.PersistenceProvider = p
	}
}

// WithTransport returns an engine option that sets the transport used to send
// messages. This option is required.
func WithTransport(t transport.Transport) EngineOption {
	return func(opts *engineOptions) {
		opts.Transport = t
	}
}

// WithFileServer returns an engine option that sets the file server used to
// upload attachments, and the URL of the general-purpose file server.
//
// Attachments of open-group messages are uploaded to the open-group server
// using the same FileServer implementation. This option is required.
func WithFileServer(fs upload.FileServer, url string) EngineOption {
	if url == "" {
		panic("file server URL must not be empty")
	}

	return func(opts *engineOptions) {
		opts.FileServer = fs
		opts.FileServerURL = url
	}
}

// WithUploadRate returns an engine option that limits the rate at which upload
// attempts are made.
//
// If this option is omitted uploads are not rate limited.
func WithUploadRate(r rate.Limit, burst int) EngineOption {
	return func(opts *engineOptions) {
		opts.UploadLimiter = rate.NewLimiter(r, burst)
	}
}

// WithOpenGroups returns an engine option that enables open-group polling.
//
// f fetches posts, and s receives them. l is used to look up the display
// name of open groups that are added without one, it may be nil.
//
// If this option is omitted open groups can still be added and messages sent
// to them, but they are not polled.
func WithOpenGroups(f poller.Fetcher, s poller.Sink, l poller.Lookup) EngineOption {
	return func(opts *engineOptions) {
		opts.Fetcher = f
		opts.Sink = s
		opts.Lookup = l
	}
}

// WithPollInterval returns an engine option that sets the interval at which
// open groups are polled.
//
// If this option is omitted or d is zero DefaultPollInterval is used.
func WithPollInterval(d time.Duration) EngineOption {
	if d < 0 {
		panic("duration must not be negative")
	}

	return func(opts *engineOptions) {
		opts.PollInterval = d
	}
}

// WithMaxAttempts returns an engine option that sets the maximum number of
// attempts made at each durable delivery job.
//
// If this option is omitted or n is zero DefaultMaxAttempts is used.
func WithMaxAttempts(n uint) EngineOption {
	return func(opts *engineOptions) {
		opts.MaxAttempts = n
	}
}

// WithDeliveryBackoff returns an engine option that sets the backoff strategy
// used to delay delivery job retries.
//
// If this option is omitted or s is nil DefaultDeliveryBackoff is used.
func WithDeliveryBackoff(s backoff.Strategy) EngineOption {
	return func(opts *engineOptions) {
		opts.DeliveryBackoff = s
	}
}

// WithConcurrencyLimit returns an engine option that limits the number of
// delivery jobs that are attempted at the same time.
//
// If this option is omitted or n is zero DefaultConcurrencyLimit is used.
func WithConcurrencyLimit(n uint) EngineOption {
	return func(opts *engineOptions) {
		opts.ConcurrencyLimit = n
	}
}

// WithObserver returns an engine option that sets an observer that is notified
// when a durable delivery job fails permanently.
func WithObserver(o jobqueue.Observer) EngineOption {
	return func(opts *engineOptions) {
		opts.Observer = o
	}
}

// WithMetrics returns an engine option that registers the engine's metrics
// with r.
//
// If this option is omitted metrics are collected but not registered.
func WithMetrics(r prometheus.Registerer) EngineOption {
	return func(opts *engineOptions) {
		opts.MetricsRegisterer = r
	}
}

// WithLogger returns an engine option that sets the target for log messages
// produced by the engine.
//
// If this option is omitted or l is nil DefaultLogger is used.
func WithLogger(l logging.Logger) EngineOption {
	return func(opts *engineOptions) {
		opts.Logger = l
	}
}

// engineOptions is a container for a fully-resolved set of engine options.
type engineOptions struct {
	AccountKey          string
	PersistenceProvider persistence.Provider
	Transport           transport.Transport
	FileServer          upload.FileServer
	FileServerURL       string
	UploadLimiter       *rate.Limiter
	Fetcher             poller.Fetcher
	Sink                poller.Sink
	Lookup              poller.Lookup
	PollInterval        time.Duration
	MaxAttempts         uint
	DeliveryBackoff     backoff.Strategy
	ConcurrencyLimit    uint
	Observer            jobqueue.Observer
	MetricsRegisterer   prometheus.Registerer
	Logger              logging.Logger
}

// resolveEngineOptions returns a fully-populated set of engine options built
// from the given set of option functions.
func resolveEngineOptions(options ...EngineOption) *engineOptions {
	opts := &engineOptions{}

	for _, o := range options {
		o(opts)
	}

	if opts.AccountKey == "" {
		panic("no account key configured, see courier.WithAccountKey()")
	}

	if opts.Transport == nil {
		panic("no transport configured, see courier.WithTransport()")
	}

	if opts.FileServer == nil {
		panic("no file server configured, see courier.WithFileServer()")
	}

	if opts.PersistenceProvider == nil {
		opts.PersistenceProvider = DefaultPersistenceProvider
	}

	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}

	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	if opts.DeliveryBackoff == nil {
		opts.DeliveryBackoff = DefaultDeliveryBackoff
	}

	if opts.ConcurrencyLimit == 0 {
		opts.ConcurrencyLimit = DefaultConcurrencyLimit
	}

	if opts.Logger == nil {
		opts.Logger = DefaultLogger
	}

	return opts
}
