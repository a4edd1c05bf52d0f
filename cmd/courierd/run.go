package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dogmatiq/courier"
	"github.com/dogmatiq/courier/internal/config"
	"github.com/dogmatiq/courier/internal/x/loggingx"
	"github.com/dogmatiq/courier/persistence"
	"github.com/dogmatiq/courier/persistence/boltpersistence"
	"github.com/dogmatiq/courier/persistence/sqlpersistence"
	"github.com/dogmatiq/courier/poller"
	"github.com/dogmatiq/courier/transport/grpctransport"
	"github.com/dogmatiq/dodeca/logging"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// run is the action of the root command.
func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"), c.StringSlice("env-file")...)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	zl, err := newZapLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer zl.Sync() // nolint:errcheck

	logger := loggingx.Zap(zl)

	conn, err := grpc.Dial(
		cfg.RelayAddress,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return err
	}
	defer conn.Close()

	client := &grpctransport.Client{Conn: conn}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	options := []courier.EngineOption{
		courier.WithAccountKey(cfg.AccountKey),
		courier.WithPersistence(newProvider(cfg)),
		courier.WithTransport(client),
		courier.WithFileServer(client, cfg.FileServerURL),
		courier.WithOpenGroups(client, &logSink{logger}, client),
		courier.WithPollInterval(cfg.PollInterval),
		courier.WithMaxAttempts(cfg.MaxAttempts),
		courier.WithConcurrencyLimit(cfg.ConcurrencyLimit),
		courier.WithMetrics(reg),
		courier.WithLogger(logger),
	}

	if cfg.UploadRate > 0 {
		options = append(
			options,
			courier.WithUploadRate(rate.Limit(cfg.UploadRate), cfg.UploadBurst),
		)
	}

	e, err := courier.Open(c.Context, options...)
	if err != nil {
		return err
	}
	defer e.Close()

	g, ctx := errgroup.WithContext(c.Context)

	g.Go(func() error {
		return e.Run(ctx)
	})

	if cfg.MetricsAddress != "" {
		g.Go(func() error {
			return serveMetrics(ctx, cfg.MetricsAddress, reg)
		})
	}

	return g.Wait()
}

// newProvider returns the persistence provider selected by cfg.
func newProvider(cfg config.Config) persistence.Provider {
	if cfg.Store == config.SQLiteStore {
		return &sqlpersistence.DSNProvider{
			DriverName: "sqlite3",
			DSN:        cfg.SQLiteDSN,
		}
	}

	return &boltpersistence.FileProvider{
		Path: cfg.BoltPath,
	}
}

func newZapLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

// serveMetrics serves the metrics in g over HTTP until ctx is canceled.
func serveMetrics(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	s := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.Shutdown(shutdownCtx) // nolint:errcheck
	}()

	if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// logSink is a poller.Sink that logs the posts it receives.
type logSink struct {
	logger logging.Logger
}

func (s *logSink) HandlePosts(_ context.Context, conversationID string, posts []poller.Post) error {
	for _, p := range posts {
		logging.Debug(
			s.logger,
			"%s received post #%d from %s (%d bytes)",
			conversationID,
			p.ID,
			p.Sender,
			len(p.Payload),
		)
	}

	return nil
}

// sampleConfig is the action of the sample-config command.
func sampleConfig(*cli.Context) error {
	cfg := config.Defaults()
	cfg.AccountKey = "<account public key>"
	cfg.RelayAddress = "localhost:50555"
	cfg.FileServerURL = "https://files.example.org"

	return config.WriteSample(os.Stdout, cfg)
}
