// Command pageprobe checks rendered pages against link, style and source
// assertions.
//
// Usage:
//
//	pageprobe -config pageprobe.yaml               # run the configured checklist
//	pageprobe -url https://example.com -regex /x/  # quick source check
//	pageprobe -config pageprobe.yaml -serve :8080  # HTTP API
//	pageprobe -backend browser -mcp                # MCP tools over stdio
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pageprobe/api"
	"github.com/hazyhaar/pageprobe/checklist"
	"github.com/hazyhaar/pageprobe/internal/config"
	"github.com/hazyhaar/pageprobe/internal/sink"
	"github.com/hazyhaar/pageprobe/session"
)

var version = "dev"

var errChecksFailed = errors.New("pageprobe: checks failed")

type options struct {
	configPath string
	url        string
	backend    string
	regex      string
	dbPath     string
	snapDir    string
	serve      string
	mcp        bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to pageprobe.yaml")
	flag.StringVar(&o.url, "url", "", "page to probe with -regex")
	flag.StringVar(&o.backend, "backend", "", "backend override: http or browser")
	flag.StringVar(&o.regex, "regex", "", "pattern the page source must match (with -url)")
	flag.StringVar(&o.dbPath, "db", "", "SQLite run history path")
	flag.StringVar(&o.snapDir, "snapshots", "", "directory for failure snapshots")
	flag.StringVar(&o.serve, "serve", "", "serve the HTTP API on this address")
	flag.BoolVar(&o.mcp, "mcp", false, "serve MCP tools over stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, logger, o)
	switch {
	case errors.Is(err, errChecksFailed):
		os.Exit(1)
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, "usage: pageprobe -config <file> | -url <url> -regex <pattern> | -serve <addr> | -mcp")
		os.Exit(2)
	case err != nil:
		logger.Error("pageprobe: fatal", "error", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func run(ctx context.Context, logger *slog.Logger, o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	switch {
	case o.mcp:
		return runMCP(ctx, logger, cfg)
	case o.serve != "":
		return runServe(ctx, logger, cfg, o)
	case o.url != "":
		if o.regex == "" {
			return errUsage
		}
		cfg.Pages = []config.PageConfig{{
			URL: o.url,
			Checks: []config.CheckConfig{{
				Name:    "regex",
				Type:    config.CheckRegexInSource,
				Pattern: o.regex,
			}},
		}}
		return runChecklist(ctx, logger, cfg, o)
	case o.configPath != "":
		return runChecklist(ctx, logger, cfg, o)
	}
	return errUsage
}

func loadConfig(o options) (*config.Config, error) {
	cfg := &config.Config{}
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(o.configPath); err != nil {
			return nil, err
		}
	} else {
		cfg.ApplyDefaults()
	}
	if o.backend != "" {
		cfg.Session.Backend = o.backend
	}
	return cfg, nil
}

func runChecklist(ctx context.Context, logger *slog.Logger, cfg *config.Config, o options) error {
	sinks, st, err := buildSinks(cfg.Sinks, o, logger)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		sinks = append(sinks, st.AsSink())
	}
	router := sink.NewRouter(logger, sinks...)
	defer router.Close()

	sess, err := session.New(ctx, cfg.Session, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	rep, err := checklist.New(sess,
		checklist.WithSink(router),
		checklist.WithLogger(logger),
	).Run(ctx, cfg.Pages)
	if err != nil {
		return err
	}
	if st != nil {
		if err := st.SaveRun(ctx, rep); err != nil {
			logger.Error("pageprobe: save run", "run", rep.RunID, "error", err)
		}
	}
	if !rep.OK() {
		return errChecksFailed
	}
	return nil
}

func runServe(ctx context.Context, logger *slog.Logger, cfg *config.Config, o options) error {
	sinks, st, err := buildSinks(cfg.Sinks, o, logger)
	if err != nil {
		return err
	}
	opts := []api.Option{api.WithLogger(logger)}
	if st != nil {
		defer st.Close()
		opts = append(opts, api.WithStore(st))
	}
	for _, k := range sinks {
		defer k.Close()
		opts = append(opts, api.WithSink(k))
	}

	factory := func(ctx context.Context) (*session.Session, error) {
		return session.New(ctx, cfg.Session, logger)
	}
	srv := &http.Server{
		Addr:              o.serve,
		Handler:           api.New(factory, opts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("pageprobe: listening", "addr", o.serve, "backend", cfg.Session.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("pageprobe: shutdown", "error", err)
	}
	logger.Info("pageprobe: server stopped")
	return nil
}

func runMCP(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	sess, err := session.New(ctx, cfg.Session, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	srv := mcp.NewServer(&mcp.Implementation{Name: "pageprobe", Version: version}, nil)
	sess.RegisterMCP(srv)
	logger.Info("pageprobe: mcp on stdio", "backend", sess.Kind().String())
	return srv.Run(ctx, &mcp.StdioTransport{})
}
