package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/postfetch/internal/assembly"
	"github.com/nao1215/postfetch/internal/cache"
	"github.com/nao1215/postfetch/internal/config"
	"github.com/nao1215/postfetch/internal/fetch"
	pflog "github.com/nao1215/postfetch/internal/log"
	"github.com/nao1215/postfetch/internal/render"
)

// addOriginFlags registers the flags shared by every command that talks
// to the post API.
func addOriginFlags(cmd *cobra.Command) {
	// Origin flags
	cmd.Flags().String("api-base", "",
		"Primary API origin (e.g., https://api.example.com)")
	cmd.Flags().String("site-url", "",
		"Blog URL; API paths are resolved against it as the last origin")
	cmd.Flags().StringSlice("origin", nil,
		"Additional API origin tried after --api-base (repeatable)")
	cmd.Flags().String("api-prefix", "",
		"Path prefix of the post API (default \"/api\")")
	cmd.Flags().StringToStringP("header", "H", nil,
		"Header sent with every API request (key=value, repeatable)")

	// Transport flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for a single HTTP attempt")
	cmd.Flags().Float64("rate", 0,
		"Maximum requests per second (0 = unlimited)")
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")

	// Cache flags
	addCacheFlags(cmd)

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .postfetch in current or home directory)")
}

// addCacheFlags registers the cache location flags.
func addCacheFlags(cmd *cobra.Command) {
	cmd.Flags().String("cache", config.DefaultCacheBackend,
		"Cache backend: sqlite, memory or none")
	cmd.Flags().String("cache-dir", "",
		"Directory of the SQLite cache (default: XDG cache directory)")
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the redacting logger for a command.
func setupLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	asJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		asJSON, _ = cmd.Root().PersistentFlags().GetBool("log-json") //nolint:errcheck // defaults to text
	}
	return newLogger(cmd.ErrOrStderr(), verbose, asJSON)
}

func newLogger(w io.Writer, verbose, asJSON bool) *slog.Logger {
	if asJSON {
		return pflog.NewSecureJSONLogger(w, verbose)
	}
	return pflog.NewSecureLogger(w, verbose)
}

// buildConfig creates a Config from defaults, the configuration file, the
// environment and the command flags, in that order. Flags only override
// earlier layers when they were given explicitly.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var err error
	if cmd.Flags().Lookup("config") != nil {
		cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
		if err != nil {
			return nil, err
		}
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use defaults if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	config.ApplyEnv(cfg)

	flags := cmd.Flags()
	steps := []error{
		overrideFlag(cmd, "api-base", &cfg.APIBase, flags.GetString),
		overrideFlag(cmd, "site-url", &cfg.SiteURL, flags.GetString),
		overrideFlag(cmd, "origin", &cfg.ExtraOrigins, flags.GetStringSlice),
		overrideFlag(cmd, "api-prefix", &cfg.APIPrefix, flags.GetString),
		overrideFlag(cmd, "timeout", &cfg.Timeout, flags.GetDuration),
		overrideFlag(cmd, "rate", &cfg.RequestsPerSecond, flags.GetFloat64),
		overrideFlag(cmd, "proxy", &cfg.ProxyAddress, flags.GetString),
		overrideFlag(cmd, "cache", &cfg.CacheBackend, flags.GetString),
		overrideFlag(cmd, "cache-dir", &cfg.CacheDir, flags.GetString),
		overrideFlag(cmd, "interval", &cfg.PollInterval, flags.GetDuration),
		overrideFlag(cmd, "batch", &cfg.BatchSize, flags.GetInt),
		overrideFlag(cmd, "json", &cfg.JSONReport, flags.GetBool),
		overrideFlag(cmd, "markdown", &cfg.MarkdownReport, flags.GetBool),
		overrideFlag(cmd, "html", &cfg.HTMLOutput, flags.GetBool),
		overrideFlag(cmd, "output", &cfg.ReportFile, flags.GetString),
		overrideFlag(cmd, "no-images", &cfg.NoImages, flags.GetBool),
		overrideFlag(cmd, "pages", &cfg.PageDir, flags.GetString),
	}
	for _, err := range steps {
		if err != nil {
			return nil, err
		}
	}

	if flags.Changed("header") {
		headers, err := flags.GetStringToString("header")
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			cfg.Headers[k] = v
		}
	}

	cfg.Verbose = getVerboseFlag(cmd)
	return cfg, nil
}

// overrideFlag copies the value of flag name into dst when the flag was set
// on the command line. Flags a command does not define are skipped.
func overrideFlag[T any](cmd *cobra.Command, name string, dst *T, get func(string) (T, error)) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// openStore opens the configured cache backend. The returned close
// function is never nil.
func openStore(cfg *config.Config, logger *slog.Logger) (cache.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.CacheBackend {
	case config.CacheNone:
		return cache.Nop{}, noop, nil
	case config.CacheMemory:
		return cache.NewMemoryStore(
			cache.WithMaxEntries(cfg.CacheMaxEntries),
			cache.WithMaxAge(cfg.CacheMaxAge),
		), noop, nil
	default:
		store, err := openSQLite(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
}

// openSQLite opens the persistent cache in cfg.CacheDir.
func openSQLite(cfg *config.Config, logger *slog.Logger) (*cache.SQLiteStore, error) {
	opts := cache.DefaultOptions()
	opts.MaxEntries = cfg.CacheMaxEntries
	opts.MaxAge = cfg.CacheMaxAge
	opts.Logger = logger

	store, err := cache.OpenSQLite(cfg.CacheDir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	logger.Debug("cache opened", "path", store.Path())
	return store, nil
}

// newFetcher creates the multi-origin fetcher described by cfg.
func newFetcher(cfg *config.Config, store cache.Store, logger *slog.Logger) (*fetch.Fetcher, error) {
	client, err := fetch.NewHTTPClient(fetch.ClientOptions{
		Timeout:      cfg.Timeout,
		ProxyAddress: cfg.ProxyAddress,
		UserAgent:    cfg.UserAgent,
		Headers:      cfg.Headers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	f := fetch.New(client,
		fetch.WithOrigins(cfg.APIBase, cfg.ExtraOrigins...),
		fetch.WithSiteURL(cfg.SiteURL),
		fetch.WithStore(store),
		fetch.WithRateLimit(cfg.RequestsPerSecond),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithLogger(logger),
	)
	logger.Debug("fetcher ready", "origins", f.Origins())
	return f, nil
}

// newAssembler creates the view assembler used by assemble and watch.
func newAssembler(cfg *config.Config, f assembly.Fetcher, logger *slog.Logger) *assembly.Assembler {
	return assembly.New(f,
		assembly.WithAPIPrefix(cfg.APIPrefix),
		assembly.WithMaxInFlight(cfg.MaxInFlight),
		assembly.WithFanoutTimeout(cfg.FanoutTimeout),
		assembly.WithTOCBuilder(render.BuildTOC),
		assembly.WithLogger(logger),
	)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// openOutput returns the report destination: path when set, else stdout.
// Reports are created with 0600 permissions.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	if err := ensureParentDir(path); err != nil {
		return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-chosen report path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// ensureParentDir creates the directory holding path if needed.
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0750)
}
