// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/crowdbox/internal/api/connect"
	"github.com/osa030/crowdbox/internal/app/filter"
	"github.com/osa030/crowdbox/internal/app/playback"
	"github.com/osa030/crowdbox/internal/app/provider"
	"github.com/osa030/crowdbox/internal/app/session"
	"github.com/osa030/crowdbox/internal/infra/audio"
	"github.com/osa030/crowdbox/internal/infra/cache"
	"github.com/osa030/crowdbox/internal/infra/config"
	"github.com/osa030/crowdbox/internal/infra/logger"
)

var (
	app        = kingpin.New("crowdbox-server", "crowdbox shared jukebox server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	driverName = app.Flag("driver", "Override playback driver (speaker, timer)").Enum("speaker", "timer")

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	zlog.Info().Msgf("loading config: path=%s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("failed to load config: %v", err)
	}
	if *driverName != "" {
		cfg.Playback.Driver = *driverName
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("server error: %+v", err)
		logCloser.Close()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	if err := validateFilterConfig(cfg); err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	store, err := cache.NewStore(cfg.Cache.Dir)
	if err != nil {
		return errors.Wrap(err, "failed to open cache")
	}
	zlog.Info().Msgf("cache opened: dir=%s tracks=%d", store.Dir(), len(store.Entries()))

	ctx := context.Background()
	gw, err := provider.NewGatewayFromConfig(ctx, cfg, store)
	if err != nil {
		return errors.Wrap(err, "failed to create providers")
	}

	drv := newDriver(cfg)

	sessionMgr, err := session.NewManager(cfg, gw, store, drv)
	if err != nil {
		return errors.Wrap(err, "failed to create session manager")
	}
	defer sessionMgr.Close()

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewJukeboxServiceHandler(apiconnect.NewJukeboxService(sessionMgr, cfg)))
	if cfg.Admin.Token == "" {
		zlog.Warn().Msg("admin token not configured, admin service will reject every request")
	}
	mux.Handle(apiconnect.NewAdminServiceHandler(apiconnect.NewAdminService(sessionMgr), cfg.Admin.Token))

	// h2c serves HTTP/2 without TLS, needed by connect streaming clients
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	if err := sessionMgr.Start(); err != nil {
		zlog.Error().Msgf("failed to start playback: %v", err)
	}

	// Give the listener a moment before running hooks that may call the server
	time.Sleep(100 * time.Millisecond)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		zlog.Info().Msgf("received signal, shutting down: signal=%s", sig)
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	// Close the session first so notification streams end
	sessionMgr.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("server stopped")
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// newDriver creates the process-wide playback driver.
func newDriver(cfg *config.Config) playback.Driver {
	switch cfg.Playback.Driver {
	case "timer":
		zlog.Info().Msg("playback driver: timer (no audio output)")
		return playback.NewTimerDriver(0)
	default:
		zlog.Info().Msgf("playback driver: speaker sample_rate=%d buffer_ms=%d", cfg.Playback.SampleRate, cfg.Playback.BufferMs)
		return audio.NewSpeakerDriver(audio.Config{
			SampleRate: cfg.Playback.SampleRate,
			Buffer:     time.Duration(cfg.Playback.BufferMs) * time.Millisecond,
			Volume:     uint8(max(session.MinVolume, min(cfg.Volume.Initial, session.MaxVolume))),
		})
	}
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	filters := []filter.Filter{filter.NewDuplicateTrackFilter()}
	for _, factory := range filter.GetRegistered() {
		filters = append(filters, factory())
	}
	for _, f := range filters {
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// validateFilterConfig validates filter configurations.
func validateFilterConfig(cfg *config.Config) error {
	registry := filter.GetRegistered()

	for filterName, filterCfg := range cfg.Filters {
		if !filterCfg.Enabled {
			continue
		}

		factory, exists := registry[filterName]
		if !exists {
			// The duplicate track filter is always on and takes no settings
			zlog.Warn().Msgf("filter is not configurable, ignoring: filter=%s", filterName)
			continue
		}

		f := factory()
		if err := f.ValidateConfig(filterCfg.Settings); err != nil {
			return errors.Wrapf(err, "filter %s", filterName)
		}
	}

	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("executing hooks: stage=%s count=%d", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("failed to execute hook: %s", hook)
		}
	}
}
