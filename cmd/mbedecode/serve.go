package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dbehnke/mbedecode/internal/config"
	"github.com/dbehnke/mbedecode/internal/database"
	"github.com/dbehnke/mbedecode/internal/discovery"
	"github.com/dbehnke/mbedecode/internal/driver"
	"github.com/dbehnke/mbedecode/internal/metrics"
	"github.com/dbehnke/mbedecode/internal/server"
	"github.com/dbehnke/mbedecode/internal/session"
	"github.com/dbehnke/mbedecode/internal/vocoder"
)

const (
	PRUNE_INTERVAL   = time.Hour
	STATUS_INTERVAL  = 5 * time.Minute
	SHUTDOWN_TIMEOUT = 10 * time.Second
)

// Daemon hosts the decoder service
type Daemon struct {
	config  *config.Config
	logger  *log.Logger
	logFile *os.File

	db         *database.DB
	journal    *database.SessionRepository
	metrics    *metrics.Metrics
	server     *server.Server
	advertiser *discovery.Advertiser
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configFile := fs.String("config", getDefaultConfig(), "Configuration file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		*configFile = fs.Arg(0)
	}

	daemon, err := NewDaemon(*configFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		daemon.logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	return daemon.Run(ctx)
}

// NewDaemon loads configFile and builds every component it enables
func NewDaemon(configFile string) (*Daemon, error) {
	cfg := config.NewConfig(configFile)
	if _, err := os.Stat(configFile); err == nil {
		if err := cfg.Load(); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		log.Printf("Config file %s not found, using defaults", configFile)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	d := &Daemon{config: cfg}
	if err := d.setupLogging(); err != nil {
		return nil, err
	}
	d.logger.Printf("mbedecode v%s starting with config: %s", VERSION, configFile)

	var observer session.Observer
	if cfg.GetMetricsEnabled() {
		d.metrics = metrics.NewMetrics()
		observer = d.metrics
	}

	synth := vocoder.Default()
	registry := driver.NewRegistry()
	if err := registry.Register(driver.NewMBELibDriver(synth, d.logger, observer)); err != nil {
		return nil, err
	}
	device, err := registry.BuildDevice(cfg.GetDriver(), cfg.DriverConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to build %s device: %w", cfg.GetDriver(), err)
	}

	opts := []server.Option{server.WithLogger(d.logger)}
	if d.metrics != nil {
		opts = append(opts, server.WithMetrics(d.metrics))
	}

	if cfg.GetDatabaseEnabled() {
		d.db, err = database.NewDB(database.Config{
			Path:  cfg.GetDatabasePath(),
			Debug: cfg.GetDatabaseDebug(),
		}, log.New(d.logger.Writer(), "[DB] ", log.LstdFlags))
		if err != nil {
			return nil, fmt.Errorf("failed to open session journal: %w", err)
		}
		d.journal = database.NewSessionRepository(d.db.GetDB())
		opts = append(opts, server.WithJournal(d.journal))
	}

	metricsPath := ""
	if cfg.GetMetricsEnabled() {
		metricsPath = cfg.GetMetricsPath()
	}

	d.server = server.New(server.Config{
		Address:        cfg.GetAddress(),
		Name:           cfg.GetName(),
		AllowedOrigins: cfg.GetAllowedOrigins(),
		MaxSessions:    cfg.GetMaxSessions(),
		MetricsPath:    metricsPath,
		Debug:          cfg.GetLogDebug(),
	}, cfg.GetDriver(), device, opts...)

	if cfg.GetMDNS() {
		port, err := listenPort(cfg.GetAddress())
		if err != nil {
			return nil, err
		}
		d.advertiser = discovery.NewAdvertiser(discovery.Config{
			ServiceName: cfg.GetName(),
			Port:        port,
			Codecs:      device.Codecs(),
		}, d.logger)
	}

	d.logger.Printf("Driver: %s (synthesizer %s, unvoiced quality %d)",
		cfg.GetDriver(), synth.Name(), cfg.GetUnvoicedQuality())

	return d, nil
}

func (d *Daemon) setupLogging() error {
	d.logger = log.New(os.Stdout, "", log.LstdFlags)

	if path := d.config.GetLogFile(); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		d.logFile = f
		d.logger.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (d *Daemon) Run(ctx context.Context) error {
	defer d.close()

	d.pruneJournal()

	if d.advertiser != nil {
		if err := d.advertiser.Start(); err != nil {
			d.logger.Printf("Warning: mDNS advertisement failed: %v", err)
		}
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- d.server.ListenAndServe()
	}()

	pruneTicker := time.NewTicker(PRUNE_INTERVAL)
	defer pruneTicker.Stop()
	statusTicker := time.NewTicker(STATUS_INTERVAL)
	defer statusTicker.Stop()

	d.logger.Printf("Decoder running - press Ctrl+C to stop")

	for {
		select {
		case <-ctx.Done():
			d.logger.Printf("Shutdown requested")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
			defer cancel()
			if err := d.server.Shutdown(shutdownCtx); err != nil {
				d.logger.Printf("Shutdown error: %v", err)
			}
			d.logger.Printf("mbedecode stopped")
			return nil

		case err := <-errChan:
			return err

		case <-pruneTicker.C:
			d.pruneJournal()

		case <-statusTicker.C:
			d.printStats()
		}
	}
}

func (d *Daemon) pruneJournal() {
	if d.journal == nil || d.config.GetRetentionHours() == 0 {
		return
	}

	before := time.Now().UTC().Add(-time.Duration(d.config.GetRetentionHours()) * time.Hour)
	n, err := d.journal.Prune(before)
	if err != nil {
		d.logger.Printf("Journal prune failed: %v", err)
		return
	}
	if n > 0 {
		d.logger.Printf("Pruned %d journal entries older than %s", n, before.Format(time.RFC3339))
	}
}

func (d *Daemon) printStats() {
	if d.journal == nil {
		d.logger.Printf("Status: %d active sessions", d.server.ActiveSessions())
		return
	}

	totals, err := d.journal.Totals()
	if err != nil {
		d.logger.Printf("Status: %d active sessions (journal error: %v)", d.server.ActiveSessions(), err)
		return
	}
	d.logger.Printf("Status: %d active sessions, %d journaled, %d frames in, %d frames out",
		d.server.ActiveSessions(), totals.Sessions, totals.FramesIn, totals.FramesOut)
}

func (d *Daemon) close() {
	if d.advertiser != nil {
		if err := d.advertiser.Stop(); err != nil {
			d.logger.Printf("mDNS stop error: %v", err)
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			d.logger.Printf("Database close error: %v", err)
		}
	}
	if d.logFile != nil {
		d.logFile.Close()
	}
}

// listenPort extracts the numeric port from a listen address like ":8930"
func listenPort(address string) (int, error) {
	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return 0, fmt.Errorf("invalid server address %q: %w", address, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return 0, fmt.Errorf("server address %q needs a numeric port for mDNS", address)
	}
	return port, nil
}
