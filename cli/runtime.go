package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-redis/redis/v8"
	"student-records-go/config"
	"student-records-go/db"
	"student-records-go/logging"
)

var loadConfigFn = config.Load

type globalOptions struct {
	ConfigPath string
	DataFile   string
	Backend    string
	LogLevel   string
}

func (g *globalOptions) loadOptions() config.LoadOptions {
	opts := config.LoadOptions{ConfigPath: strings.TrimSpace(g.ConfigPath)}
	overrides := map[string]any{}
	if g.DataFile != "" {
		overrides["data_file"] = g.DataFile
	}
	if g.Backend != "" {
		overrides["backend"] = g.Backend
	}
	if g.LogLevel != "" {
		overrides["log.level"] = g.LogLevel
	}
	if len(overrides) > 0 {
		opts.Overrides = overrides
	}
	return opts
}

// runtime owns the store for one command run. The store is built from the
// repository's snapshot and written back only through save.
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	repo      db.Repository
	redis     *redis.Client
	store     *db.RecordStore
	report    db.LoadReport
}

func openRuntime(globals *globalOptions, stderr io.Writer) (*runtime, error) {
	cfg, err := loadConfigFn(globals.loadOptions())
	if err != nil {
		return nil, &ExitError{Code: ExitCodeUsage, Err: fmt.Errorf("load config: %w", err)}
	}

	logger, logCloser, err := logging.New(logging.Options{
		Level:     cfg.Log.Level,
		File:      cfg.Log.File,
		MaxSizeMB: cfg.Log.MaxSizeMB,
		MaxFiles:  cfg.Log.MaxFiles,
		Stderr:    stderr,
	})
	if err != nil {
		return nil, &ExitError{Code: ExitCodeUsage, Err: fmt.Errorf("init logging: %w", err)}
	}

	rt := &runtime{cfg: cfg, logger: logger, logCloser: logCloser}
	switch cfg.Backend {
	case config.BackendRedis:
		client, err := db.InitializeRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			rt.Close()
			return nil, &ExitError{Code: ExitCodeIO, Err: err}
		}
		rt.redis = client
		rt.repo = db.NewRedisRepository(client, cfg.Redis.KeyPrefix, logger)
	default:
		rt.repo = db.NewFileRepository(cfg.DataFile, logger)
	}

	records, report, err := rt.repo.LoadAll()
	if err != nil {
		rt.Close()
		return nil, &ExitError{Code: ExitCodeIO, Err: fmt.Errorf("load records: %w", err)}
	}
	rt.report = report
	rt.store = db.NewRecordStore(records, db.WithRejectDuplicates(cfg.Store.RejectDuplicates))
	logger.Info("roster loaded", "backend", cfg.Backend, "records", report.Loaded, "skipped", len(report.Skipped))
	return rt, nil
}

// warnSkipped tells the user about entries the load had to drop.
func (rt *runtime) warnSkipped(out io.Writer) {
	if n := len(rt.report.Skipped); n > 0 {
		fmt.Fprintf(out, "Warning: skipped %d malformed record(s) while loading.\n", n)
	}
}

func (rt *runtime) save() error {
	records := rt.store.ListAll()
	if err := rt.repo.SaveAll(records); err != nil {
		return &ExitError{Code: ExitCodeIO, Err: fmt.Errorf("could not save records: %w", err)}
	}
	rt.logger.Info("roster saved", "backend", rt.cfg.Backend, "records", len(records))
	return nil
}

func (rt *runtime) Close() {
	var errs []error
	if rt.redis != nil {
		errs = append(errs, rt.redis.Close())
	}
	if rt.logCloser != nil {
		errs = append(errs, rt.logCloser.Close())
	}
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintln(os.Stderr, "close:", err)
	}
}
