package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/d2t/internal/repositories"
	"github.com/desertthunder/d2t/internal/services"
	"github.com/desertthunder/d2t/internal/shared"
	"github.com/desertthunder/d2t/internal/tasks"
)

// CatalogFactory builds the catalog client for a Discogs configuration.
type CatalogFactory func(cfg shared.DiscogsConfig, logger *log.Logger) (services.Catalog, error)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Services, the database and the sync engine are built on first use unless they were injected.
type Runner struct {
	config     *shared.Config
	configured bool
	store      *shared.TokenStore
	catalog    services.Catalog
	target     services.Target
	engine     tasks.SyncEngine
	db         *sql.DB
	newCatalog CatalogFactory
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	tty        bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config // skips loading config.toml and the environment when set
	Store      *shared.TokenStore
	Catalog    services.Catalog
	Target     services.Target
	Engine     tasks.SyncEngine
	DB         *sql.DB
	NewCatalog CatalogFactory
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	configured := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.NewCatalog == nil {
		opts.NewCatalog = func(cfg shared.DiscogsConfig, logger *log.Logger) (services.Catalog, error) {
			return services.NewDiscogsService(cfg, nil, logger)
		}
	}
	if opts.Store == nil {
		opts.Store = shared.NewTokenStore(opts.Config.Paths.TokensDir)
	}

	return &Runner{
		config:     opts.Config,
		configured: configured,
		store:      opts.Store,
		catalog:    opts.Catalog,
		target:     opts.Target,
		engine:     opts.Engine,
		db:         opts.DB,
		newCatalog: opts.NewCatalog,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		tty:        isTerminal(opts.Output),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, styleSyncCommand, listFoldersCommand, historyCommand, tuiCommand,
		tidalAuthCommand, discogsAuthCommand, testAuthCommand, setupCommand, configInfoCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads .env, the config file and environment overrides, then applies the log level flags.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if !r.configured {
		if err := shared.LoadDotEnv(); err != nil {
			return ctx, err
		}

		config, err := shared.LoadOrDefault(cmd.String("config"))
		if err != nil {
			return ctx, err
		}
		r.config = config
		r.store = shared.NewTokenStore(config.Paths.TokensDir)
		r.configured = true
	}

	level := shared.ParseLogLevel(r.config.App.LogLevel)
	switch {
	case cmd.Bool("debug"):
		level = log.DebugLevel
		r.logger.SetReportCaller(true)
	case cmd.Bool("verbose") && level > log.InfoLevel:
		level = log.InfoLevel
	}
	shared.SetLogLevel(r.logger, level)

	if err := r.config.ResolveDiscogsToken(r.store); err != nil {
		r.logger.Warn("failed to read stored discogs token", "error", err)
	}
	return ctx, nil
}

// After closes the database opened by a command.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// SetLogger replaces the logger used by the runner and everything it builds afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) discogs() (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}
	if err := r.config.RequireDiscogs(); err != nil {
		return nil, err
	}

	catalog, err := r.newCatalog(r.config.Credentials.Discogs, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discogs service: %w", err)
	}
	r.catalog = catalog
	return catalog, nil
}

func (r *Runner) tidalAuth() *services.TidalAuth {
	return services.NewTidalAuth(r.config.Credentials.Tidal, r.store, r.logger)
}

func (r *Runner) tidal(ctx context.Context) (services.Target, error) {
	if r.target != nil {
		return r.target, nil
	}
	if err := r.config.RequireTidal(); err != nil {
		return nil, err
	}

	client, err := r.tidalAuth().Client(ctx)
	if err != nil {
		return nil, err
	}

	r.target = services.NewTidalService(client, r.config.Credentials.Tidal.CountryCode, r.config.Sync.RateLimit, r.logger)
	return r.target, nil
}

func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.db = db
	return db, nil
}

// syncEngine wires the orchestrator to both services and the run history.
func (r *Runner) syncEngine(ctx context.Context) (tasks.SyncEngine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	catalog, err := r.discogs()
	if err != nil {
		return nil, err
	}
	target, err := r.tidal(ctx)
	if err != nil {
		return nil, err
	}
	db, err := r.database()
	if err != nil {
		return nil, err
	}

	r.engine = tasks.NewSyncOrchestrator(catalog, target, tasks.PolicyFromConfig(r.config.Sync), r.config.Sync.Workers, r.logger).
		WithIndex(repositories.NewPlaylistRepository(db)).
		WithRecorder(repositories.NewRunRepository(db))
	return r.engine, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	rule := strings.Repeat("═", 39)
	r.writePlain("%s\n%v\n%s\n", rule, title, rule)
}

// writeTable writes a rendered table followed by a newline.
func (r *Runner) writeTable(table string) error {
	return r.writePlain("%s\n", table)
}
