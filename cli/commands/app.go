// Package commands implements the azresponses command-line interface.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/petal-labs/azresponses/cache"
	"github.com/petal-labs/azresponses/cli/config"
	"github.com/petal-labs/azresponses/core"
	"github.com/petal-labs/azresponses/observability"
	"github.com/petal-labs/azresponses/providers/azure"
)

// ConfigLoader loads CLI config from a path.
type ConfigLoader func(path string) (*config.Config, error)

// TransportFactory creates the transport for the resolved config.
type TransportFactory func(cfg *config.Config, logger *slog.Logger) (core.Transport, error)

// KeyReader prompts for an API key when none is configured.
type KeyReader func() (string, error)

// AppOption customizes App dependencies.
type AppOption func(*App)

// App holds CLI state and runtime dependencies.
type App struct {
	root *cobra.Command

	loadConfig   ConfigLoader
	newTransport TransportFactory
	readKey      KeyReader
	getenv       func(string) string
	stdin        io.Reader
	stdout       io.Writer
	stderr       io.Writer

	cfgFile    string
	envFile    string
	endpoint   string
	model      string
	apiVersion string
	jsonOutput bool
	verbose    bool
	trace      bool

	cfg      *config.Config
	logger   *slog.Logger
	shutdown func(context.Context) error
}

// WithConfigLoader injects a config loader dependency.
func WithConfigLoader(loader ConfigLoader) AppOption {
	return func(a *App) {
		if loader != nil {
			a.loadConfig = loader
		}
	}
}

// WithTransportFactory injects a transport factory dependency.
func WithTransportFactory(factory TransportFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.newTransport = factory
		}
	}
}

// WithKeyReader injects the API key prompt.
func WithKeyReader(r KeyReader) AppOption {
	return func(a *App) {
		if r != nil {
			a.readKey = r
		}
	}
}

// WithEnv injects the environment lookup.
func WithEnv(getenv func(string) string) AppOption {
	return func(a *App) {
		if getenv != nil {
			a.getenv = getenv
		}
	}
}

// WithIO injects process I/O streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) AppOption {
	return func(a *App) {
		if stdin != nil {
			a.stdin = stdin
		}
		if stdout != nil {
			a.stdout = stdout
		}
		if stderr != nil {
			a.stderr = stderr
		}
	}
}

// NewApp creates a new CLI app with default dependencies.
func NewApp(opts ...AppOption) *App {
	a := &App{
		loadConfig:   config.LoadConfig,
		newTransport: defaultTransportFactory,
		getenv:       os.Getenv,
		stdin:        os.Stdin,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		logger:       slog.New(slog.DiscardHandler),
	}
	a.readKey = a.promptKey

	for _, opt := range opts {
		opt(a)
	}

	a.root = a.newRootCommand()
	return a
}

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "azresponses",
		Short: "azresponses - command-line client for the Azure OpenAI Responses API",
		Long: `azresponses sends requests to an Azure OpenAI Responses API deployment.

Settings come from ~/.azresponses/config.yaml, a .env file in the current
directory and AZURE_OPENAI_* environment variables, in increasing priority.
Flags override all of them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is ~/.azresponses/config.yaml)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.StringVar(&a.endpoint, "endpoint", "", "resource endpoint, e.g. https://name.openai.azure.com")
	pf.StringVarP(&a.model, "model", "m", "", "deployment name")
	pf.StringVar(&a.apiVersion, "api-version", "", "api-version query parameter")
	pf.BoolVar(&a.jsonOutput, "json", false, "emit JSON output")
	pf.BoolVar(&a.verbose, "verbose", false, "enable debug logging")
	pf.BoolVar(&a.trace, "trace", false, "print OpenTelemetry spans to stderr")

	root.AddCommand(a.newCreateCommand())
	root.AddCommand(a.newGetCommand())
	root.AddCommand(a.newDeleteCommand())
	root.AddCommand(a.newEmbedCommand())
	root.AddCommand(a.newVersionCommand())

	return root
}

// Execute runs the root command with args.
func (a *App) Execute(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	a.root.SetIn(a.stdin)
	a.root.SetOut(a.stdout)
	a.root.SetErr(a.stderr)
	err := a.root.ExecuteContext(ctx)
	if err != nil {
		var ee *exitError
		if !errors.As(err, &ee) {
			// Flag and argument errors from cobra itself.
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			err = exitWithCode(ExitValidation, err)
		}
	}
	return errors.Join(err, a.close(ctx))
}

func (a *App) initConfig() error {
	if a.verbose {
		a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	if a.envFile != "" {
		if err := config.LoadDotEnv(a.envFile); err != nil {
			return a.fail(ExitValidation, "config_error", err)
		}
	}

	path := a.cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := a.loadConfig(path)
	if err != nil {
		return a.fail(ExitValidation, "config_error", err)
	}
	cfg.ApplyEnv(a.getenv)

	if a.endpoint != "" {
		cfg.Endpoint = a.endpoint
	}
	if a.model != "" {
		cfg.Deployment = a.model
	}
	if a.apiVersion != "" {
		cfg.APIVersion = a.apiVersion
	}
	a.cfg = cfg

	if a.trace && a.shutdown == nil {
		shutdown, err := observability.InitTracer("azresponses", a.stderr, a.logger)
		if err != nil {
			return a.fail(ExitValidation, "config_error", err)
		}
		a.shutdown = shutdown
	}
	return nil
}

// close flushes the tracer once.
func (a *App) close(ctx context.Context) error {
	if a.shutdown == nil {
		return nil
	}
	shutdown := a.shutdown
	a.shutdown = nil
	return shutdown(context.WithoutCancel(ctx))
}

// newClient builds a client from the resolved config, prompting for the API
// key when none is configured.
func (a *App) newClient() (*core.Client, error) {
	cfg := a.cfg
	if err := cfg.Validate(); err != nil {
		return nil, a.fail(ExitValidation, "validation_error", err)
	}
	if cfg.APIKey == "" {
		key, err := a.readKey()
		if err != nil {
			return nil, a.fail(ExitValidation, "validation_error", err)
		}
		cfg.APIKey = key
	}

	transport, err := a.newTransport(cfg, a.logger)
	if err != nil {
		return nil, a.fail(ExitValidation, "config_error", err)
	}

	opts := []core.ClientOption{
		core.WithLogger(a.logger),
		core.WithDefaultModel(cfg.Deployment),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, core.WithTimeout(cfg.Timeout))
	}
	if cfg.Cache.Enabled {
		opts = append(opts, core.WithCache(cache.New[*core.Envelope[*core.Response]](cache.Options{
			MaxEntries: cfg.Cache.MaxEntries,
			TTL:        cfg.Cache.TTL,
		})))
	}
	if a.trace {
		opts = append(opts, core.WithTelemetry(observability.NewTracer(nil)))
	}
	return core.NewClient(transport, opts...), nil
}

func defaultTransportFactory(cfg *config.Config, logger *slog.Logger) (core.Transport, error) {
	opts := []azure.Option{
		azure.WithLogger(logger),
		azure.WithOpenTelemetry(),
	}
	if cfg.APIVersion != "" {
		opts = append(opts, azure.WithAPIVersion(cfg.APIVersion))
	}
	if cfg.BearerAuth() {
		opts = append(opts, azure.WithBearerAuth())
	}
	return azure.New(cfg.Endpoint, cfg.APIKey, opts...), nil
}

// promptKey reads the key without echo when stdin is a terminal.
func (a *App) promptKey() (string, error) {
	f, ok := a.stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", fmt.Errorf("API key required: set %s", config.EnvAPIKey)
	}

	fmt.Fprint(a.stderr, "API key: ")
	key, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(a.stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	k := strings.TrimSpace(string(key))
	if k == "" {
		return "", errors.New("API key required")
	}
	return k, nil
}
