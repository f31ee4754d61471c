package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kosarica/analytics-service/config"
	"github.com/kosarica/analytics-service/internal/auth"
	"github.com/kosarica/analytics-service/internal/backend"
	"github.com/kosarica/analytics-service/internal/cache"
	"github.com/kosarica/analytics-service/internal/storage"
	"github.com/kosarica/analytics-service/internal/store"
)

var (
	cfgFile      string
	outputFormat string
	cfg          *config.Config
	logger       *zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Analytics CLI - Retail dataset ingestion and campaign tool",
	Long: `A CLI for the retail analytics backend. It validates transaction,
product lookup and causal lookup files locally, creates datasets from them,
resumes interrupted imports, and manages campaigns and promotion rules.`,
	SilenceUsage:      true,
	PersistentPreRunE: persistentPreRun,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", outputTable, "Output format: table or json")
}

// persistentPreRun runs before each command and loads config and logging
func persistentPreRun(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}
	if outputFormat != outputTable && outputFormat != outputJSON {
		return fmt.Errorf("invalid output format: %s (use 'table' or 'json')", outputFormat)
	}

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger = initLogger()
	log.Logger = *logger
	return nil
}

// initLogger logs to stderr so command output on stdout stays parseable
func initLogger() *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.WarnLevel
	if cfg != nil && cfg.Logging.Level != "" {
		if parsedLevel, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			level = parsedLevel
		}
	}

	var output io.Writer
	if cfg != nil && cfg.Logging.Format == "json" {
		output = os.Stderr
	} else {
		noColor := false
		if cfg != nil {
			noColor = cfg.Logging.NoColor
		}
		output = zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor}
	}

	l := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &l
}

// app holds the backend-facing dependencies of a command
type app struct {
	storage   storage.Storage
	sessions  *auth.Manager
	api       *backend.Client
	datasets  *store.DatasetStore
	campaigns *store.CampaignStore
}

// newApp wires storage, the session manager and the backend client.
// The session manager exchanges tokens through an unauthenticated client;
// every other call goes through the authenticated copy.
func newApp() (*app, error) {
	st, err := cfg.OpenStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	anon, err := backend.NewClient(cfg.Backend.URL, cfg.HTTPClient(), nil)
	if err != nil {
		return nil, err
	}
	sessions := auth.NewManager(st, anon)
	api := anon.WithSessions(sessions)

	opts := []cache.Option{cache.WithLoadTimeout(cfg.Cache.LoadTimeout)}
	return &app{
		storage:   st,
		sessions:  sessions,
		api:       api,
		datasets:  store.NewDatasetStore(api, opts...),
		campaigns: store.NewCampaignStore(api, opts...),
	}, nil
}

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", userError(err))
		os.Exit(1)
	}
}
