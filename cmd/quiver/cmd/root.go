// Package cmd implements the quiver CLI commands.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/powderline/quiver/internal/httpcache"
	"github.com/powderline/quiver/internal/identity"
	"github.com/powderline/quiver/internal/reconcile"
	"github.com/powderline/quiver/internal/sources"
	"github.com/powderline/quiver/internal/store"
	"github.com/powderline/quiver/internal/store/sqlite"
	"github.com/powderline/quiver/pkg/catalog"
	"github.com/powderline/quiver/pkg/errors"
	"github.com/powderline/quiver/pkg/logging"
)

var (
	configFile string
	verbose    bool
	quiet      bool

	// Version information set by main.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "quiver",
	Short: "Snowboard catalog reconciliation CLI",
	Long: `Quiver gathers snowboard listings and spec claims from configured
retail and manufacturer sites, resolves them onto canonical boards, and
reconciles conflicting attribute claims by source trust tier.

Runs snapshot the market at a point in time; the catalog of boards and
their reconciled specs persists and improves across runs.`,
}

// Execute runs the CLI.
func Execute(version, commit, date string) {
	Version = version
	Commit = commit
	Date = date

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./quiver.yaml)")
	rootCmd.PersistentFlags().String("db", "quiver.db", "path to the catalog database")
	rootCmd.PersistentFlags().String("sources", "sources.yaml", "path to the source adapter config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "warnings and errors only")

	cobra.CheckErr(viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db")))
	cobra.CheckErr(viper.BindPFlag("sources", rootCmd.PersistentFlags().Lookup("sources")))
}

// initConfig reads the config file and environment.
func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("quiver")
	}

	// .env before viper env binding; .env.local overrides .env.
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Overload(envFile)
	}

	viper.SetEnvPrefix("QUIVER")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	_ = viper.ReadInConfig()

	configureLogging()
}

// configureLogging sets the global level from flags and environment.
func configureLogging() {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if quiet {
		level = zerolog.WarnLevel
	}
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		if parsed, err := zerolog.ParseLevel(envLevel); err == nil {
			level = parsed
		}
	}

	zerolog.SetGlobalLevel(level)
	logger := logging.Default().Level(level)
	logging.SetDefault(logger)
}

// app holds the wired components a command operates on.
type app struct {
	store    store.Store
	registry *sources.Registry
	resolver *identity.Resolver
	engine   *reconcile.Engine
	cache    *httpcache.Cache
}

// newApp opens the store and wires the registry and engine from
// configuration. requireSources controls whether a missing source config
// file is fatal; read-only commands work without one.
func newApp(requireSources bool) (*app, error) {
	st, err := sqlite.Open(viper.GetString("db"))
	if err != nil {
		return nil, err
	}

	a := &app{
		store:    st,
		resolver: identity.New(),
		cache:    httpcache.NewCache(st),
	}

	order, err := tierOrder()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	a.engine = reconcile.New(st, reconcile.WithOrder(order))

	a.registry = sources.NewRegistry()
	configs, err := sources.LoadConfigs(viper.GetString("sources"))
	if err != nil {
		if requireSources {
			_ = st.Close()
			return nil, err
		}
		return a, nil
	}

	maxAge := viper.GetDuration("cache_max_age")
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	delay := viper.GetDuration("fetch_delay")

	for _, cfg := range configs {
		opts := []httpcache.FetcherOption{httpcache.WithMaxAge(maxAge)}
		if delay > 0 {
			opts = append(opts, httpcache.WithDelay(delay))
		}
		fetcher := httpcache.NewFetcher(cfg.ID, a.cache, opts...)
		if err := a.registry.Register(sources.NewHTML(cfg, fetcher)); err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logging.Err(err).Msg("Closing store")
	}
}

// tierOrder reads the precedence list from config, defaulting to the
// engine's conventional order.
func tierOrder() (reconcile.Order, error) {
	names := viper.GetStringSlice("tier_order")
	if len(names) == 0 {
		return reconcile.DefaultOrder(), nil
	}
	var order reconcile.Order
	for _, name := range names {
		tier := catalog.Tier(name)
		if !tier.IsValid() {
			return nil, errors.NewValidationError("tier_order", name, "unknown source tier")
		}
		order = append(order, tier)
	}
	return order, nil
}
