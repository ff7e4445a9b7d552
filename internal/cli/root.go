package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimvault/internal/auth"
	"github.com/ppiankov/claimvault/internal/ledger"
	"github.com/ppiankov/claimvault/internal/logger"
	"github.com/ppiankov/claimvault/internal/model"
	"github.com/ppiankov/claimvault/internal/registry"
	"github.com/ppiankov/claimvault/internal/store"
)

const version = "0.1.0"

// app holds state shared by all commands of one invocation
type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
	output  string
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the claimvault command tree
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "claimvault",
		Short: "Claimvault - pending payment claim registry",
		Long: `Claimvault records pending claims: payments that were accepted but not
yet settled.

Each claim is stored under its 32-byte payment id together with the
originator, recipient, payment and fee amounts and the ledger sequence
at which it expires. Every registration is appended to an ordered index.

Registrations must be authorized by the originator. With the default
schnorr mode the originator is a hex x-only public key and the request
is signed with the matching private key (see 'claimvault keygen').`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.claimvault/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", "yaml", "output format (yaml, json)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRegisterCmd(a),
		newGetCmd(a),
		newListCmd(a),
		newImportCmd(a),
		newKeygenCmd(a),
		newConfigCmd(a),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Display the version number of claimvault.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "claimvault v%s\n", version)
		},
	}
}

// initConfig reads the config file and CLAIMVAULT_* environment variables
func (a *app) initConfig(cmd *cobra.Command) error {
	setDefaults(a.v, model.DefaultConfig())

	if a.cfgFile != "" {
		// Use config file from the flag
		a.v.SetConfigFile(a.cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(filepath.Join(home, ".claimvault"))
		}
		a.v.SetConfigType("yaml")
		a.v.SetConfigName("config")
	}

	// Nested keys map to CLAIMVAULT_STORE_DATA_DIR and so on
	a.v.SetEnvPrefix("CLAIMVAULT")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if a.verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", a.v.ConfigFileUsed())
	}
	return nil
}

// loadConfig resolves defaults, config file and environment into a Config
func (a *app) loadConfig(cmd *cobra.Command) (*model.Config, error) {
	if err := a.initConfig(cmd); err != nil {
		return nil, err
	}

	cfg := model.DefaultConfig()
	if err := a.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if a.verbose {
		cfg.Log.Level = zerolog.LevelDebugValue
	}
	if err := resolveDataDir(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveDataDir places the badger database under ~/.claimvault/data
// unless a directory is configured. Only the memory backend is volatile.
func resolveDataDir(cfg *model.Config) error {
	if cfg.Store.DataDir != "" {
		return nil
	}
	if cfg.Store.Backend != store.BackendBadger && cfg.Store.Backend != "" {
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve data dir: %w (set store.data_dir)", err)
	}
	cfg.Store.DataDir = filepath.Join(home, ".claimvault", "data")
	return nil
}

// setDefaults registers every config key so environment overrides apply
// even when no config file mentions the key
func setDefaults(v *viper.Viper, cfg *model.Config) {
	v.SetDefault("store.backend", cfg.Store.Backend)
	v.SetDefault("store.data_dir", cfg.Store.DataDir)
	v.SetDefault("store.gc", cfg.Store.GC)

	v.SetDefault("ledger.source", cfg.Ledger.Source)
	v.SetDefault("ledger.sequence", cfg.Ledger.Sequence)
	v.SetDefault("ledger.genesis_sequence", cfg.Ledger.GenesisSequence)
	v.SetDefault("ledger.genesis_unix", cfg.Ledger.GenesisUnix)
	v.SetDefault("ledger.close_interval", cfg.Ledger.CloseInterval)

	v.SetDefault("auth.mode", cfg.Auth.Mode)

	v.SetDefault("registry.default_page_size", cfg.Registry.DefaultPageSize)
	v.SetDefault("registry.max_page_size", cfg.Registry.MaxPageSize)

	v.SetDefault("import.workers", cfg.Import.Workers)
	v.SetDefault("import.requests_per_second", cfg.Import.RequestsPerSecond)
	v.SetDefault("import.burst_size", cfg.Import.BurstSize)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("metrics.listen_address", cfg.Metrics.ListenAddress)
}

// session is an open registry with the resources backing it
type session struct {
	cfg      *model.Config
	logger   zerolog.Logger
	store    store.Store
	registry *registry.Registry

	// Set when metrics.listen_address is configured
	metrics       *prometheus.Registry
	metricsServer *http.Server
	metricsAddr   string
}

// openSession loads configuration and opens the configured registry.
// The caller must Close the session.
func (a *app) openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, err := logger.Init(cfg.Log)
	if err != nil {
		return nil, err
	}

	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		return nil, err
	}
	seq, err := ledger.NewSource(cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("ledger source: %w", err)
	}

	sess := &session{cfg: cfg, logger: log}

	// Registerer stays a nil interface when metrics are off
	var promRegistry prometheus.Registerer
	if cfg.Metrics.ListenAddress != "" {
		sess.metrics = prometheus.NewRegistry()
		sess.metrics.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		promRegistry = sess.metrics
	}

	s, err := store.Open(cfg.Store, log, promRegistry)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	sess.store = s

	opts := []registry.OptionFunc{
		registry.WithLogger(log),
		registry.WithPageSizes(cfg.Registry.DefaultPageSize, cfg.Registry.MaxPageSize),
	}
	if promRegistry != nil {
		opts = append(opts, registry.WithPromRegistry(promRegistry))
	}
	sess.registry = registry.New(s, verifier, seq, opts...)

	if sess.metrics != nil {
		if err := sess.serveMetrics(cfg.Metrics.ListenAddress); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	log.Debug().
		Str("backend", cfg.Store.Backend).
		Str("data_dir", cfg.Store.DataDir).
		Str("ledger", cfg.Ledger.Source).
		Str("auth", cfg.Auth.Mode).
		Msg("registry opened")

	return sess, nil
}

// serveMetrics exposes the session registry on addr under /metrics
func (s *session) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	s.metricsAddr = ln.Addr().String()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	s.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info().Str("address", s.metricsAddr).Msg("serving prometheus metrics")
	go func() {
		if err := s.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("metrics listener failed")
		}
	}()
	return nil
}

// Close stops the metrics listener and releases the store
func (s *session) Close() error {
	if s.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("metrics listener shutdown")
		}
	}
	return s.store.Close()
}

// closeSession closes s, keeping the first error in *errp
func closeSession(s *session, errp *error) {
	if err := s.Close(); err != nil && *errp == nil {
		*errp = fmt.Errorf("close store: %w", err)
	}
}

// print writes v to w in the selected output format
func (a *app) print(w io.Writer, v any) error {
	switch a.output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (use yaml or json)", a.output)
	}
}
