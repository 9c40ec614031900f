package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/brettbedarf/tecnicofs/client"
	"github.com/brettbedarf/tecnicofs/config"
	"github.com/brettbedarf/tecnicofs/filesystem"
	"github.com/brettbedarf/tecnicofs/internal/engine"
	"github.com/brettbedarf/tecnicofs/internal/util"
	"github.com/brettbedarf/tecnicofs/metrics"
	"github.com/brettbedarf/tecnicofs/server"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var errUsage = errors.New("invalid arguments")

func newRootCommand() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "tecnicofs",
		Short:         "tecnicofs is a concurrent in-memory filesystem driven by command scripts or local clients",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: `
  # Run a script with 4 workers and per-node locking, dump the tree to out.txt
  tecnicofs run input.txt out.txt 4 fine

  # Serve clients on a unix datagram socket with 2 readers
  tecnicofs serve 2 /tmp/tecnicofs.sock

  # Replay a script against a running server
  tecnicofs client /tmp/tecnicofs.sock input.txt
`,
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "path to a YAML or JSON config file")
	pf.IntP("verbose", "v", config.InfoVerbose, "log verbosity between 1 (error) and 5 (trace)")
	pf.Int("queue-size", config.DefaultQueueSize, "command queue capacity")
	pf.String("queue-mode", string(config.DefaultQueueMode), "command queue variant (blocking, backlog)")
	pf.Int("backlog-size", config.DefaultBacklogSize, "backlog capacity, the most commands a script may hold in backlog mode")
	pf.Int("table-size", config.DefaultNodeTableSize, "node table capacity, root included")
	pf.String("metrics-addr", "", "Prometheus listen address (empty disables)")
	pf.Int("max-message-size", config.DefaultMaxMessageSize, "largest accepted client request in bytes")

	v.SetEnvPrefix("TECNICOFS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	bindFlags(v, pf)

	root.AddCommand(newRunCommand(v), newServeCommand(v), newClientCommand(v))
	return root
}

// bindFlags binds every flag in fs to the viper key of the same name
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil {
			panic(err)
		}
	})
}

// loadConfig layers defaults, the config file, TECNICOFS_* env and flags, in
// increasing priority, then initializes logging.
func loadConfig(v *viper.Viper, override *config.ConfigOverride) (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if path := strings.TrimSpace(v.GetString("config")); path != "" {
		fileOverride, err := config.LoadConfigOverrideFile(path)
		if err != nil {
			return nil, fmt.Errorf("config file %q: %w", path, err)
		}
		cfg.Merge(fileOverride)
	}
	cfg.Merge(overrideFromViper(v))
	if override != nil {
		cfg.Merge(override)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	util.InitializeLogger(cfg.LogLvl)
	return cfg, nil
}

func overrideFromViper(v *viper.Viper) *config.ConfigOverride {
	o := &config.ConfigOverride{}
	if v.IsSet("verbose") {
		o.LogLvl = util.Pointer(v.GetInt("verbose"))
	}
	if v.IsSet("queue-size") {
		o.QueueSize = util.Pointer(v.GetInt("queue-size"))
	}
	if v.IsSet("queue-mode") {
		o.QueueMode = util.Pointer(v.GetString("queue-mode"))
	}
	if v.IsSet("backlog-size") {
		o.BacklogSize = util.Pointer(v.GetInt("backlog-size"))
	}
	if v.IsSet("table-size") {
		o.NodeTableSize = util.Pointer(v.GetInt("table-size"))
	}
	if v.IsSet("metrics-addr") {
		o.MetricsAddr = util.Pointer(v.GetString("metrics-addr"))
	}
	if v.IsSet("max-message-size") {
		o.MaxMessageSize = util.Pointer(v.GetInt("max-message-size"))
	}
	return o
}

// parseThreads rejects non-positive thread counts with the usage text
func parseThreads(cmd *cobra.Command, arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		_ = cmd.Usage()
		return 0, fmt.Errorf("%w: thread count must be a positive integer, got %q", errUsage, arg)
	}
	return n, nil
}

// startMetrics enables the registry and serves it until ctx ends. It returns
// no-op metrics when no address is configured.
func startMetrics(ctx context.Context, cfg *config.Config) metrics.EngineMetrics {
	if cfg.MetricsAddr == "" {
		return metrics.NewNoopEngineMetrics()
	}
	logger := util.GetLogger("main")

	metrics.InitRegistry()
	m := metrics.NewEngineMetrics()
	srv := metrics.NewServer(cfg.MetricsAddr)
	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
	return m
}

func newRunCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run <input-script> <output-dump> <thread-count> [<strategy>]",
		Short: "Execute a command script with a worker pool and dump the final tree",
		Long: `Execute a command script with a worker pool and dump the final tree.

Strategies: coarse (alias mutex) serializes every command behind one lock;
fine (alias rwlock) locks individual nodes along each path. Default fine.`,
		Args: cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			threads, err := parseThreads(cmd, args[2])
			if err != nil {
				return err
			}
			override := &config.ConfigOverride{Threads: &threads}
			if len(args) == 4 {
				override.Strategy = &args[3]
			}
			cfg, err := loadConfig(v, override)
			if err != nil {
				return err
			}
			logger := util.GetLogger("main")

			in, err := os.Open(args[0])
			if err != nil {
				logger.Fatal().Err(err).Str("input", args[0]).Msg("Failed to open input script")
			}
			defer in.Close()
			out, err := os.Create(args[1])
			if err != nil {
				logger.Fatal().Err(err).Str("output", args[1]).Msg("Failed to create output file")
			}
			defer out.Close()

			batch, err := engine.NewBatch(cfg, engine.DefaultRegistry(),
				engine.WithMetrics(startMetrics(cmd.Context(), cfg)))
			if err != nil {
				return err
			}

			report, err := batch.Run(in, out)
			if err != nil {
				// An aborted run leaves no dump behind
				_ = out.Close()
				if rmErr := os.Remove(args[1]); rmErr != nil {
					logger.Warn().Err(rmErr).Str("output", args[1]).Msg("Failed to remove output file")
				}
				logger.Fatal().Err(err).Msg("Run aborted")
			}
			if err := out.Close(); err != nil {
				logger.Fatal().Err(err).Str("output", args[1]).Msg("Failed to write output file")
			}
			fmt.Fprintln(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func newServeCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve <thread-count> <socket-path>",
		Short: "Serve the tree to local clients over a unix datagram socket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			threads, err := parseThreads(cmd, args[0])
			if err != nil {
				return err
			}
			coarse := string(config.StrategyCoarse)
			cfg, err := loadConfig(v, &config.ConfigOverride{
				Threads:    &threads,
				Strategy:   &coarse,
				SocketPath: &args[1],
			})
			if err != nil {
				return err
			}
			logger := util.GetLogger("main")
			ctx := cmd.Context()

			srv, err := server.New(cfg, filesystem.NewFS(cfg), server.WithMetrics(startMetrics(ctx, cfg)))
			if err != nil {
				return err
			}
			if err := srv.Listen(); err != nil {
				logger.Fatal().Err(err).Msg("Failed to start server")
			}

			go func() {
				<-ctx.Done()
				logger.Info().Msg("Shutting down")
				if err := srv.Close(); err != nil {
					logger.Error().Err(err).Msg("Failed to close server")
				}
			}()

			logger.Info().Int("threads", threads).Str("socket", srv.Addr()).Msg("TecnicoFS server ready")
			return srv.Serve()
		},
	}
}

func newClientCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "client <socket-path> <script>",
		Short: "Replay a script against a running server and print each reply",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, nil)
			if err != nil {
				return err
			}
			logger := util.GetLogger("main")

			script, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("failed to open script: %w", err)
			}
			defer script.Close()

			c, err := client.Mount(args[0], client.WithMaxMessageSize(cfg.MaxMessageSize))
			if err != nil {
				return err
			}
			defer func() {
				if uerr := c.Unmount(); uerr != nil {
					logger.Warn().Err(uerr).Msg("Unmount failed")
				}
			}()

			n, err := client.Replay(c, script, cmd.OutOrStdout())
			logger.Debug().Int("commands", n).Msg("Replay finished")
			return err
		},
	}
}
