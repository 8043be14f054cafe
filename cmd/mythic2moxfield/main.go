package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aluiziolira/mythic-to-moxfield/config"
	"github.com/aluiziolira/mythic-to-moxfield/lookup"
	"github.com/aluiziolira/mythic-to-moxfield/models"
	"github.com/aluiziolira/mythic-to-moxfield/pipeline"
)

const envPrefix = "MYTHIC2MOXFIELD"

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "mythic2moxfield",
		Short: "Convert a Mythic Tools collection export into a Moxfield import",
		Long: `mythic2moxfield reads a Mythic Tools CSV export, resolves every printed
card name to its English name through the Scryfall API and writes a CSV that
Moxfield can import. Cards whose name cannot be resolved are listed at the end.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := buildConfig(v)

			logger, level := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			logger = logger.With(slog.String("run_id", uuid.NewString()))
			slog.SetDefault(logger)
			slog.SetLogLoggerLevel(level.Level())

			if err := cfg.Validate(); err != nil {
				slog.Error("invalid configuration", slog.Any("error", err))
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "config file (default: ./mythic2moxfield.yaml)")
	flags.StringP("input", "i", defaults.InputFile, "Mythic Tools export to read")
	flags.StringP("output", "o", defaults.OutputFile, "Moxfield CSV to write (overwritten)")
	flags.String("base-url", defaults.BaseURL, "Scryfall API base URL")
	flags.Duration("delay", defaults.Delay, "Pause after every lookup")
	flags.Duration("timeout", defaults.Timeout, "Lookup request timeout (0 waits indefinitely)")
	flags.String("user-agent", defaults.UserAgent, "User-Agent sent to the lookup service")
	flags.String("metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flags.BoolP("verbose", "v", defaults.Verbose, "Enable verbose logging")

	return cmd
}

func initConfig(v *viper.Viper, cmd *cobra.Command) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}

	v.SetConfigName("mythic2moxfield")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func buildConfig(v *viper.Viper) *config.Config {
	cfg := config.DefaultConfig()
	cfg.InputFile = v.GetString("input")
	cfg.OutputFile = v.GetString("output")
	cfg.BaseURL = v.GetString("base-url")
	cfg.Delay = v.GetDuration("delay")
	cfg.Timeout = v.GetDuration("timeout")
	cfg.UserAgent = v.GetString("user-agent")
	cfg.MetricsAddr = v.GetString("metrics-addr")
	cfg.Verbose = v.GetBool("verbose")
	return cfg
}

func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	client, err := lookup.NewClient(cfg)
	if err != nil {
		slog.Error("initialising lookup client", slog.Any("error", err))
		return err
	}
	return convert(ctx, cfg, client, client.Metrics, out)
}

func convert(ctx context.Context, cfg *config.Config, resolver pipeline.Resolver, metrics *lookup.Metrics, out io.Writer) error {
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	slog.Info("starting conversion",
		slog.String("input", cfg.InputFile),
		slog.String("output", cfg.OutputFile),
		slog.Duration("delay", cfg.Delay),
	)

	p := pipeline.NewPipeline(resolver, cfg.Delay)
	result, err := p.Convert(ctx, cfg.InputFile, cfg.OutputFile)
	if err != nil {
		slog.Error("conversion failed", slog.Any("error", err))
		return err
	}

	slog.Info("conversion complete",
		slog.Int("processed", result.Processed),
		slog.Int("written", len(result.Records)),
		slog.Int("unresolved", len(result.Unresolved)),
		slog.Duration("duration", result.EndTime.Sub(result.StartTime)),
	)
	printSummary(out, result, cfg.OutputFile)
	return nil
}

func printSummary(out io.Writer, result *models.ConversionResult, outputFile string) {
	fmt.Fprintf(out, "Output file: %s\n", outputFile)

	if len(result.Unresolved) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Unresolved cards (%d):\n", len(result.Unresolved))
	for _, name := range result.Unresolved {
		fmt.Fprintf(out, " - %s\n", name)
	}
}

func newLogger(w io.Writer, verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
