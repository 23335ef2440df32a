package main

import (
	"Go2FctSpectra/internal/ai"
	"Go2FctSpectra/internal/api"
	"Go2FctSpectra/internal/config"
	"Go2FctSpectra/internal/engine/manager"
	"Go2FctSpectra/internal/model"
	"Go2FctSpectra/internal/query"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0"

var errFilesFailed = errors.New("some input files could not be summarized")

var cli = &cobra.Command{
	Use:           "fct-parser [flags] <glob>",
	Short:         "Summarize flow completion times from FlowMonitor XML files.",
	Long:          "Reads every FlowMonitor XML file matching <glob>, prints per-file and combined flow completion time statistics, and hands the report to the configured writers.",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		report, err := run(ctx, cfg, args[0])
		if err != nil {
			return err
		}
		return checkFailures(report)
	},
}

var cliServe = &cobra.Command{
	Use:   "serve <glob>",
	Short: "Summarize the files once and serve the report over HTTP.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		report, err := run(ctx, cfg, args[0])
		if err != nil {
			return err
		}
		if err := checkFailures(report); err != nil {
			log.Warn(err)
		}

		var analyzer api.StreamAnalyzer
		if cfg.AI.APIKey != "" {
			a, err := ai.NewReportAnalyzer(&cfg.AI)
			if err != nil {
				return err
			}
			analyzer = a
		} else {
			log.Info("No AI api key configured, analysis endpoint disabled.")
		}

		return api.Serve(ctx, cfg.API.HttpListenAddr, api.NewRouter(report, analyzer))
	},
}

var cliHistory = &cobra.Command{
	Use:   "history [path]",
	Short: "List summaries stored by the clickhouse writer, or the flows of one file.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		q, err := query.NewClickHouseQuerier(cfg.ClickHouse)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			flows, err := q.TraceFlows(cmd.Context(), query.TraceRequest{Path: args[0]})
			if err != nil {
				return err
			}
			for _, f := range flows {
				fmt.Printf("%s  flow %-6d %-6s rx=%d fct=%.6f\n", f.Timestamp.Format(time.DateTime), f.FlowID, f.SizeClass, f.RxBytes, f.FCT)
			}
			return nil
		}

		summaries, err := q.FileHistory(cmd.Context(), query.HistoryRequest{
			PathLike: viper.GetString("path_like"),
			Limit:    viper.GetInt("limit"),
		})
		if err != nil {
			return err
		}
		for _, s := range summaries {
			fmt.Printf("%s  %s  flows=%d meanFCT=%.6f fct99=%.6f smallFCT99=%.6f loss=%.4f\n",
				s.Timestamp.Format(time.DateTime), s.Path, s.ValidFlows, s.MeanFCT, s.FCT99,
				model.ValueOr(s.SmallFCT99, model.NoData), s.LossRate)
		}
		return nil
	},
}

var cliVersion = &cobra.Command{
	Use:   "version",
	Short: "Print the version.",
	Long:  "The version of this program",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fct-parser %s\n", version)
	},
}

func init() {
	cli.AddCommand(cliServe)
	cli.AddCommand(cliHistory)
	cli.AddCommand(cliVersion)

	historyFlags := cliHistory.Flags()

	historyFlags.String("path-like", "", "SQL LIKE pattern on the stored file path")
	viper.BindPFlag("path_like", historyFlags.Lookup("path-like"))

	historyFlags.Int("limit", 50, "Maximum number of summaries to list")
	viper.BindPFlag("limit", historyFlags.Lookup("limit"))

	flags := cli.PersistentFlags()

	flags.StringP("config", "c", "", "YAML configuration file")
	viper.BindPFlag("config", flags.Lookup("config"))

	flags.BoolP("flows", "f", false, "Print every valid flow")
	viper.BindPFlag("flows", flags.Lookup("flows"))

	flags.Bool("strict", false, "Abort on the first file that fails")
	viper.BindPFlag("strict", flags.Lookup("strict"))

	flags.BoolP("verbose", "v", false, "Enable verbose")
	viper.BindPFlag("verbose", flags.Lookup("verbose"))

	flags.String("listen", "", "HTTP listen address for serve")
	viper.BindPFlag("listen", flags.Lookup("listen"))
}

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fct-parser: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file if one is given and applies the flag and
// environment overrides on top. FCT_STRICT=true works like --strict.
func loadConfig() (*config.Config, error) {
	viper.SetEnvPrefix("fct")
	viper.AutomaticEnv()

	cfg := config.Default()
	if path := viper.GetString("config"); path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	if viper.GetBool("verbose") {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stderr)

	if viper.GetBool("strict") {
		cfg.Strict = true
	}
	if viper.GetBool("flows") {
		for i := range cfg.Writers {
			if cfg.Writers[i].Type == "text" {
				cfg.Writers[i].Flows = true
			}
		}
	}
	if addr := viper.GetString("listen"); addr != "" {
		cfg.API.HttpListenAddr = addr
	}

	log.Debugf("Config: %+v", cfg.Redacted())
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, pattern string) (*model.Report, error) {
	m, err := manager.NewManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create manager: %w", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Errorf("Failed to close writers: %v", err)
		}
	}()

	return m.Run(ctx, pattern)
}

func checkFailures(report *model.Report) error {
	if len(report.Failures) == 0 {
		return nil
	}
	for _, f := range report.Failures {
		fmt.Fprintf(os.Stderr, "%s: %v\n", f.Path, f.Err)
	}
	return errFilesFailed
}
