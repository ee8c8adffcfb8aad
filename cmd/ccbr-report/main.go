package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ccbr/server-reports/internal/config"
	"github.com/ccbr/server-reports/internal/report"
	"github.com/ccbr/server-reports/internal/version"
)

var (
	cfgFile string
	verbose int
)

var rootCmd = &cobra.Command{
	Use:   "ccbr-report",
	Short: "Server health reporting agent",
	Long: `ccbr-report collects hardware and filesystem health from a server
(RAID topology, stale NFS mounts, disk usage, SMART data) and posts the
results to a central collection endpoint.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Run the enabled checks and post the results",
	Run: func(cmd *cobra.Command, args []string) {
		offline, _ := cmd.Flags().GetBool("offline")
		echo, _ := cmd.Flags().GetBool("print")

		cfg := loadConfig()
		reports := buildReports(cfg)
		if len(reports) == 0 {
			log.Fatal().Msg("no checks enabled")
		}

		var collected []report.Report
		for _, r := range reports {
			if err := r.Collect(); err != nil {
				log.Error().Err(err).Str("report", r.Name()).Msg("check failed")
				continue
			}
			collected = append(collected, r)
		}
		if len(collected) == 0 {
			log.Fatal().Msg("every check failed")
		}

		if offline || echo || cfg.PostURL == "" {
			report.RenderAll(os.Stdout, collected)
		}
		if offline || cfg.PostURL == "" {
			if cfg.PostURL == "" && !offline {
				log.Warn().Msg("no post_url configured, not delivering")
			}
			return
		}

		env := report.NewEnvelope(uuid.NewString(), cfg.ReportHostname(), collected)
		if err := report.Post(cfg.PostURL, env); err != nil {
			log.Fatal().Err(err).Msg("delivery failed")
		}
	},
}

// loadConfig exits on a malformed file; a missing one just means
// defaults.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	level := zerolog.InfoLevel
	switch {
	case verbose >= 2:
		level = zerolog.TraceLevel
	case verbose == 1:
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/ccbr/report.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase log verbosity")

	sendCmd.Flags().Bool("offline", false, "render to stdout instead of posting")
	sendCmd.Flags().Bool("print", false, "render to stdout in addition to posting")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(raidCmd)
	rootCmd.AddCommand(nfsCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(smartCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
