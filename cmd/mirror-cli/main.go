// Command mirror-cli harvests a page into a local directory or audits an
// existing harvest, without running the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/use-agent/mirror/app"
	"github.com/use-agent/mirror/config"
	"github.com/use-agent/mirror/models"
	"github.com/use-agent/mirror/quality"
	"github.com/use-agent/mirror/runner"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	verbose  bool
	jsonOut  bool
	cfg      *config.Config
	closeLog func() error
)

var rootCmd = &cobra.Command{
	Use:   "mirror-cli",
	Short: "Mirror a web page for offline use and certify the result",
	Long: `mirror-cli renders a page in a headless browser, downloads every image,
stylesheet, script, font and icon it references, rewrites the markup to the
local copies, and writes a quality certificate next to the result.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		cfg = config.Load()
		cfg.Log.Format = "text"
		if verbose {
			cfg.Log.Level = "debug"
		} else if os.Getenv("MIRROR_LOG_LEVEL") == "" {
			cfg.Log.Level = "warn"
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print the quality report as JSON")
	rootCmd.AddCommand(runCmd, scoreCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// ── run ─────────────────────────────────────────────────────────────

var (
	runOut          string
	runJobID        string
	runWorkers      int
	runTimeout      time.Duration
	runStealth      bool
	runPlaceholders bool
	runRobots       bool
)

var runCmd = &cobra.Command{
	Use:   "run <url>",
	Short: "Harvest a page into <out>/<job-id>",
	Example: `  mirror-cli run https://example.com
  mirror-cli run https://example.com --out ./sites --placeholders --workers 4`,
	Args: cobra.ExactArgs(1),
	RunE: runHarvest,
}

func init() {
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "output root (default $MIRROR_OUTPUT_ROOT or ./downloads)")
	runCmd.Flags().StringVar(&runJobID, "job-id", "", "job directory name (default: random UUID)")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "concurrent resource fetches (1-16)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "render timeout (default 60s)")
	runCmd.Flags().BoolVar(&runStealth, "stealth", false, "start with the stealth browser")
	runCmd.Flags().BoolVar(&runPlaceholders, "placeholders", false, "substitute placeholders for missing images and stylesheets")
	runCmd.Flags().BoolVar(&runRobots, "robots", false, "refuse pages disallowed by robots.txt")
}

func runHarvest(cmd *cobra.Command, args []string) error {
	if runOut != "" {
		cfg.Harvest.OutputRoot = runOut
	}
	if runWorkers > 0 {
		cfg.Harvest.Workers = min(runWorkers, 16)
	}
	logger, closer := config.NewLogger(cfg.Log)
	closeLog = closer

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	res, err := pipeline.Runner.Run(ctx, runner.Request{
		URL:           args[0],
		JobID:         runJobID,
		Timeout:       runTimeout,
		Stealth:       runStealth,
		Placeholders:  runPlaceholders || cfg.Harvest.Placeholders,
		RespectRobots: runRobots || cfg.Harvest.RespectRobots,
	}, func(s models.Stage) {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%3d%%] %s\n", s.Progress(), s)
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(cmd, res)
	}
	fmt.Fprintf(out, "Job:        %s\n", res.JobID)
	fmt.Fprintf(out, "Document:   %s\n", res.DocumentPath)
	fmt.Fprintf(out, "Engine:     %s\n", res.EngineUsed)
	fmt.Fprintf(out, "Resources:  %d resolved, %d unresolved (%d via fallback)\n",
		res.Summary.Resolved, res.Summary.Unresolved, res.Summary.ViaFallback)
	fmt.Fprintf(out, "Fidelity:   %.2f\n\n", res.Fidelity.Similarity)
	fmt.Fprint(out, quality.Markdown(res.Report))
	return nil
}

// ── score ───────────────────────────────────────────────────────────

var scoreCmd = &cobra.Command{
	Use:   "score <dir>",
	Short: "Audit a harvested directory and print its quality certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, _, err := app.Tables(cfg.Harvest)
		if err != nil {
			return err
		}
		report, err := quality.New(list).Score(args[0])
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd, report)
		}
		fmt.Fprint(cmd.OutOrStdout(), quality.Markdown(report))
		return nil
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
