package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bcwaterways/lakenet/internal/ansi"
	"github.com/bcwaterways/lakenet/internal/config"
	"github.com/bcwaterways/lakenet/internal/geo"
	"github.com/bcwaterways/lakenet/internal/pipeline"
	"github.com/bcwaterways/lakenet/internal/provider"
	"github.com/bcwaterways/lakenet/internal/region"
	"github.com/bcwaterways/lakenet/internal/report"
	"github.com/bcwaterways/lakenet/internal/store"
	"github.com/bcwaterways/lakenet/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process remaining regions and reconcile the global networks",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().Int("start-region", -1, "index of the first region to process (default: resume point)")
	runCmd.Flags().Int("workers", 0, "override concurrent region workers")
	runCmd.Flags().String("db", "", "override checkpoint database path")
	runCmd.Flags().String("source", "", "override feature database path")
	runCmd.Flags().String("telemetry", "", "override telemetry JSONL path")
	runCmd.Flags().String("report", "", "override run report path")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyRunOverrides(cmd, &cfg)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eng := geo.NewGEOSEngine()

	source, err := provider.OpenSQLiteSource(ctx, cfg.SourcePath, eng)
	if err != nil {
		return err
	}
	defer source.Close()

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	var emitter *telemetry.Emitter
	if cfg.TelemetryPath != "" {
		emitter, err = telemetry.NewEmitter(cfg.TelemetryPath)
		if err != nil {
			return err
		}
		defer emitter.Close()
	}

	p := &pipeline.Pipeline{
		Source:  source,
		Engine:  eng,
		Store:   st,
		Workers: cfg.Workers,
		Tolerances: region.Tolerances{
			LakeBuffer:   cfg.LakeBuffer,
			RiverBuffer:  cfg.RiverBuffer,
			BoundaryBand: cfg.BoundaryBand,
			MinPartArea:  cfg.MinPartArea,
		},
		OnProgress: func(pr pipeline.Progress) { printProgress(pr, cfg.Verbose) },
		Telemetry:  emitter,
	}

	startRegion, _ := cmd.Flags().GetInt("start-region")
	summary, err := p.Run(ctx, startRegion)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr)
	printSummary(summary)

	if cfg.ReportPath != "" {
		if err := report.Save(cfg.ReportPath, summary); err != nil {
			return err
		}
	}
	return nil
}

func applyRunOverrides(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		cfg.Workers = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.DBPath = v
	}
	if v, _ := cmd.Flags().GetString("source"); v != "" {
		cfg.SourcePath = v
	}
	if v, _ := cmd.Flags().GetString("telemetry"); v != "" {
		cfg.TelemetryPath = v
	}
	if v, _ := cmd.Flags().GetString("report"); v != "" {
		cfg.ReportPath = v
	}
	if v, _ := rootCmd.Flags().GetBool("verbose"); v {
		cfg.Verbose = true
	}
}

// printProgress renders one region per line in verbose mode, or a single
// in-place line otherwise.
func printProgress(pr pipeline.Progress, verbose bool) {
	line := fmt.Sprintf("region %d  %s  %d lakes, %d fragments  %s",
		pr.RegionID,
		ansi.Paint(ansi.Dim, fmt.Sprintf("(%d/%d)", pr.Index+1, pr.Total)),
		pr.Lakes, pr.Fragments,
		ansi.Paint(ansi.Dim, pr.Elapsed.Round(time.Millisecond).String()))
	if verbose {
		fmt.Fprintln(os.Stderr, ansi.Paint(ansi.Green, "✓ ")+line)
		return
	}
	fmt.Fprintf(os.Stderr, "\r%s%s", ansi.ClearLine, line)
}

func printSummary(s *report.Summary) {
	fmt.Fprintf(os.Stderr, ansi.Bold+"run complete"+ansi.Reset+"  %d/%d regions (%d resumed)\n",
		s.RegionsTotal, s.RegionsTotal, s.RegionsResumed)
	fmt.Fprintf(os.Stderr, "  %d lake rows, %d fragments, %d components → %d network rows\n",
		s.LakeRows, s.Fragments, s.GlobalComponents, s.Networks)
}
