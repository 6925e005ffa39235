package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bcwaterways/lakenet/internal/ansi"
	"github.com/bcwaterways/lakenet/internal/config"
	"github.com/bcwaterways/lakenet/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint progress",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().String("db", "", "override checkpoint database path")
	statusCmd.Flags().Bool("watch", false, "re-render when the checkpoint changes")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.DBPath = v
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := printStatus(ctx, st); err != nil {
		return err
	}

	watch, _ := cmd.Flags().GetBool("watch")
	if !watch {
		return nil
	}

	w, err := store.NewWatcher(cfg.DBPath)
	if err != nil {
		return err
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Changes:
			if err := printStatus(ctx, st); err != nil {
				return err
			}
		}
	}
}

func printStatus(ctx context.Context, st *store.SQLiteStore) error {
	completed, err := st.RegionsCompleted(ctx)
	if err != nil {
		return err
	}
	rows, err := st.LakeRows(ctx)
	if err != nil {
		return err
	}
	frags, err := st.Fragments(ctx)
	if err != nil {
		return err
	}
	networks, err := st.Networks(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%s %d regions completed\n", ansi.Paint(ansi.Bold, "checkpoint:"), completed)
	fmt.Printf("  %d lake rows, %d boundary fragments\n", len(rows), len(frags))
	if len(networks) > 0 {
		fmt.Printf("  %s %d network rows\n", ansi.Paint(ansi.Green, "reconciled:"), len(networks))
	} else {
		fmt.Printf("  %s\n", ansi.Paint(ansi.Dim, "not yet reconciled"))
	}
	return nil
}
