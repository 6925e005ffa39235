package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bcwaterways/lakenet/internal/config"
	"github.com/bcwaterways/lakenet/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the final networks table as CSV",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().String("db", "", "override checkpoint database path")
	exportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
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

	networks, err := st.Networks(ctx)
	if err != nil {
		return err
	}
	if len(networks) == 0 {
		return fmt.Errorf("export: no networks table; run `lakenet run` first")
	}

	out := os.Stdout
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("export: create %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	if err := w.Write([]string{"global_network_id", "waterbody_key", "watershed_group", "name", "connection_count"}); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for _, n := range networks {
		record := []string{
			strconv.FormatInt(n.GlobalNetworkID, 10),
			n.WaterbodyKey,
			n.WatershedGroup,
			n.Name,
			strconv.Itoa(n.ConnectionCount),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("export: write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
