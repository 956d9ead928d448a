package cmd

import (
	"fmt"
	"github.com/litetable/litetable-filter/internal/fixtures"
	httpserver "github.com/litetable/litetable-filter/internal/server/http"
	"github.com/litetable/litetable-filter/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"time"
)

func newSeedCmd(v *viper.Viper) *cobra.Command {
	var (
		serverURL string
		now       string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write the phone dataset",
		Long: `Write the phone dataset: five phone rows in the cell_plan and stats_summary families,
stamped at --now and one hour before it.

Without --url the dataset is written straight into the data directory, which must not be in
use by a running server.

Examples:
  litetable-filter seed
  litetable-filter seed --now 2019-05-01T12:00:00Z
  litetable-filter seed --url http://localhost:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			clock, err := parseClock(now)
			if err != nil {
				return err
			}
			batch := fixtures.Batch(clock)

			if serverURL != "" {
				client := httpserver.NewClient(serverURL)
				if _, err := client.CreateFamilies(cmd.Context(), fixtures.Families()...); err != nil {
					return fmt.Errorf("create families: %w", err)
				}
				resp, err := client.Mutate(cmd.Context(), batch)
				if err != nil {
					return fmt.Errorf("mutate: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d cells in batch %s\n", resp.Cells, resp.BatchID)
				return nil
			}

			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			return withStore(cfg, func(store storage.RowStore) error {
				if err := store.CreateFamilies(fixtures.Families()...); err != nil {
					return fmt.Errorf("create families: %w", err)
				}
				if err := store.ApplyMutations(cmd.Context(), batch); err != nil {
					return fmt.Errorf("mutate: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d cells in batch %s\n", len(batch.Entries), batch.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", "", "HTTP address of a running server, e.g. http://localhost:8080")
	cmd.Flags().StringVar(&now, "now", "", "dataset time as RFC 3339 (default current time)")
	return cmd
}

// parseClock builds the dataset clock from an RFC 3339 time, or from the current time when s
// is empty.
func parseClock(s string) (fixtures.Clock, error) {
	if s == "" {
		return fixtures.NewClock(time.Now()), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fixtures.Clock{}, fmt.Errorf("invalid --now %q: %w", s, err)
	}
	return fixtures.NewClock(t), nil
}
