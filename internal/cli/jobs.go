package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewDrawCmd draws prize contest winners, one contest or every active contest of a month.
func NewDrawCmd(configPath *string) *cobra.Command {
	var contestID, month string
	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Draw prize contest winners",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			svc, err := buildServices(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if contestID != "" {
				result, err := svc.contests.DrawWinner(cmd.Context(), contestID)
				if err != nil {
					return err
				}
				return enc.Encode(result)
			}
			if month == "" {
				month = time.Now().UTC().Format("2006-01")
			}
			if _, err := time.Parse("2006-01", month); err != nil {
				return fmt.Errorf("invalid --month %q, want YYYY-MM", month)
			}
			reports, err := svc.contests.DrawMonth(cmd.Context(), month)
			if err != nil {
				return err
			}
			return enc.Encode(reports)
		},
	}
	cmd.Flags().StringVar(&contestID, "contest", "", "draw a single contest by id")
	cmd.Flags().StringVar(&month, "month", "", "draw every active contest of a month (YYYY-MM, default current)")
	return cmd
}

// NewSweepCmd finalises expired sessions once, for running from cron instead of the server loop.
func NewSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Finish attempts abandoned past their deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			svc, err := buildServices(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			n, err := svc.exams.FinalizeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "finalised %d sessions\n", n)
			return nil
		},
	}
}
