package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmcdole/kinotv/internal/domain"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild suggestions once, now",
	Args:  cobra.NoArgs,
	RunE:  runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, s, err := openConfigured()
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.builder.Run(cmd.Context(), s.ServerID, s.UserID)
	switch result {
	case domain.WorkSuccess:
		fmt.Println("✓ Suggestions refreshed")
		return nil
	case domain.WorkRetry:
		return fmt.Errorf("refresh incomplete; the server could not be reached")
	default:
		return fmt.Errorf("refresh failed; see the log for details")
	}
}
