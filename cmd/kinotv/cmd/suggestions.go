package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mmcdole/kinotv/internal/domain"
	"github.com/mmcdole/kinotv/internal/tui"
)

var suggestionsCmd = &cobra.Command{
	Use:   "suggestions",
	Short: "Show suggestions for every library",
	Long: "Open a live view of each library's suggestions, refreshing in the background.\n" +
		"With --plain, print what the cache holds now and exit.",
	Args: cobra.NoArgs,
	RunE: runSuggestions,
}

func init() {
	suggestionsCmd.Flags().Bool("plain", false, "print one snapshot instead of the live view")
	rootCmd.AddCommand(suggestionsCmd)
}

func runSuggestions(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, s, err := openConfigured()
	if err != nil {
		return err
	}
	defer a.Close()

	client, err := a.sessions.Client(s.ServerID, s.UserID)
	if err != nil {
		return err
	}
	libraries, err := client.GetLibraryViews(ctx)
	if err != nil {
		return fmt.Errorf("failed to load libraries: %w", err)
	}

	model := tui.NewModel(ctx, a.presenter(), libraries)

	if plain, _ := cmd.Flags().GetBool("plain"); plain {
		fmt.Print(tui.Snapshot(firstResources(model.Rows, 30*time.Second)))
		return nil
	}

	if err := a.jobs.Start(ctx); err != nil {
		return err
	}
	go a.scheduler().Run(ctx)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// firstResources waits for the first Resource of every row.
func firstResources(rows []tui.Row, timeout time.Duration) []tui.Row {
	deadline := time.After(timeout)
	out := make([]tui.Row, len(rows))
	for i, row := range rows {
		out[i] = row
		select {
		case r, ok := <-row.Stream():
			if ok {
				out[i].Resource = r
				out[i].Received = true
			}
		case <-deadline:
			out[i].Resource = domain.EmptyResource()
		}
	}
	return out
}
