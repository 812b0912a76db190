package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mmcdole/kinotv/internal/config"
	"github.com/mmcdole/kinotv/internal/domain"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear cached suggestions",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	if err := requireConfigured(); err != nil {
		return err
	}

	a, err := newApp(cfg.Server.URL)
	if err != nil {
		return err
	}
	defer a.Close()

	// Credentials may already be gone; the config is still cleared
	if _, err := a.sessions.RestoreSession(cfg.Server.ServerID, cfg.Server.UserID); err != nil && !errors.Is(err, domain.ErrNoSession) {
		return err
	}
	if err := a.sessions.Logout(); err != nil {
		return err
	}
	if err := a.cache.Clear(); err != nil {
		return err
	}
	if err := config.ClearServer(viper.GetViper()); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println("✓ Signed out")
	return nil
}
