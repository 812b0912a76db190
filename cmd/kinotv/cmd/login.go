package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/mmcdole/kinotv/internal/config"
	"github.com/mmcdole/kinotv/internal/mediaserver"
	"github.com/mmcdole/kinotv/internal/tui/styles"
)

// clearSpinnerLine clears the spinner line from the terminal
const clearSpinnerLine = "\r                                    \r"

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to a Jellyfin server",
	Long:  "Prompt for a server URL and credentials, verify them and save the session.",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

func init() {
	loginCmd.Flags().String("server", "", "server URL (prompted when empty)")
	loginCmd.Flags().String("username", "", "username (prompted when empty)")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	serverURL, _ := cmd.Flags().GetString("server")
	for serverURL == "" {
		input, err := prompt(reader, "Enter your Jellyfin server URL (e.g., http://192.168.1.100:8096): ")
		if err != nil {
			return err
		}
		serverURL = input
	}
	serverURL = strings.TrimRight(serverURL, "/")

	info, err := detectServerWithSpinner(serverURL)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Found: %s (Jellyfin %s)\n\n", info.Name, info.Version)

	username, _ := cmd.Flags().GetString("username")
	for username == "" {
		if username, err = prompt(reader, "Username: "); err != nil {
			return err
		}
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	a, err := newApp(serverURL)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	s, err := a.sessions.Login(ctx, serverURL, username, string(password))
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	err = config.SaveServer(viper.GetViper(), config.ServerConfig{
		Type:     config.SourceTypeJellyfin,
		URL:      serverURL,
		ServerID: s.ServerID,
		UserID:   s.UserID,
		Username: s.Username,
	})
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("✓ Signed in as %s\n", s.Username)
	fmt.Println("Run 'kinotv run' to keep suggestions fresh in the background.")
	return nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}

// detectServerWithSpinner detects the server type with a visual spinner
func detectServerWithSpinner(serverURL string) (mediaserver.ServerInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	type result struct {
		info mediaserver.ServerInfo
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		info, err := mediaserver.Detect(ctx, serverURL, logger)
		resultCh <- result{info, err}
	}()

	frame := 0
	fmt.Printf("\r%s Detecting server...", styles.SpinnerFrames[frame])

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case res := <-resultCh:
			fmt.Print(clearSpinnerLine)
			return res.info, res.err

		case <-ticker.C:
			frame++
			fmt.Printf("\r%s Detecting server...", styles.SpinnerFrames[frame%len(styles.SpinnerFrames)])

		case <-ctx.Done():
			fmt.Print(clearSpinnerLine)
			return mediaserver.ServerInfo{}, fmt.Errorf("detection timed out")
		}
	}
}
