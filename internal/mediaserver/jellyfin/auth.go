package jellyfin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/mmcdole/kinotv/internal/domain"
)

const authTimeout = 30 * time.Second

// Authenticator signs users in with a username and password.
type Authenticator struct {
	logger     *slog.Logger
	httpClient *http.Client
}

// NewAuthenticator creates a Jellyfin username/password authenticator
func NewAuthenticator(logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		logger: logger,
		httpClient: &http.Client{
			Timeout: authTimeout,
		},
	}
}

// Authenticate exchanges credentials for an access token. The result carries
// the server id so sessions can be keyed by server.
func (a *Authenticator) Authenticate(ctx context.Context, serverURL, username, password string) (*domain.AuthResult, error) {
	serverURL = strings.TrimRight(serverURL, "/")

	bodyBytes, err := json.Marshal(map[string]string{
		"Username": username,
		"Pw":       password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/Users/AuthenticateByName", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Emby-Authorization", buildAuthHeader("")) // No token yet

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Error("jellyfin auth request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, domain.ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		a.logger.Error("jellyfin auth error", "status", resp.StatusCode, "body", string(respBody))
		return nil, fmt.Errorf("authentication failed with status %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return nil, fmt.Errorf("failed to parse auth response: %w", err)
	}

	serverID := authResp.ServerID
	if serverID == "" {
		serverID = authResp.User.ServerID
	}

	return &domain.AuthResult{
		Token:    authResp.AccessToken,
		UserID:   authResp.User.ID,
		Username: authResp.User.Name,
		ServerID: serverID,
	}, nil
}

// FetchSystemInfo reads the unauthenticated /System/Info/Public endpoint and
// verifies the server is Jellyfin.
func (a *Authenticator) FetchSystemInfo(ctx context.Context, serverURL string) (*SystemInfo, error) {
	serverURL = strings.TrimRight(serverURL, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/System/Info/Public", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var info SystemInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if !strings.Contains(strings.ToLower(info.ProductName), "jellyfin") {
		return nil, fmt.Errorf("not a Jellyfin server (ProductName: %s)", info.ProductName)
	}
	return &info, nil
}

// buildAuthHeader constructs the X-Emby-Authorization header
func buildAuthHeader(token string) string {
	parts := []string{
		`MediaBrowser Client="KinoTV"`,
		`Device="CLI"`,
		`DeviceId="kinotv-client"`,
		`Version="1.0.0"`,
	}

	if token != "" {
		parts = append(parts, fmt.Sprintf(`Token="%s"`, token))
	}

	return strings.Join(parts, ", ")
}
