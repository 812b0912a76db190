// Package mediaserver identifies the media server behind a URL.
package mediaserver

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/mmcdole/kinotv/internal/config"
	"github.com/mmcdole/kinotv/internal/mediaserver/jellyfin"
)

const detectTimeout = 10 * time.Second

// ErrUnsupported is returned for a recognized server kinotv cannot talk to.
var ErrUnsupported = errors.New("unsupported media server")

// ServerInfo describes a detected server
type ServerInfo struct {
	Type    config.SourceType
	Name    string
	Version string
	ID      string
}

// plexIdentity represents the Plex /identity response
type plexIdentity struct {
	XMLName           xml.Name `xml:"MediaContainer"`
	MachineIdentifier string   `xml:"machineIdentifier,attr"`
	Version           string   `xml:"version,attr"`
}

// Detect probes serverURL. A Jellyfin server yields its info; a Plex server
// yields its info together with ErrUnsupported.
func Detect(ctx context.Context, serverURL string, logger *slog.Logger) (ServerInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	serverURL = strings.TrimRight(serverURL, "/")

	// Try Jellyfin first (/System/Info/Public is unauthenticated)
	info, jellyfinErr := jellyfin.NewAuthenticator(logger).FetchSystemInfo(ctx, serverURL)
	if jellyfinErr == nil {
		return ServerInfo{
			Type:    config.SourceTypeJellyfin,
			Name:    info.ServerName,
			Version: info.Version,
			ID:      info.ID,
		}, nil
	}

	client := &http.Client{Timeout: detectTimeout}
	plexInfo, plexErr := tryPlex(ctx, client, serverURL)
	if plexErr == nil {
		logger.Info("detected plex server", "url", serverURL, "version", plexInfo.Version)
		return plexInfo, fmt.Errorf("%w: Plex (only Jellyfin is supported)", ErrUnsupported)
	}

	return ServerInfo{}, fmt.Errorf("could not detect server type: tried Jellyfin (%v), Plex (%v)", jellyfinErr, plexErr)
}

// tryPlex attempts to detect a Plex server
func tryPlex(ctx context.Context, client *http.Client, serverURL string) (ServerInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/identity", nil)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ServerInfo{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("failed to read response: %w", err)
	}

	// Plex answers in XML unless asked for JSON
	var identity plexIdentity
	if err := xml.Unmarshal(body, &identity); err == nil && identity.MachineIdentifier != "" {
		return ServerInfo{Type: config.SourceTypePlex, Version: identity.Version, ID: identity.MachineIdentifier}, nil
	}

	var jsonIdentity struct {
		MediaContainer struct {
			MachineIdentifier string `json:"machineIdentifier"`
			Version           string `json:"version"`
		} `json:"MediaContainer"`
	}
	if err := json.Unmarshal(body, &jsonIdentity); err == nil && jsonIdentity.MediaContainer.MachineIdentifier != "" {
		mc := jsonIdentity.MediaContainer
		return ServerInfo{Type: config.SourceTypePlex, Version: mc.Version, ID: mc.MachineIdentifier}, nil
	}

	return ServerInfo{}, fmt.Errorf("not a Plex server")
}
