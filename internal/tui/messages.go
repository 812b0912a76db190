package tui

import "github.com/mmcdole/kinotv/internal/domain"

// RowUpdateMsg carries the latest Resource of one row
type RowUpdateMsg struct {
	Row      int
	Resource domain.Resource
	Closed   bool // the stream ended; stop listening
}

// TickMsg advances the spinner
type TickMsg struct{}
