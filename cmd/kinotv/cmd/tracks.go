package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmcdole/kinotv/internal/domain"
	"github.com/mmcdole/kinotv/internal/trackselect"
)

var tracksCmd = &cobra.Command{
	Use:   "tracks <itemID>",
	Short: "Show which audio and subtitle tracks would play",
	Args:  cobra.ExactArgs(1),
	RunE:  runTracks,
}

func init() {
	rootCmd.AddCommand(tracksCmd)
}

func runTracks(cmd *cobra.Command, args []string) error {
	a, s, err := openConfigured()
	if err != nil {
		return err
	}
	defer a.Close()

	client, err := a.sessions.Client(s.ServerID, s.UserID)
	if err != nil {
		return err
	}
	item, err := client.GetItem(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	sel := trackselect.Select(item.Streams, trackselect.Prefs{
		AudioLanguage:    cfg.Playback.AudioLanguage,
		SubtitleLanguage: cfg.Playback.SubtitleLanguage,
		SubtitleMode:     trackselect.Mode(cfg.Playback.SubtitleMode),
	})

	fmt.Printf("%s (subtitle mode: %s)\n", item.Title, cfg.Playback.SubtitleMode)
	for _, stream := range item.Streams {
		if stream.Type == domain.StreamVideo {
			continue
		}
		marker := " "
		if (stream.Type == domain.StreamAudio && stream.Index == sel.Audio) ||
			(stream.Type == domain.StreamSubtitle && stream.Index == sel.Subtitle) {
			marker = "*"
		}
		fmt.Printf("%s %-8s #%-2d %-4s %s%s\n", marker, stream.Type, stream.Index, stream.Language, stream.Title, flags(stream))
	}
	if sel.Subtitle == trackselect.None {
		fmt.Println("  (no subtitles)")
	}
	return nil
}

func flags(s domain.MediaStream) string {
	var out string
	if s.IsDefault {
		out += " [default]"
	}
	if trackselect.IsForced(s) {
		out += " [forced]"
	}
	return out
}
