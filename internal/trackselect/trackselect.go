// Package trackselect picks the audio and subtitle tracks to play from an
// item's streams and the user's playback preferences.
package trackselect

import (
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/language"

	"github.com/mmcdole/kinotv/internal/domain"
)

// Mode controls when a subtitle track is selected
type Mode string

const (
	ModeNone       Mode = "none"
	ModeAlways     Mode = "always"
	ModeDefault    Mode = "default"
	ModeSmart      Mode = "smart"
	ModeOnlyForced Mode = "only_forced"
)

// None marks an unselected track.
const None = -1

// Prefs are the user's track preferences. Languages are ISO 639-1 or 639-2 codes.
type Prefs struct {
	AudioLanguage    string
	SubtitleLanguage string
	SubtitleMode     Mode
}

// Selection holds the chosen stream indexes, or None.
type Selection struct {
	Audio    int
	Subtitle int
}

// Title words that mark a forced track on servers that don't set the flag
var forcedWords = []string{"forced", "sign"}

// Select picks the audio and subtitle streams for prefs.
func Select(streams []domain.MediaStream, prefs Prefs) Selection {
	var audio, subs []domain.MediaStream
	for _, s := range streams {
		switch s.Type {
		case domain.StreamAudio:
			audio = append(audio, s)
		case domain.StreamSubtitle:
			subs = append(subs, s)
		}
	}

	sel := Selection{Audio: None, Subtitle: None}
	chosen, ok := selectAudio(audio, prefs.AudioLanguage)
	if ok {
		sel.Audio = chosen.Index
	}
	if sub, ok := selectSubtitle(subs, prefs, chosen.Language); ok {
		sel.Subtitle = sub.Index
	}
	return sel
}

func selectAudio(tracks []domain.MediaStream, lang string) (domain.MediaStream, bool) {
	if len(tracks) == 0 {
		return domain.MediaStream{}, false
	}
	if t, ok := first(tracks, func(t domain.MediaStream) bool { return SameLanguage(t.Language, lang) }); ok {
		return t, true
	}
	if t, ok := first(tracks, func(t domain.MediaStream) bool { return t.IsDefault }); ok {
		return t, true
	}
	return tracks[0], true
}

func selectSubtitle(tracks []domain.MediaStream, prefs Prefs, audioLang string) (domain.MediaStream, bool) {
	if len(tracks) == 0 {
		return domain.MediaStream{}, false
	}
	lang := prefs.SubtitleLanguage
	inLang := func(l string) func(domain.MediaStream) bool {
		return func(t domain.MediaStream) bool { return SameLanguage(t.Language, l) }
	}
	full := func(l string) func(domain.MediaStream) bool {
		return func(t domain.MediaStream) bool { return SameLanguage(t.Language, l) && !IsForced(t) }
	}
	forcedIn := func(l string) func(domain.MediaStream) bool {
		return func(t domain.MediaStream) bool { return SameLanguage(t.Language, l) && IsForced(t) }
	}

	switch prefs.SubtitleMode {
	case ModeAlways:
		return firstOf(tracks,
			full(lang),
			inLang(lang),
			func(t domain.MediaStream) bool { return t.IsDefault },
			func(domain.MediaStream) bool { return true },
		)

	case ModeDefault:
		return firstOf(tracks,
			func(t domain.MediaStream) bool { return t.IsDefault && SameLanguage(t.Language, lang) },
			func(t domain.MediaStream) bool { return t.IsDefault },
			IsForced,
		)

	case ModeSmart:
		if !SameLanguage(audioLang, lang) {
			return firstOf(tracks, full(lang), inLang(lang))
		}
		return firstOf(tracks, forcedIn(lang))

	case ModeOnlyForced:
		return firstOf(tracks, forcedIn(lang), forcedIn(audioLang))

	default:
		return domain.MediaStream{}, false
	}
}

// IsForced reports whether a subtitle track only covers foreign dialogue or signs.
func IsForced(t domain.MediaStream) bool {
	if t.IsForced {
		return true
	}
	for _, word := range strings.FieldsFunc(t.Title, func(r rune) bool { return !unicode.IsLetter(r) }) {
		for _, marker := range forcedWords {
			// Allow one extra letter ("signs", "forced")
			if d := fuzzy.RankMatchNormalizedFold(marker, word); d >= 0 && d <= 1 {
				return true
			}
		}
	}
	return false
}

// SameLanguage compares two language codes by base language, so "en", "eng"
// and "en-US" are equal. Unknown or empty codes never match.
func SameLanguage(a, b string) bool {
	ba, ok := base(a)
	if !ok {
		return false
	}
	bb, ok := base(b)
	return ok && ba == bb
}

func base(code string) (language.Base, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return language.Base{}, false
	}
	tag, err := language.Parse(code)
	if err != nil || tag == language.Und {
		return language.Base{}, false
	}
	b, conf := tag.Base()
	return b, conf != language.No
}

func first(tracks []domain.MediaStream, match func(domain.MediaStream) bool) (domain.MediaStream, bool) {
	for _, t := range tracks {
		if match(t) {
			return t, true
		}
	}
	return domain.MediaStream{}, false
}

// firstOf tries each rule in order and returns the first track the earliest rule matches.
func firstOf(tracks []domain.MediaStream, rules ...func(domain.MediaStream) bool) (domain.MediaStream, bool) {
	for _, rule := range rules {
		if t, ok := first(tracks, rule); ok {
			return t, true
		}
	}
	return domain.MediaStream{}, false
}
