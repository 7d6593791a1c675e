package media

import (
	"fmt"
	"sort"
	"strings"
)

// formatPreference ranks subtitle formats; json3 carries exact cue
// timings, vtt needs rolling-caption cleanup.
var formatPreference = []string{"json3", "vtt"}

type trackSelection struct {
	track    ytdlpTrack
	language string
	auto     bool
}

// selectTrack picks the subtitle track to use: a manual track in lang
// (exact code first, then regional variants such as "en-US"), otherwise
// an automatic caption track under the same rules.
func selectTrack(manual, auto map[string][]ytdlpTrack, lang string) (trackSelection, error) {
	if code, t, ok := findTrack(manual, lang); ok {
		return trackSelection{track: t, language: code}, nil
	}
	if code, t, ok := findTrack(auto, lang); ok {
		return trackSelection{track: t, language: code, auto: true}, nil
	}
	return trackSelection{}, fmt.Errorf("%w (language %q)", ErrNoTranscript, lang)
}

func findTrack(tracks map[string][]ytdlpTrack, lang string) (string, ytdlpTrack, bool) {
	for _, code := range languageCandidates(tracks, lang) {
		if t, ok := pickFormat(tracks[code]); ok {
			return code, t, true
		}
	}
	return "", ytdlpTrack{}, false
}

// languageCandidates lists the track keys matching lang in preference
// order: the exact code, then "<lang>-..." variants sorted by name.
func languageCandidates(tracks map[string][]ytdlpTrack, lang string) []string {
	var out []string
	if _, ok := tracks[lang]; ok {
		out = append(out, lang)
	}
	var variants []string
	for code := range tracks {
		if strings.HasPrefix(code, lang+"-") {
			variants = append(variants, code)
		}
	}
	sort.Strings(variants)
	return append(out, variants...)
}

func pickFormat(tracks []ytdlpTrack) (ytdlpTrack, bool) {
	for _, ext := range formatPreference {
		for _, t := range tracks {
			if t.Ext == ext && t.URL != "" {
				return t, true
			}
		}
	}
	return ytdlpTrack{}, false
}
