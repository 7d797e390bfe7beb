package voice

import (
	"context"
	"strings"
)

// Voice describes one synthesizer voice offered by the playback
// backend.
type Voice struct {
	Name string
	Lang string
}

// SpeakOptions control how a reply is rendered to audio.
type SpeakOptions struct {
	Voice  string
	Rate   float64
	Pitch  float64
	Volume float64
}

// DefaultSpeakOptions returns the tuned playback parameters: slightly
// slower than natural rate for clarity, at reduced volume.
func DefaultSpeakOptions() SpeakOptions {
	return SpeakOptions{Rate: 0.9, Pitch: 1.0, Volume: 0.8}
}

// Speaker renders text to audio on the host platform. Speak blocks
// until playback finishes or is cancelled.
type Speaker interface {
	Available() bool
	Voices() []Voice
	Speak(ctx context.Context, text string, opts SpeakOptions) error
	Cancel()
}

// Capture starts and stops the speech capture backend. Capture results
// arrive asynchronously through the controller's event methods.
type Capture interface {
	Available() bool
	Start() error
	Stop()
}

// voiceNameHints are matched case-insensitively against voice names,
// in order of preference.
var voiceNameHints = []string{"british", "daniel", "arthur"}

// ChooseVoice picks the preferred voice from the available list: a
// British English variant first, then known male British voice names.
// It returns false when the list is empty or nothing matches, in which
// case the platform default should be used. Voice lists may populate
// asynchronously, so callers must not cache a negative result taken
// from an empty list.
func ChooseVoice(voices []Voice) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}
	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Lang), "en-gb") {
			return v, true
		}
	}
	for _, hint := range voiceNameHints {
		for _, v := range voices {
			if strings.Contains(strings.ToLower(v.Name), hint) {
				return v, true
			}
		}
	}
	return Voice{}, false
}
