// Package speech renders replies to audio through the host's native
// synthesizer: the 'say' command on macOS, 'espeak' elsewhere. It is a
// zero-dependency backend that uses whatever system voices exist.
package speech

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/inertz/Jarvis/internal/voice"
)

// Synthesizer implements voice.Speaker on top of the platform speech
// command. Speak blocks until the subprocess exits; Cancel kills it.
type Synthesizer struct {
	logger zerolog.Logger
	binary string

	mu      sync.Mutex
	cancel  context.CancelFunc
	voicesO sync.Once
	voices  []voice.Voice
}

// NewSynthesizer probes the platform for a speech command and returns
// a synthesizer bound to it. The synthesizer is still usable when no
// command was found; it just reports itself unavailable.
func NewSynthesizer(logger zerolog.Logger) *Synthesizer {
	s := &Synthesizer{logger: logger.With().Str("component", "speech").Logger()}
	candidates := []string{"espeak", "espeak-ng"}
	if runtime.GOOS == "darwin" {
		candidates = []string{"say"}
	}
	for _, name := range candidates {
		if _, err := exec.LookPath(name); err == nil {
			s.binary = name
			break
		}
	}
	if s.binary == "" {
		s.logger.Warn().Msg("no speech command found, playback disabled")
	}
	return s
}

// Available reports whether a platform speech command exists.
func (s *Synthesizer) Available() bool {
	return s.binary != ""
}

// Voices lists the synthesizer voices offered by the platform. The
// list is probed once and cached; an empty list means the probe failed
// and the platform default voice will be used.
func (s *Synthesizer) Voices() []voice.Voice {
	if !s.Available() {
		return nil
	}
	s.voicesO.Do(func() {
		var err error
		s.voices, err = s.listVoices()
		if err != nil {
			s.logger.Warn().Err(err).Msg("voice list probe failed")
		}
	})
	return s.voices
}

// Speak renders text through the platform command, blocking until
// playback completes, the context is cancelled, or Cancel is called.
func (s *Synthesizer) Speak(ctx context.Context, text string, opts voice.SpeakOptions) error {
	if !s.Available() {
		return fmt.Errorf("speech playback not available")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	args := s.speakArgs(text, opts)
	s.logger.Debug().
		Str("binary", s.binary).
		Str("voice", opts.Voice).
		Int("textLen", len(text)).
		Msg("speaking reply")

	cmd := exec.CommandContext(ctx, s.binary, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.Canceled {
			return nil
		}
		return fmt.Errorf("%s failed: %w", s.binary, err)
	}
	return nil
}

// Cancel aborts in-progress playback, if any.
func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// speakArgs maps the normalized 0..1-ish playback options onto the
// command's native units.
func (s *Synthesizer) speakArgs(text string, opts voice.SpeakOptions) []string {
	var args []string
	switch s.binary {
	case "say":
		// say takes words per minute; 175 is the natural rate.
		args = append(args, "-r", fmt.Sprintf("%d", int(175*opts.Rate)))
		if opts.Voice != "" {
			args = append(args, "-v", opts.Voice)
		}
	default:
		// espeak: -s speed (wpm), -p pitch 0-99, -a amplitude 0-200.
		args = append(args,
			"-s", fmt.Sprintf("%d", int(175*opts.Rate)),
			"-p", fmt.Sprintf("%d", int(50*opts.Pitch)),
			"-a", fmt.Sprintf("%d", int(200*opts.Volume)),
		)
		if opts.Voice != "" {
			args = append(args, "-v", opts.Voice)
		}
	}
	return append(args, text)
}

func (s *Synthesizer) listVoices() ([]voice.Voice, error) {
	switch s.binary {
	case "say":
		out, err := exec.Command("say", "-v", "?").Output()
		if err != nil {
			return nil, err
		}
		return parseSayVoices(string(out)), nil
	default:
		out, err := exec.Command(s.binary, "--voices=en").Output()
		if err != nil {
			return nil, err
		}
		return parseESpeakVoices(string(out)), nil
	}
}

// parseSayVoices reads 'say -v ?' output, one voice per line:
//
//	Daniel              en_GB    # Hello, my name is Daniel.
func parseSayVoices(out string) []voice.Voice {
	var voices []voice.Voice
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		voices = append(voices, voice.Voice{
			Name: fields[0],
			Lang: strings.ReplaceAll(fields[1], "_", "-"),
		})
	}
	return voices
}

// parseESpeakVoices reads 'espeak --voices=en' output. The header line
// is skipped; language sits in column 2 and voice name in column 4.
func parseESpeakVoices(out string) []voice.Voice {
	var voices []voice.Voice
	sc := bufio.NewScanner(strings.NewReader(out))
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		voices = append(voices, voice.Voice{Name: fields[3], Lang: fields[1]})
	}
	return voices
}
