package server

import "github.com/inertz/Jarvis/internal/config"

// providerView is a provider's settings with the API key reduced to a
// presence flag. Keys never travel back to clients.
type providerView struct {
	Endpoint    string  `json:"endpoint"`
	Model       string  `json:"model"`
	Enabled     bool    `json:"enabled"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TimeoutSecs int     `json:"timeout_secs"`
	HasKey      bool    `json:"has_key"`
}

type settingsView struct {
	Type         string                  `json:"type"`
	Provider     string                  `json:"provider"`
	AudioEnabled bool                    `json:"audio_enabled"`
	Providers    map[string]providerView `json:"providers"`
	Speech       config.SpeechConfig     `json:"speech"`
}

func (s *Server) settingsFrame() settingsView {
	cfg := s.orch.Settings()
	providers := make(map[string]providerView, len(cfg.Providers))
	for name, p := range cfg.Providers {
		providers[name] = providerView{
			Endpoint:    p.Endpoint,
			Model:       p.Model,
			Enabled:     p.Enabled,
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
			TimeoutSecs: int(p.Timeout.Seconds()),
			HasKey:      p.APIKey != "",
		}
	}
	return settingsView{
		Type:         frameSettings,
		Provider:     s.orch.ActiveProvider(),
		AudioEnabled: s.orch.AudioEnabled(),
		Providers:    providers,
		Speech:       cfg.Speech,
	}
}
