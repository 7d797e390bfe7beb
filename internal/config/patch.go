package config

import "time"

// Patch is a partial settings update. Only non-nil fields are applied,
// so a client can change one setting without knowing the rest.
type Patch struct {
	Provider      *string                  `json:"provider,omitempty"`
	AudioOutput   *bool                    `json:"audio_output,omitempty"`
	HistoryWindow *int                     `json:"history_window,omitempty"`
	Providers     map[string]ProviderPatch `json:"providers,omitempty"`
	Speech        *SpeechPatch             `json:"speech,omitempty"`
}

// ProviderPatch partially updates one provider's settings.
type ProviderPatch struct {
	Endpoint    *string  `json:"endpoint,omitempty"`
	APIKey      *string  `json:"api_key,omitempty"`
	Model       *string  `json:"model,omitempty"`
	Enabled     *bool    `json:"enabled,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TimeoutSecs *int     `json:"timeout_secs,omitempty"`
}

// SpeechPatch partially updates playback settings.
type SpeechPatch struct {
	Voice  *string  `json:"voice,omitempty"`
	Rate   *float64 `json:"rate,omitempty"`
	Pitch  *float64 `json:"pitch,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
}

// Apply merges the patch into cfg field by field, leaving everything
// the patch does not mention untouched.
func (p Patch) Apply(cfg *Config) {
	if p.Provider != nil {
		cfg.Assistant.Provider = *p.Provider
	}
	if p.AudioOutput != nil {
		cfg.Assistant.AudioOutput = *p.AudioOutput
	}
	if p.HistoryWindow != nil {
		cfg.Assistant.HistoryWindow = *p.HistoryWindow
	}

	for name, pp := range p.Providers {
		if cfg.Providers == nil {
			cfg.Providers = make(map[string]Provider)
		}
		prov := cfg.Providers[name]
		if pp.Endpoint != nil {
			prov.Endpoint = *pp.Endpoint
		}
		if pp.APIKey != nil {
			prov.APIKey = *pp.APIKey
		}
		if pp.Model != nil {
			prov.Model = *pp.Model
		}
		if pp.Enabled != nil {
			prov.Enabled = *pp.Enabled
		}
		if pp.MaxTokens != nil {
			prov.MaxTokens = *pp.MaxTokens
		}
		if pp.Temperature != nil {
			prov.Temperature = *pp.Temperature
		}
		if pp.TimeoutSecs != nil {
			prov.Timeout = time.Duration(*pp.TimeoutSecs) * time.Second
		}
		cfg.Providers[name] = prov
	}

	if p.Speech != nil {
		if p.Speech.Voice != nil {
			cfg.Speech.Voice = *p.Speech.Voice
		}
		if p.Speech.Rate != nil {
			cfg.Speech.Rate = *p.Speech.Rate
		}
		if p.Speech.Pitch != nil {
			cfg.Speech.Pitch = *p.Speech.Pitch
		}
		if p.Speech.Volume != nil {
			cfg.Speech.Volume = *p.Speech.Volume
		}
	}
}
