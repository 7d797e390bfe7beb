package assistant

import (
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"
)

// Intent is the classified purpose of a user utterance.
type Intent string

const (
	IntentGreeting     Intent = "greeting"
	IntentTime         Intent = "time"
	IntentDate         Intent = "date"
	IntentWeather      Intent = "weather"
	IntentStatus       Intent = "status"
	IntentGratitude    Intent = "gratitude"
	IntentFarewell     Intent = "farewell"
	IntentHelp         Intent = "help"
	IntentPower        Intent = "power"
	IntentConnectivity Intent = "connectivity"
	IntentGeneral      Intent = "general"
)

// intentKeywords maps each intent to its trigger substrings. Matching is
// case-insensitive substring containment, checked in classifyOrder.
var intentKeywords = map[Intent][]string{
	IntentGreeting:     {"hello", "hi", "hey"},
	IntentTime:         {"time", "what time"},
	IntentDate:         {"date", "what date"},
	IntentWeather:      {"weather"},
	IntentStatus:       {"how are you", "how do you feel"},
	IntentGratitude:    {"thank you", "thanks"},
	IntentFarewell:     {"goodbye", "bye"},
	IntentHelp:         {"help"},
	IntentPower:        {"battery", "power"},
	IntentConnectivity: {"offline", "internet"},
}

// classifyOrder fixes the priority when an utterance matches several
// intents ("hi, what time is it" greets before it asks).
var classifyOrder = []Intent{
	IntentGreeting,
	IntentTime,
	IntentDate,
	IntentWeather,
	IntentStatus,
	IntentGratitude,
	IntentFarewell,
	IntentHelp,
	IntentPower,
	IntentConnectivity,
}

// replyPools holds the reply templates per intent. Time and date pools
// interpolate a formatted clock value; connectivity has separate online
// and offline pools selected by the reachability probe.
var replyPools = map[Intent][]string{
	IntentGreeting: {
		"Hello, sir. It's a pleasure to assist you today.",
		"Good to hear from you, sir. How may I be of service?",
		"At your service, sir. What can I do for you?",
	},
	IntentTime: {
		"The current time is %s, sir.",
		"It is precisely %s, sir.",
	},
	IntentDate: {
		"Today is %s, sir.",
		"The date today is %s, sir.",
	},
	IntentWeather: {
		"I apologize, sir, but I don't currently have access to weather data. Perhaps you could check your preferred weather application?",
		"Weather telemetry is not among my capabilities at present, sir. My apologies.",
	},
	IntentStatus: {
		"I'm functioning at optimal capacity, sir. All systems are running smoothly.",
		"All diagnostics are green, sir. Operating at full capacity.",
	},
	IntentGratitude: {
		"You're most welcome, sir. Always happy to be of service.",
		"My pleasure, sir. Think nothing of it.",
	},
	IntentFarewell: {
		"Farewell, sir. I'll be here whenever you need assistance.",
		"Until next time, sir. I shall remain on standby.",
	},
	IntentHelp: {
		"I'm here to assist you, sir. You can ask me about the time, date, or simply have a conversation. How may I help you today?",
		"I'm at your disposal, sir. Ask me about the time, the date, or anything on your mind.",
	},
	IntentPower: {
		"I'm running on your device's power, sir. My energy levels are stable and ready for extended operation.",
		"Power reserves are stable, sir. Ready for extended operation.",
	},
	IntentGeneral: {
		"I understand, sir. While I'm still learning, I'm here to assist you to the best of my abilities. Is there anything specific you'd like to know?",
		"Very good, sir. Is there anything else I can help you with?",
		"Understood, sir. I'm ready whenever you need me.",
	},
}

var connectivityOnlinePool = []string{
	"We have a stable connection, sir. All systems are online.",
	"Network link is healthy, sir. Everything is online.",
}

var connectivityOfflinePool = []string{
	"We appear to be offline, sir, but I can still assist you with basic functions.",
	"No network connection at present, sir. Local functions remain available.",
}

// ConnectivityProbe reports whether the host currently has network
// reachability. Injected so tests never depend on real interfaces.
type ConnectivityProbe interface {
	Online() bool
}

// interfaceProbe reports reachability from the presence of a non-loopback
// interface that is up. No traffic is generated.
type interfaceProbe struct{}

func (interfaceProbe) Online() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}

// Responder is the rule-based backend of last resort. It is total: every
// input string produces exactly one non-empty reply. The random source,
// clock, and connectivity probe are injected so selection is
// reproducible in tests.
type Responder struct {
	rng   *rand.Rand
	now   func() time.Time
	probe ConnectivityProbe
	pools map[Intent][]string
}

// ResponderOption customizes a Responder.
type ResponderOption func(*Responder)

// WithRand sets the random source used for template selection.
func WithRand(rng *rand.Rand) ResponderOption {
	return func(r *Responder) { r.rng = rng }
}

// WithClock sets the wall-clock source for time and date replies.
func WithClock(now func() time.Time) ResponderOption {
	return func(r *Responder) { r.now = now }
}

// WithConnectivityProbe sets the network reachability probe.
func WithConnectivityProbe(probe ConnectivityProbe) ResponderOption {
	return func(r *Responder) { r.probe = probe }
}

// WithReplyPools overrides the built-in reply templates for the given
// intents. Intents not present keep their defaults.
func WithReplyPools(pools map[Intent][]string) ResponderOption {
	return func(r *Responder) {
		for intent, pool := range pools {
			if len(pool) > 0 {
				r.pools[intent] = pool
			}
		}
	}
}

// NewResponder creates a local responder with the given options.
func NewResponder(opts ...ResponderOption) *Responder {
	r := &Responder{
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
		probe: interfaceProbe{},
		pools: make(map[Intent][]string, len(replyPools)),
	}
	for intent, pool := range replyPools {
		r.pools[intent] = pool
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Classify returns the intent of the given utterance.
func Classify(text string) Intent {
	normalized := strings.ToLower(text)
	for _, intent := range classifyOrder {
		for _, keyword := range intentKeywords[intent] {
			if strings.Contains(normalized, keyword) {
				return intent
			}
		}
	}
	return IntentGeneral
}

// Respond produces a reply for the latest user text. The recent history
// is accepted for interface symmetry with the remote providers; the
// rule-based replies do not use it.
func (r *Responder) Respond(text string, recent []Turn) string {
	_ = recent

	intent := Classify(text)
	switch intent {
	case IntentTime:
		return fmt.Sprintf(r.pick(r.pools[IntentTime]), r.now().Format("3:04 PM"))
	case IntentDate:
		return fmt.Sprintf(r.pick(r.pools[IntentDate]), r.now().Format("Monday, January 2, 2006"))
	case IntentConnectivity:
		if r.probe.Online() {
			return r.pick(connectivityOnlinePool)
		}
		return r.pick(connectivityOfflinePool)
	default:
		return r.pick(r.pools[intent])
	}
}

// pick selects a template uniformly at random from the pool.
func (r *Responder) pick(pool []string) string {
	return pool[r.rng.Intn(len(pool))]
}
