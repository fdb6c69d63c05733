// Package wake provides environment classification for deciding whether
// continuous recognition is viable on the host.
package wake

import "strings"

// PlatformClass is the coarse device class of the host environment.
type PlatformClass string

const (
	PlatformDesktop PlatformClass = "desktop"
	PlatformMobile  PlatformClass = "mobile"
)

// BrowserEngine is the rendering/recognition engine family of the host.
type BrowserEngine string

const (
	EngineChromium BrowserEngine = "chromium"
	EngineWebKit   BrowserEngine = "webkit"
	EngineGecko    BrowserEngine = "gecko"
	EngineUnknown  BrowserEngine = "unknown"
)

// Strategy selects how engine sessions are run on a given device class.
type Strategy string

const (
	// StrategyContinuous keeps one long-lived session open with interim
	// results enabled.
	StrategyContinuous Strategy = "continuous"
	// StrategyBurst runs short single-utterance sessions with no interim
	// results; each session ends on its own and is restarted.
	StrategyBurst Strategy = "burst"
)

var mobileTokens = []string{"android", "iphone", "ipad", "ipod", "mobile", "silk"}

// DeviceInfo is the capability probe's classification of the host
// environment. Computed once per detector from the environment descriptor.
type DeviceInfo struct {
	Platform PlatformClass `json:"platform"`
	Engine   BrowserEngine `json:"engine"`
}

// Classify parses a user-agent style environment descriptor into a device
// classification. Pure: same descriptor, same result.
func Classify(descriptor string) DeviceInfo {
	desc := strings.ToLower(descriptor)

	info := DeviceInfo{Platform: PlatformDesktop, Engine: EngineUnknown}
	for _, tok := range mobileTokens {
		if strings.Contains(desc, tok) {
			info.Platform = PlatformMobile
			break
		}
	}

	// Order matters: chromium descriptors carry webkit tokens, so chromium
	// is checked first; gecko forks advertise neither.
	switch {
	case containsAny(desc, "firefox", "fxios", "fennec", "gecko/"):
		info.Engine = EngineGecko
	case containsAny(desc, "edg", "chrome", "chromium", "crios"):
		info.Engine = EngineChromium
	case containsAny(desc, "safari", "applewebkit"):
		info.Engine = EngineWebKit
	}

	return info
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Supported reports whether passive listening is viable on this device.
// Gecko lacks the streaming recognition primitive entirely; mobile webkit
// restricts background audio too aggressively to keep a listener alive.
func (d DeviceInfo) Supported() bool {
	switch d.Engine {
	case EngineUnknown, EngineGecko:
		return false
	case EngineWebKit:
		return d.Platform != PlatformMobile
	default:
		return true
	}
}

// Strategy returns the session strategy for this device. Mobile chromium
// degrades on long continuous sessions and runs short bursts instead.
func (d DeviceInfo) Strategy() Strategy {
	if d.Platform == PlatformMobile && d.Engine == EngineChromium {
		return StrategyBurst
	}
	return StrategyContinuous
}
