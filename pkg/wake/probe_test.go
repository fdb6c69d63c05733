package wake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	uaMacChrome    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaMacSafari    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Safari/605.1.15"
	uaWinEdge      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91"
	uaLinuxFirefox = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"
	uaIPhoneSafari = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaPixelChrome  = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.230 Mobile Safari/537.36"
	uaAndroidFx    = "Mozilla/5.0 (Android 14; Mobile; rv:109.0) Gecko/115.0 Firefox/115.0"
)

func TestClassify_DesktopChromium(t *testing.T) {
	info := Classify(uaMacChrome)

	assert.Equal(t, PlatformDesktop, info.Platform)
	assert.Equal(t, EngineChromium, info.Engine)
	assert.True(t, info.Supported())
	assert.Equal(t, StrategyContinuous, info.Strategy())
}

func TestClassify_DesktopWebKit(t *testing.T) {
	info := Classify(uaMacSafari)

	assert.Equal(t, PlatformDesktop, info.Platform)
	assert.Equal(t, EngineWebKit, info.Engine)
	assert.True(t, info.Supported())
	assert.Equal(t, StrategyContinuous, info.Strategy())
}

func TestClassify_Edge(t *testing.T) {
	info := Classify(uaWinEdge)

	assert.Equal(t, EngineChromium, info.Engine)
	assert.True(t, info.Supported())
}

func TestClassify_Gecko(t *testing.T) {
	// No streaming recognition primitive on gecko, any platform.
	desktop := Classify(uaLinuxFirefox)
	assert.Equal(t, EngineGecko, desktop.Engine)
	assert.Equal(t, PlatformDesktop, desktop.Platform)
	assert.False(t, desktop.Supported())

	mobile := Classify(uaAndroidFx)
	assert.Equal(t, EngineGecko, mobile.Engine)
	assert.Equal(t, PlatformMobile, mobile.Platform)
	assert.False(t, mobile.Supported())
}

func TestClassify_MobileWebKitUnsupported(t *testing.T) {
	info := Classify(uaIPhoneSafari)

	assert.Equal(t, PlatformMobile, info.Platform)
	assert.Equal(t, EngineWebKit, info.Engine)
	assert.False(t, info.Supported())
}

func TestClassify_MobileChromiumBurst(t *testing.T) {
	info := Classify(uaPixelChrome)

	assert.Equal(t, PlatformMobile, info.Platform)
	assert.Equal(t, EngineChromium, info.Engine)
	assert.True(t, info.Supported())
	assert.Equal(t, StrategyBurst, info.Strategy())
}

func TestClassify_ShortDescriptor(t *testing.T) {
	info := Classify("desktop chromium")

	assert.Equal(t, PlatformDesktop, info.Platform)
	assert.Equal(t, EngineChromium, info.Engine)
	assert.True(t, info.Supported())
}

func TestClassify_UnknownUnsupported(t *testing.T) {
	assert.False(t, Classify("").Supported())
	assert.False(t, Classify("some embedded runtime").Supported())
}

func TestClassify_Deterministic(t *testing.T) {
	assert.Equal(t, Classify(uaPixelChrome), Classify(uaPixelChrome))
}
