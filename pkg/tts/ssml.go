package tts

import (
	"fmt"
	"math"
	"strings"
)

var ssmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

// BuildSSML wraps plain text in a speak/voice/prosody envelope.
func BuildSSML(req Request) string {
	locale := req.Locale
	if locale == "" {
		locale = LocaleFromVoiceID(req.Voice)
	}
	return fmt.Sprintf(
		"<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='%s'><voice name='%s'><prosody rate='%s' pitch='%s' volume='%s'>%s</prosody></voice></speak>",
		locale, req.Voice, RelativePercent(req.Rate), RelativePercent(req.Pitch), VolumePercent(req.Volume), ssmlEscaper.Replace(req.Text),
	)
}

// RelativePercent renders a multiplier as an SSML relative change ("+10%").
// Zero is treated as "unchanged".
func RelativePercent(mult float64) string {
	if mult <= 0 {
		mult = 1
	}
	return fmt.Sprintf("%+d%%", int(math.Round((mult-1)*100)))
}

// VolumePercent renders a 0..1 volume as an SSML absolute volume ("100").
func VolumePercent(v float64) string {
	if v <= 0 || v > 1 {
		v = 1
	}
	return fmt.Sprintf("%d", int(math.Round(v*100)))
}

// LocaleFromVoiceID extracts "en-GB" from IDs such as "en-GB-SoniaNeural".
func LocaleFromVoiceID(id string) string {
	parts := strings.SplitN(id, "-", 3)
	if len(parts) >= 2 && len(parts[0]) == 2 && len(parts[1]) == 2 {
		return parts[0] + "-" + parts[1]
	}
	return "en-US"
}
