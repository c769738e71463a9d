package config

import "fmt"

// Keys of the settings that can be overridden at runtime. Overrides live in
// the persistent_state table and win over the YAML file.
const (
	KeyNarrationRate   = "narration_rate"
	KeyNarrationPitch  = "narration_pitch"
	KeyNarrationVolume = "narration_volume"
	KeyNarrationVoice  = "narration_voice"
	KeyRedirectURL     = "redirect_url"
)

type bounds struct{ lo, hi float64 }

var numericBounds = map[string]bounds{
	KeyNarrationRate:   {0.1, 10},
	KeyNarrationPitch:  {0, 2},
	KeyNarrationVolume: {0, 1},
}

// CheckRange reports whether v is an acceptable value for the numeric
// setting key. Keys without bounds accept anything.
func CheckRange(key string, v float64) error {
	b, ok := numericBounds[key]
	if !ok || (v >= b.lo && v <= b.hi) {
		return nil
	}
	return fmt.Errorf("%s must be within %g..%g", key, b.lo, b.hi)
}

// CheckRedirectURL reports whether u can be used as the hand-off target.
func CheckRedirectURL(u string) error {
	if !redirectPattern.MatchString(u) {
		return fmt.Errorf("redirect_url must be an http(s) URL, got %q", u)
	}
	return nil
}
