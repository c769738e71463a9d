// Package voice models synthesis voices and picks one for each narration.
package voice

import (
	"strings"

	"golang.org/x/text/language"
)

// Gender is the presentation a provider reports (or we infer) for a voice.
type Gender string

const (
	GenderUnknown Gender = ""
	GenderFemale  Gender = "female"
	GenderMale    Gender = "male"
)

// Descriptor describes one synthesis voice. Values are immutable once read
// from a provider.
type Descriptor struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Locale string   `json:"locale"`
	Gender Gender   `json:"gender,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// IsFemale reports whether the voice presents as female, either by the
// provider's gender attribute or by a "female" marker in its name.
func (d Descriptor) IsFemale() bool {
	if d.Gender == GenderFemale {
		return true
	}
	return strings.Contains(strings.ToLower(d.Name), "female")
}

// ParseGender maps provider spellings ("Female", "F", "male") to a Gender.
func ParseGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "female", "f", "woman":
		return GenderFemale
	case "male", "m", "man":
		return GenderMale
	default:
		return GenderUnknown
	}
}

// isEnglish reports whether the locale's base language is English.
func isEnglish(locale string) bool {
	if tag, err := language.Parse(locale); err == nil {
		base, conf := tag.Base()
		return conf != language.No && base.String() == "en"
	}
	return strings.HasPrefix(strings.ToLower(locale), "en")
}

// isBritishEnglish reports whether the locale is English with an explicit GB region.
func isBritishEnglish(locale string) bool {
	if tag, err := language.Parse(locale); err == nil {
		base, _ := tag.Base()
		region, conf := tag.Region()
		return base.String() == "en" && conf == language.Exact && region.String() == "GB"
	}
	l := strings.ToLower(strings.ReplaceAll(locale, "_", "-"))
	return strings.HasPrefix(l, "en-gb")
}
