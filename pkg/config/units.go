package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Calendar units time.ParseDuration lacks.
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// Duration is a time.Duration written in YAML as "500ms", "20s" or "30d".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return FormatDuration(time.Duration(d)), nil
}

var durationUnits = map[string]time.Duration{
	"ns": time.Nanosecond,
	"us": time.Microsecond,
	"µs": time.Microsecond,
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  Day,
	"w":  Week,
}

var durationTerm = regexp.MustCompile(`(\d+(?:\.\d+)?)(ns|us|µs|ms|s|m|h|d|w)`)

// ParseDuration parses sums of number+unit terms such as "1d12h" or
// "1.5s". Empty is zero; a bare "0" is allowed.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	var total time.Duration
	rest := s
	for rest != "" {
		loc := durationTerm.FindStringSubmatchIndex(rest)
		if loc == nil || loc[0] != 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		val, err := strconv.ParseFloat(rest[loc[2]:loc[3]], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		total += time.Duration(val * float64(durationUnits[rest[loc[4]:loc[5]]]))
		rest = rest[loc[1]:]
	}
	return total, nil
}

// FormatDuration renders whole weeks and days with w and d, and anything
// else like time.Duration.String without zero trailing units ("1m", not
// "1m0s").
func FormatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "0s"
	case d%Week == 0:
		return strconv.FormatInt(int64(d/Week), 10) + "w"
	case d%Day == 0:
		return strconv.FormatInt(int64(d/Day), 10) + "d"
	}
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
		if strings.HasSuffix(s, "h0m") {
			s = strings.TrimSuffix(s, "0m")
		}
	}
	return s
}

// Frequency is a frequency in hertz, written in YAML as "300Hz", "3.4kHz"
// or a bare number.
type Frequency float64

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *Frequency) UnmarshalYAML(value *yaml.Node) error {
	hz, err := ParseFrequency(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*f = Frequency(hz)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (f Frequency) MarshalYAML() (interface{}, error) {
	if f >= 1000 {
		return strconv.FormatFloat(float64(f)/1000, 'f', -1, 64) + "kHz", nil
	}
	return strconv.FormatFloat(float64(f), 'f', -1, 64) + "Hz", nil
}

// ParseFrequency accepts Hz and kHz suffixes in any case. Unitless values
// are hertz.
func ParseFrequency(s string) (float64, error) {
	num := strings.ToLower(strings.TrimSpace(s))
	if num == "" {
		return 0, nil
	}
	mult := 1.0
	if trimmed, ok := strings.CutSuffix(num, "khz"); ok {
		num, mult = trimmed, 1000
	} else {
		num = strings.TrimSuffix(num, "hz")
	}
	val, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frequency %q", s)
	}
	if val < 0 {
		return 0, fmt.Errorf("negative frequency %q", s)
	}
	return val * mult, nil
}
