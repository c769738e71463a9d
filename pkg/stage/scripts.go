package stage

import (
	"strconv"
	"time"
)

// Stage names used by the scripts.
const (
	NameFace        = "face"
	NameFingerprint = "fingerprint"
	NameCountdown   = "countdown"
	NameLaunched    = "complete"
)

// FaceConfig times the face scan.
type FaceConfig struct {
	Delay   time.Duration // mount to scanning
	Tick    time.Duration // countdown period
	From    int           // first countdown value
	Hold    time.Duration // flash after the final line
	Intro   string
	Success string
}

// DefaultFace matches the reference presentation.
func DefaultFace() FaceConfig {
	return FaceConfig{
		Delay:   time.Second,
		Tick:    time.Second,
		From:    5,
		Hold:    500 * time.Millisecond,
		Intro:   "Please position your face within the scanning frame",
		Success: "Face captured successfully. Proceeding to second stage of authentication",
	}
}

// Face scans for From ticks, flashes and confirms the capture.
func Face(c FaceConfig) Script {
	return Script{
		Name:    NameFace,
		Initial: State{Countdown: c.From},
		Steps: []Step{
			{Wait: c.Delay},
			{
				Phase:      PhaseActive,
				Do:         func(s *State) { s.Scanning = true },
				Say:        c.Intro,
				Background: true,
				Tick: &Tick{Every: c.Tick, Advance: func(s *State) bool {
					if s.Countdown <= 1 {
						s.Countdown = 0
						return true
					}
					s.Countdown--
					return false
				}},
			},
			{
				Phase: PhaseFinishing,
				Do: func(s *State) {
					s.Scanning = false
					s.Flash = true
				},
				Say:  c.Success,
				Wait: c.Hold,
			},
			{Do: func(s *State) {
				s.Flash = false
				s.Complete = true
			}},
		},
	}
}

// FingerprintConfig times the fingerprint scan.
type FingerprintConfig struct {
	Delay   time.Duration
	Tick    time.Duration
	Step    int // percent per tick
	Hold    time.Duration
	Intro   string
	Success string
}

// DefaultFingerprint matches the reference presentation.
func DefaultFingerprint() FingerprintConfig {
	return FingerprintConfig{
		Delay:   500 * time.Millisecond,
		Tick:    100 * time.Millisecond,
		Step:    2,
		Hold:    time.Second,
		Intro:   "Please place your finger on the scanner",
		Success: "Fingerprint matched. Identity verified. Welcome MD Aasif, Dean of Student Affairs",
	}
}

// Fingerprint fills progress to exactly 100 before the confirmation line.
func Fingerprint(c FingerprintConfig) Script {
	step := max(c.Step, 1)
	return Script{
		Name: NameFingerprint,
		Steps: []Step{
			{Wait: c.Delay},
			{
				Phase:      PhaseActive,
				Do:         func(s *State) { s.Scanning = true },
				Say:        c.Intro,
				Background: true,
				Tick: &Tick{Every: c.Tick, Advance: func(s *State) bool {
					s.Progress = min(s.Progress+step, 100)
					return s.Progress == 100
				}},
			},
			{
				Phase: PhaseFinishing,
				Do: func(s *State) {
					s.Scanning = false
					s.Complete = true
				},
				Say:  c.Success,
				Wait: c.Hold,
			},
		},
	}
}

// CountdownConfig times the spoken countdown.
type CountdownConfig struct {
	Delay time.Duration
	From  int
	Pause time.Duration // after the intro line
	Gap   time.Duration // after each digit
	Hold  time.Duration // after the final line
	Intro string
	Final string
}

// DefaultCountdown matches the reference presentation.
func DefaultCountdown() CountdownConfig {
	return CountdownConfig{
		Delay: time.Second,
		From:  5,
		Pause: time.Second,
		Gap:   800 * time.Millisecond,
		Hold:  time.Second,
		Intro: "Authentication complete. Redirecting in 5 seconds.",
		Final: "Access granted",
	}
}

// SpokenDigit is how a countdown digit is voiced.
func SpokenDigit(n int) string {
	if n == 1 {
		return "one"
	}
	return strconv.Itoa(n)
}

// Countdown announces, speaks From-1 down to 1, then grants access.
func Countdown(c CountdownConfig) Script {
	steps := []Step{
		{Wait: c.Delay},
		{Phase: PhaseActive, Say: c.Intro, Wait: c.Pause},
	}
	for n := c.From - 1; n >= 1; n-- {
		steps = append(steps, Step{
			Do:   func(s *State) { s.Countdown = n },
			Say:  SpokenDigit(n),
			Wait: c.Gap,
		})
	}
	steps = append(steps, Step{
		Phase: PhaseFinishing,
		Do: func(s *State) {
			s.Countdown = 0
			s.Complete = true
		},
		Say:  c.Final,
		Wait: c.Hold,
	})
	return Script{Name: NameCountdown, Initial: State{Countdown: c.From}, Steps: steps}
}

// LaunchedConfig times the closing screen.
type LaunchedConfig struct {
	Delay time.Duration
	Hold  time.Duration // before the redirect
	Line  string
}

// DefaultLaunched matches the reference presentation.
func DefaultLaunched() LaunchedConfig {
	return LaunchedConfig{
		Delay: time.Second,
		Hold:  2 * time.Second,
		Line:  "Web launched successfully. Redirecting to SAC portal",
	}
}

// Launched confirms the launch; its completion triggers the redirect.
func Launched(c LaunchedConfig) Script {
	return Script{
		Name: NameLaunched,
		Steps: []Step{
			{Wait: c.Delay},
			{Phase: PhaseActive, Say: c.Line, Wait: c.Hold},
			{Phase: PhaseFinishing, Do: func(s *State) { s.Complete = true }},
		},
	}
}
