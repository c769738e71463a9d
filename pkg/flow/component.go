package flow

import (
	"authflow/pkg/loop"
	"authflow/pkg/stage"
)

// Component is a mountable stage. onComplete must be called at most once and
// never from Unmount.
type Component interface {
	Mount(onComplete func())
	Unmount()
}

// Pressable components complete on a user action.
type Pressable interface {
	Press() bool
	Label() string
}

// Stateful components expose their sub-state.
type Stateful interface {
	State() stage.State
}

// Factory builds the component for s. onChange receives the component's
// state changes, on the loop.
type Factory func(s Stage, onChange func(stage.State)) Component

// Scripts configures the standard stage set.
type Scripts struct {
	WelcomeLabel string
	Face         stage.FaceConfig
	Fingerprint  stage.FingerprintConfig
	Countdown    stage.CountdownConfig
	LaunchLabel  string
	Launched     stage.LaunchedConfig
}

// DefaultScripts returns the reference presentation.
func DefaultScripts() Scripts {
	return Scripts{
		WelcomeLabel: "INITIALIZE SCAN",
		Face:         stage.DefaultFace(),
		Fingerprint:  stage.DefaultFingerprint(),
		Countdown:    stage.DefaultCountdown(),
		LaunchLabel:  "LAUNCH WEB",
		Launched:     stage.DefaultLaunched(),
	}
}

// NewFactory builds gates for welcome and launch and script drivers for the
// timed stages.
func NewFactory(l loop.Loop, n stage.Narrator, s Scripts) Factory {
	return func(st Stage, onChange func(stage.State)) Component {
		switch st {
		case Welcome:
			return stage.NewGate(string(Welcome), s.WelcomeLabel)
		case Face:
			return stage.NewDriver(l, n, stage.Face(s.Face), onChange)
		case Fingerprint:
			return stage.NewDriver(l, n, stage.Fingerprint(s.Fingerprint), onChange)
		case Countdown:
			return stage.NewDriver(l, n, stage.Countdown(s.Countdown), onChange)
		case Launch:
			return stage.NewGate(string(Launch), s.LaunchLabel)
		case Complete:
			return stage.NewDriver(l, n, stage.Launched(s.Launched), onChange)
		}
		return nil
	}
}
