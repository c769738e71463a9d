// Package flow sequences the authentication stages and owns the one mounted
// stage component.
package flow

// Stage names one screen of the flow.
type Stage string

const (
	Welcome     Stage = "welcome"
	Face        Stage = "face"
	Fingerprint Stage = "fingerprint"
	Countdown   Stage = "countdown"
	Launch      Stage = "launch"
	Complete    Stage = "complete"
)

// Order is the fixed transition sequence.
var Order = []Stage{Welcome, Face, Fingerprint, Countdown, Launch, Complete}

// Index returns the position of s in Order, or -1.
func (s Stage) Index() int {
	for i, o := range Order {
		if o == s {
			return i
		}
	}
	return -1
}

// Next returns the stage after s. Complete and unknown stages have none.
func (s Stage) Next() (Stage, bool) {
	i := s.Index()
	if i < 0 || i == len(Order)-1 {
		return s, false
	}
	return Order[i+1], true
}

// Valid reports whether s is one of Order.
func (s Stage) Valid() bool { return s.Index() >= 0 }
