package audio

import (
	"math"

	"github.com/gopxl/beep/v2"
)

// Default terminal band, roughly a telephone channel.
const (
	DefaultLowCutoff  = 300.0
	DefaultHighCutoff = 3400.0
	butterworthQ      = 1 / math.Sqrt2
)

// coeffs are biquad coefficients already divided by a0.
type coeffs struct {
	b0, b1, b2 float64
	a1, a2     float64
}

func lowPassCoeffs(sampleRate, cutoff, q float64) coeffs {
	_, cs, alpha := prewarp(sampleRate, cutoff, q)
	a0 := 1 + alpha
	return coeffs{
		b0: (1 - cs) / 2 / a0,
		b1: (1 - cs) / a0,
		b2: (1 - cs) / 2 / a0,
		a1: -2 * cs / a0,
		a2: (1 - alpha) / a0,
	}
}

func highPassCoeffs(sampleRate, cutoff, q float64) coeffs {
	_, cs, alpha := prewarp(sampleRate, cutoff, q)
	a0 := 1 + alpha
	return coeffs{
		b0: (1 + cs) / 2 / a0,
		b1: -(1 + cs) / a0,
		b2: (1 + cs) / 2 / a0,
		a1: -2 * cs / a0,
		a2: (1 - alpha) / a0,
	}
}

func prewarp(sampleRate, cutoff, q float64) (sn, cs, alpha float64) {
	omega := 2 * math.Pi * cutoff / sampleRate
	sn, cs = math.Sin(omega), math.Cos(omega)
	return sn, cs, sn / (2 * q)
}

// Biquad is a second-order IIR filter over a stereo stream.
type Biquad struct {
	src    beep.Streamer
	c      coeffs
	x1, x2 [2]float64
	y1, y2 [2]float64
}

// NewLowPass attenuates content above cutoff.
func NewLowPass(src beep.Streamer, sampleRate, cutoff, q float64) *Biquad {
	return &Biquad{src: src, c: lowPassCoeffs(sampleRate, cutoff, q)}
}

// NewHighPass attenuates content below cutoff.
func NewHighPass(src beep.Streamer, sampleRate, cutoff, q float64) *Biquad {
	return &Biquad{src: src, c: highPassCoeffs(sampleRate, cutoff, q)}
}

// Stream implements beep.Streamer.
func (f *Biquad) Stream(samples [][2]float64) (int, bool) {
	n, ok := f.src.Stream(samples)
	c := f.c
	for i := range samples[:n] {
		for ch := range 2 {
			x := samples[i][ch]
			y := c.b0*x + c.b1*f.x1[ch] + c.b2*f.x2[ch] - c.a1*f.y1[ch] - c.a2*f.y2[ch]
			f.x2[ch], f.x1[ch] = f.x1[ch], x
			f.y2[ch], f.y1[ch] = f.y1[ch], y
			samples[i][ch] = y
		}
	}
	return n, ok
}

// Err implements beep.Streamer.
func (f *Biquad) Err() error { return f.src.Err() }

// NewTerminalFilter band-limits the narrator to lowCutoff..highCutoff Hz for
// the thin intercom tone of a security console. Invalid cutoffs fall back to
// the defaults.
func NewTerminalFilter(src beep.Streamer, sampleRate, lowCutoff, highCutoff float64) beep.Streamer {
	nyquist := sampleRate / 2
	if lowCutoff <= 0 || lowCutoff >= nyquist {
		lowCutoff = DefaultLowCutoff
	}
	if highCutoff <= lowCutoff || highCutoff >= nyquist {
		highCutoff = max(DefaultHighCutoff, lowCutoff*2)
		highCutoff = min(highCutoff, nyquist*0.9)
	}
	return NewLowPass(NewHighPass(src, sampleRate, lowCutoff, butterworthQ), sampleRate, highCutoff, butterworthQ)
}
