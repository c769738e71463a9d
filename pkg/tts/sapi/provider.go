// Package sapi speaks through the Windows SAPI5 voices via OLE automation.
// On other platforms every call fails with ole's not-implemented error.
package sapi

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"authflow/pkg/tts"
	"authflow/pkg/voice"
)

const providerName = "sapi"

// SpFileStream open mode.
const ssfmCreateForWrite = 3

// Provider implements tts.Provider using Windows SAPI5 via OLE.
type Provider struct {
	mu sync.Mutex
}

// NewProvider creates a new SAPI5 provider.
func NewProvider() *Provider {
	return &Provider{}
}

func (p *Provider) Name() string { return providerName }

// withVoice runs fn against a fresh SpVoice on an initialized apartment.
func (p *Provider) withVoice(fn func(sp *ole.IDispatch) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ole.CoInitialize(0); err == nil {
		defer ole.CoUninitialize()
	}

	unknown, err := oleutil.CreateObject("SAPI.SpVoice")
	if err != nil {
		return tts.Fatalf(0, err, "failed to create SAPI.SpVoice")
	}
	sp, err := unknown.QueryInterface(ole.IID_IDispatch)
	unknown.Release()
	if err != nil {
		return fmt.Errorf("QueryInterface SpVoice failed: %w", err)
	}
	defer sp.Release()
	return fn(sp)
}

// Synthesize generates a .wav file using SAPI5.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request, outputPath string) (format string, err error) {
	start := time.Now()
	defer func() { tts.Observe(providerName, start, err) }()

	err = p.withVoice(func(sp *ole.IDispatch) error {
		if req.Voice != "" {
			p.selectVoice(sp, req.Voice)
		}
		_, _ = oleutil.PutProperty(sp, "Rate", int32(sapiRate(req.Rate)))
		_, _ = oleutil.PutProperty(sp, "Volume", int32(sapiVolume(req.Volume)))

		unknownStream, err := oleutil.CreateObject("SAPI.SpFileStream")
		if err != nil {
			return fmt.Errorf("failed to create SAPI.SpFileStream: %w", err)
		}
		stream, err := unknownStream.QueryInterface(ole.IID_IDispatch)
		unknownStream.Release()
		if err != nil {
			return fmt.Errorf("QueryInterface SpFileStream failed: %w", err)
		}
		defer stream.Release()

		if _, err := oleutil.CallMethod(stream, "Open", outputPath, ssfmCreateForWrite, false); err != nil {
			return fmt.Errorf("stream Open failed: %w", err)
		}
		defer func() { _, _ = oleutil.CallMethod(stream, "Close") }()

		if _, err := oleutil.PutPropertyRef(sp, "AudioOutputStream", stream); err != nil {
			return fmt.Errorf("failed to set AudioOutputStream: %w", err)
		}
		if _, err := oleutil.CallMethod(sp, "Speak", withPitch(req.Text, req.Pitch), svsfIsXML); err != nil {
			return fmt.Errorf("speak failed: %w", err)
		}
		return nil
	})
	if err != nil {
		tts.Log(providerName, req.Text, 0, err)
		return "", err
	}
	tts.Log(providerName, req.Text, 200, nil)
	return "wav", nil
}

// Speak flag: parse the text as SAPI XML so the pitch tag applies.
const svsfIsXML = 8

// Voices lists available SAPI voices.
func (p *Provider) Voices(ctx context.Context) ([]voice.Descriptor, error) {
	var voices []voice.Descriptor
	err := p.withVoice(func(sp *ole.IDispatch) error {
		tokensVar, err := oleutil.CallMethod(sp, "GetVoices")
		if err != nil {
			return fmt.Errorf("failed to get voices collection: %w", err)
		}
		tokens := tokensVar.ToIDispatch()
		if tokens == nil {
			return fmt.Errorf("voices collection is nil")
		}
		defer tokens.Release()

		return oleutil.ForEach(tokens, func(v *ole.VARIANT) error {
			if d, ok := extractVoice(v); ok {
				voices = append(voices, d)
			}
			return nil
		})
	})
	return voices, err
}

func extractVoice(v *ole.VARIANT) (voice.Descriptor, bool) {
	item := v.ToIDispatch()
	if item == nil {
		return voice.Descriptor{}, false
	}
	defer item.Release()

	idVar, err := oleutil.CallMethod(item, "GetId")
	if err != nil || idVar == nil {
		return voice.Descriptor{}, false
	}
	d := voice.Descriptor{ID: idVar.ToString()}
	if desc, err := oleutil.CallMethod(item, "GetDescription", int32(0)); err == nil && desc != nil {
		d.Name = desc.ToString()
	}
	if g, err := oleutil.CallMethod(item, "GetAttribute", "Gender"); err == nil && g != nil {
		d.Gender = voice.ParseGender(g.ToString())
	}
	if l, err := oleutil.CallMethod(item, "GetAttribute", "Language"); err == nil && l != nil {
		d.Locale = localeFromLCID(l.ToString())
	}
	return d, true
}

func (p *Provider) selectVoice(sp *ole.IDispatch, voiceID string) {
	tokensVar, err := oleutil.CallMethod(sp, "GetVoices", "", "")
	if err != nil {
		return
	}
	tokens := tokensVar.ToIDispatch()
	if tokens == nil {
		return
	}
	defer tokens.Release()

	_ = oleutil.ForEach(tokens, func(v *ole.VARIANT) error {
		item := v.ToIDispatch()
		if item == nil {
			return nil
		}
		defer item.Release()
		idVar, _ := oleutil.CallMethod(item, "GetId")
		if idVar != nil && idVar.ToString() == voiceID {
			_, _ = oleutil.PutPropertyRef(sp, "Voice", item)
		}
		return nil
	})
}

// sapiRate maps a rate multiplier onto SAPI's -10..10 scale, where each
// step is roughly 10% faster or slower.
func sapiRate(mult float64) int {
	if mult <= 0 {
		return 0
	}
	r := int(math.Round(10 * math.Log(mult) / math.Log(3)))
	return max(-10, min(10, r))
}

func sapiVolume(v float64) int {
	if v <= 0 || v > 1 {
		return 100
	}
	return int(math.Round(v * 100))
}

// withPitch wraps text in a SAPI XML pitch tag (-10..10).
func withPitch(text string, pitch float64) string {
	escaped := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(text)
	if pitch <= 0 || pitch == 1 {
		return escaped
	}
	middle := max(-10, min(10, int(math.Round((pitch-1)*10))))
	return fmt.Sprintf(`<pitch middle="%d">%s</pitch>`, middle, escaped)
}

var lcidLocales = map[uint64]string{
	0x0409: "en-US",
	0x0809: "en-GB",
	0x0c09: "en-AU",
	0x1009: "en-CA",
	0x4009: "en-IN",
	0x1809: "en-IE",
	0x0407: "de-DE",
	0x040c: "fr-FR",
	0x0c0a: "es-ES",
	0x0410: "it-IT",
	0x0411: "ja-JP",
	0x0804: "zh-CN",
}

// localeFromLCID converts SAPI's Language attribute ("809" or "409;9") to a
// BCP 47 tag. Unknown LCIDs yield an empty locale.
func localeFromLCID(attr string) string {
	first, _, _ := strings.Cut(attr, ";")
	id, err := strconv.ParseUint(strings.TrimSpace(first), 16, 32)
	if err != nil {
		return ""
	}
	return lcidLocales[id]
}
