package audio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

type container int

const (
	unknownContainer container = iota
	wavContainer
	mp3Container
)

// sniff identifies the container from the first bytes of a clip.
func sniff(head []byte) container {
	switch {
	case len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")):
		return wavContainer
	case bytes.HasPrefix(head, []byte("ID3")):
		return mp3Container
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0: // MPEG frame sync
		return mp3Container
	}
	return unknownContainer
}

type fileReader struct {
	*bufio.Reader
	io.Closer
}

// DecodeMedia opens the MP3 or WAV clip at path.
func DecodeMedia(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}
	r := fileReader{bufio.NewReader(f), f}
	head, _ := r.Peek(12)

	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch sniff(head) {
	case wavContainer:
		s, format, err = wav.Decode(r)
	case mp3Container:
		s, format, err = mp3.Decode(r)
	default:
		err = errors.New("unrecognized audio container")
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return s, format, nil
}
