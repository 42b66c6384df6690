package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// Recorder writes every remote track it is given into Dir: Opus audio as
// Ogg, VP8 video as IVF. One file per track.
type Recorder struct {
	Dir string
	now func() time.Time
}

func NewRecorder(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.MediaAcquisitionError("record", err)
	}
	return &Recorder{Dir: dir, now: time.Now}, nil
}

// SinkFor opens the file for one track of peer.
func (r *Recorder) SinkFor(peer domain.Identity, kind webrtc.RTPCodecType) (Sink, error) {
	base := fmt.Sprintf("%s-%s-%d", fileSafe(string(peer)), kind, r.now().UnixMilli())
	switch kind {
	case webrtc.RTPCodecTypeAudio:
		w, err := oggwriter.New(filepath.Join(r.Dir, base+".ogg"), 48000, 2)
		if err != nil {
			return nil, domain.MediaAcquisitionError("record", err)
		}
		return w, nil
	case webrtc.RTPCodecTypeVideo:
		w, err := ivfwriter.New(filepath.Join(r.Dir, base+".ivf"), ivfwriter.WithCodec(webrtc.MimeTypeVP8))
		if err != nil {
			return nil, domain.MediaAcquisitionError("record", err)
		}
		return w, nil
	}
	return nil, domain.MediaAcquisitionError("record", fmt.Errorf("unsupported kind %s", kind))
}

func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, s)
}
