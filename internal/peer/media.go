package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"

	"github.com/BioHazard786/Deskrelay/internal/remote"
)

const defaultFrameInterval = 33 * time.Millisecond

// Source produces the host's screen video.
type Source interface {
	Track() pion.TrackLocal
	Run(ctx context.Context) error
	Close() error
}

// IVFSource replays an IVF recording as a live track, looping at the end.
type IVFSource struct {
	file     *os.File
	reader   *ivfreader.IVFReader
	header   *ivfreader.IVFFileHeader
	track    *pion.TrackLocalStaticSample
	interval time.Duration
	frames   atomic.Uint64

	closeOnce sync.Once
}

// OpenIVF opens path and prepares a track for its codec. Every failure wraps
// remote.ErrCaptureUnavailable.
func OpenIVF(path string) (*IVFSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, remote.WrapError("open video source", remote.ErrCaptureUnavailable, err.Error())
	}

	reader, header, err := ivfreader.NewWith(file)
	if err != nil {
		file.Close()
		return nil, remote.WrapError("read video source", remote.ErrCaptureUnavailable, err.Error())
	}

	mime, err := mimeForFourCC(header.FourCC)
	if err != nil {
		file.Close()
		return nil, remote.WrapError("read video source", remote.ErrCaptureUnavailable, err.Error())
	}

	track, err := pion.NewTrackLocalStaticSample(pion.RTPCodecCapability{MimeType: mime}, "screen", "deskrelay")
	if err != nil {
		file.Close()
		return nil, remote.NewError("create video track", err)
	}

	return &IVFSource{
		file:     file,
		reader:   reader,
		header:   header,
		track:    track,
		interval: frameInterval(header),
	}, nil
}

func mimeForFourCC(fourcc string) (string, error) {
	switch fourcc {
	case "VP80":
		return pion.MimeTypeVP8, nil
	case "VP90":
		return pion.MimeTypeVP9, nil
	case "AV01":
		return pion.MimeTypeAV1, nil
	}
	return "", fmt.Errorf("unsupported codec %q", fourcc)
}

func frameInterval(h *ivfreader.IVFFileHeader) time.Duration {
	if h.TimebaseDenominator == 0 || h.TimebaseNumerator == 0 {
		return defaultFrameInterval
	}
	d := time.Duration(float64(time.Second) * float64(h.TimebaseNumerator) / float64(h.TimebaseDenominator))
	if d <= 0 {
		return defaultFrameInterval
	}
	return d
}

func (s *IVFSource) Track() pion.TrackLocal {
	return s.track
}

// Codec is the mime type of the track.
func (s *IVFSource) Codec() string {
	return s.track.Codec().MimeType
}

// Size is the frame size declared by the file header.
func (s *IVFSource) Size() (int, int) {
	return int(s.header.Width), int(s.header.Height)
}

// Frames counts samples written so far.
func (s *IVFSource) Frames() uint64 {
	return s.frames.Load()
}

// Run writes one frame per tick until ctx is done or the file fails.
func (s *IVFSource) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		frame, _, err := s.reader.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			if err := s.rewind(); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		if err := s.track.WriteSample(media.Sample{Data: frame, Duration: s.interval}); err != nil {
			return err
		}
		s.frames.Add(1)
	}
}

func (s *IVFSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	reader, _, err := ivfreader.NewWith(s.file)
	if err != nil {
		return err
	}
	s.reader = reader
	return nil
}

func (s *IVFSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.file.Close()
	})
	return err
}

// PacketWriter persists RTP packets. *ivfwriter.IVFWriter satisfies it.
type PacketWriter interface {
	WriteRTP(packet *rtp.Packet) error
	Close() error
}

// Sink consumes the guest's inbound video.
type Sink interface {
	Consume(track *pion.TrackRemote) error
	Packets() uint64
}

// IVFSink records inbound VP8 or AV1 video to an IVF file. With an empty
// path packets are counted and discarded.
type IVFSink struct {
	path    string
	packets atomic.Uint64
}

func NewIVFSink(path string) *IVFSink {
	return &IVFSink{path: path}
}

func (s *IVFSink) Packets() uint64 {
	return s.packets.Load()
}

// Consume reads track until it ends.
func (s *IVFSink) Consume(track *pion.TrackRemote) error {
	read := func() (*rtp.Packet, error) {
		pkt, _, err := track.ReadRTP()
		return pkt, err
	}

	if s.path == "" {
		return s.copy(read, nil)
	}

	mime := track.Codec().MimeType
	if mime != pion.MimeTypeVP8 && mime != pion.MimeTypeAV1 {
		s.copy(read, nil)
		return remote.WrapError("record video", remote.ErrCaptureUnavailable, "cannot record "+mime)
	}

	w, err := ivfwriter.New(s.path, ivfwriter.WithCodec(mime))
	if err != nil {
		return remote.NewError("create recording", err)
	}
	return s.copy(read, w)
}

// copy moves packets from read to w until read fails. w may be nil.
func (s *IVFSink) copy(read func() (*rtp.Packet, error), w PacketWriter) error {
	if w != nil {
		defer w.Close()
	}

	for {
		pkt, err := read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		s.packets.Add(1)

		if w == nil {
			continue
		}
		if err := w.WriteRTP(pkt); err != nil {
			return remote.NewError("write recording", err)
		}
	}
}
