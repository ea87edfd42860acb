package peer

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/rtp"
	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Deskrelay/internal/remote"
)

// writeIVF writes a minimal IVF file with the given codec and frame count.
func writeIVF(t *testing.T, fourcc string, frames int) string {
	t.Helper()

	header := make([]byte, 32)
	copy(header[0:4], "DKIF")
	binary.LittleEndian.PutUint16(header[4:], 0)
	binary.LittleEndian.PutUint16(header[6:], 32)
	copy(header[8:12], fourcc)
	binary.LittleEndian.PutUint16(header[12:], 640)
	binary.LittleEndian.PutUint16(header[14:], 480)
	binary.LittleEndian.PutUint32(header[16:], 1000)
	binary.LittleEndian.PutUint32(header[20:], 10)
	binary.LittleEndian.PutUint32(header[24:], uint32(frames))

	data := header
	for i := 0; i < frames; i++ {
		frame := []byte{0x10, 0x02, 0x00, byte(i)}
		fh := make([]byte, 12)
		binary.LittleEndian.PutUint32(fh[0:], uint32(len(frame)))
		binary.LittleEndian.PutUint64(fh[4:], uint64(i))
		data = append(data, fh...)
		data = append(data, frame...)
	}

	path := filepath.Join(t.TempDir(), "screen.ivf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestOpenIVFDetectsCodec(t *testing.T) {
	tests := []struct {
		fourcc string
		mime   string
	}{
		{"VP80", pion.MimeTypeVP8},
		{"VP90", pion.MimeTypeVP9},
		{"AV01", pion.MimeTypeAV1},
	}

	for _, tt := range tests {
		t.Run(tt.fourcc, func(t *testing.T) {
			src, err := OpenIVF(writeIVF(t, tt.fourcc, 1))
			if err != nil {
				t.Fatalf("OpenIVF failed: %v", err)
			}
			defer src.Close()

			if src.Codec() != tt.mime {
				t.Errorf("Expected %s, got %s", tt.mime, src.Codec())
			}
			if w, h := src.Size(); w != 640 || h != 480 {
				t.Errorf("Expected 640x480, got %dx%d", w, h)
			}
		})
	}
}

func TestOpenIVFFailuresAreCaptureErrors(t *testing.T) {
	if _, err := OpenIVF(filepath.Join(t.TempDir(), "missing.ivf")); !errors.Is(err, remote.ErrCaptureUnavailable) {
		t.Errorf("Expected ErrCaptureUnavailable for missing file, got %v", err)
	}
	if _, err := OpenIVF(writeIVF(t, "H264", 1)); !errors.Is(err, remote.ErrCaptureUnavailable) {
		t.Errorf("Expected ErrCaptureUnavailable for unsupported codec, got %v", err)
	}
}

func TestIVFSourceLoopsUntilCancelled(t *testing.T) {
	src, err := OpenIVF(writeIVF(t, "VP80", 2))
	if err != nil {
		t.Fatalf("OpenIVF failed: %v", err)
	}
	defer src.Close()

	if src.interval != 10*time.Millisecond {
		t.Errorf("Expected 10ms frame interval, got %v", src.interval)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	if err := src.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if src.Frames() <= 2 {
		t.Errorf("Expected the source to loop past 2 frames, got %d", src.Frames())
	}
}

type fakeWriter struct {
	packets []*rtp.Packet
	closed  bool
}

func (w *fakeWriter) WriteRTP(p *rtp.Packet) error {
	w.packets = append(w.packets, p)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func packetSource(n int, final error) func() (*rtp.Packet, error) {
	i := 0
	return func() (*rtp.Packet, error) {
		if i == n {
			return nil, final
		}
		i++
		return &rtp.Packet{Header: rtp.Header{SequenceNumber: uint16(i)}, Payload: []byte{0x01}}, nil
	}
}

func TestSinkCopiesPacketsUntilEOF(t *testing.T) {
	sink := NewIVFSink("")
	w := &fakeWriter{}

	if err := sink.copy(packetSource(3, io.EOF), w); err != nil {
		t.Fatalf("copy failed: %v", err)
	}
	if len(w.packets) != 3 {
		t.Errorf("Expected 3 packets written, got %d", len(w.packets))
	}
	if w.packets[2].SequenceNumber != 3 {
		t.Errorf("Expected sequence 3, got %d", w.packets[2].SequenceNumber)
	}
	if !w.closed {
		t.Error("Expected writer to be closed")
	}
	if sink.Packets() != 3 {
		t.Errorf("Expected 3 counted packets, got %d", sink.Packets())
	}
}

func TestSinkWithoutWriterCounts(t *testing.T) {
	sink := NewIVFSink("")
	readErr := errors.New("track closed")

	if err := sink.copy(packetSource(5, readErr), nil); !errors.Is(err, readErr) {
		t.Errorf("Expected read error, got %v", err)
	}
	if sink.Packets() != 5 {
		t.Errorf("Expected 5 counted packets, got %d", sink.Packets())
	}
}

func TestRestrictiveInterfaces(t *testing.T) {
	tests := []struct {
		name string
		ips  []net.IP
		want bool
	}{
		{"eth0", []net.IP{net.ParseIP("192.168.1.10")}, false},
		{"wg0", nil, true},
		{"utun3", nil, true},
		{"CloudflareWARP", nil, true},
		{"en0", []net.IP{net.ParseIP("100.72.1.5")}, true},
		{"en0", []net.IP{net.ParseIP("100.128.0.1")}, false},
	}

	for _, tt := range tests {
		if got := restrictive(tt.name, tt.ips); got != tt.want {
			t.Errorf("restrictive(%q, %v): expected %v, got %v", tt.name, tt.ips, tt.want, got)
		}
	}
}
