// Package portaudio implements the sink.Sink contract (spec.md §6) on top
// of github.com/gordonklaus/portaudio, the same audio-device library
// doismellburning-samoyed uses to talk to a real output device.
package portaudio

import (
	"fmt"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"airsync/internal/sink"
)

const framesPerBuffer = 352 // one frame_size worth of stereo samples

// Sink drives a stereo 16-bit output stream through PortAudio's blocking
// API: Play copies into the stream's own buffer and calls Write, which
// blocks until the device has room, matching sink.Sink's "blocking,
// returns when enqueued" contract directly.
type Sink struct {
	mu     sync.Mutex
	stream *pa.Stream
	buf    []int16
	gain   float64
}

// New constructs a Sink. PortAudio's global library state must already be
// initialized by the caller (pa.Initialize), mirroring how PortAudio-based
// programs own that lifecycle at the process level, not per-stream.
func New() *Sink {
	return &Sink{gain: 1.0}
}

func (s *Sink) Start(sampleRate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return nil
	}
	buf := make([]int16, framesPerBuffer*2)
	stream, err := pa.OpenDefaultStream(0, 2, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return fmt.Errorf("portaudio: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		return fmt.Errorf("portaudio: start stream: %w", err)
	}
	s.stream = stream
	s.buf = buf
	return nil
}

func (s *Sink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	err := s.stream.Stop()
	cerr := s.stream.Close()
	s.stream = nil
	s.buf = nil
	if err != nil {
		return fmt.Errorf("portaudio: stop stream: %w", err)
	}
	if cerr != nil {
		return fmt.Errorf("portaudio: close stream: %w", cerr)
	}
	return nil
}

// Play writes frameCount stereo frames from pcm to the device in chunks of
// framesPerBuffer, blocking (per PortAudio's blocking-stream semantics)
// until each chunk has been enqueued.
func (s *Sink) Play(pcm []int16, frameCount int) error {
	s.mu.Lock()
	stream, buf := s.stream, s.buf
	s.mu.Unlock()
	if stream == nil {
		return fmt.Errorf("portaudio: play called before start")
	}
	need := frameCount * 2
	if need > len(pcm) {
		need = len(pcm)
	}
	for off := 0; off < need; off += len(buf) {
		n := copy(buf, pcm[off:need])
		for i := n; i < len(buf); i++ {
			buf[i] = 0 // pad a short final chunk with silence
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("portaudio: write: %w", err)
		}
	}
	return nil
}

func (s *Sink) Flush() error {
	// PortAudio's blocking stream API has no discard-queued-frames call;
	// AbortStream drops anything in flight and needs a subsequent Start.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	if err := s.stream.Abort(); err != nil {
		return err
	}
	if err := s.stream.Start(); err != nil {
		return err
	}
	return nil
}

func (s *Sink) Delay() int {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return -1
	}
	info := stream.Info()
	if info == nil {
		return -1
	}
	return int(info.OutputLatency.Seconds() * info.SampleRate)
}

func (s *Sink) Volume(f float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gain = f
	return nil
}

func (s *Sink) Parameters() sink.VolumeRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sink.VolumeRange{
		HasHardwareVolume: false,
		MinDB:             -144,
		MaxDB:             0,
		CurrentDB:         0,
	}
}
