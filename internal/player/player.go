// Package player implements the lifecycle API from spec.md §4.K:
// play/stop/flush/volume control, owning construction and teardown of
// every other component for one streaming session. Grounded on the
// teacher's bridge/media_bridge.go Start/Stop (spawn goroutines via a
// context.CancelFunc and sync.WaitGroup, tear down cleanly on Stop).
package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"airsync/internal/alac"
	"airsync/internal/anchor"
	"airsync/internal/clock"
	"airsync/internal/egress"
	"airsync/internal/flush"
	"airsync/internal/ingress"
	"airsync/internal/preroll"
	"airsync/internal/resend"
	"airsync/internal/ring"
	"airsync/internal/sink"
	"airsync/internal/stats"
	"airsync/internal/stuff"
	"airsync/internal/streamcrypto"
	"airsync/internal/volume"
	"airsync/internal/seqnum"
)

// StreamConfig is the play(stream_cfg) input from spec.md §6: AES
// key/IV/encrypted flag and the 12-entry format descriptor.
type StreamConfig struct {
	Encrypted bool
	AESKey    []byte
	AESIV     []byte
	FormatVec alac.FormatVector
}

// Config is the recognized-options table from spec.md §6.
type Config struct {
	Latency                    int64
	AudioBackendLatencyOffset  int64
	AudioBackendBufferDesired  int64
	Tolerance                  int64
	ResyncThreshold            int64
	PacketStuffing             string // "basic" | "soxr"
	BufferStartFill            int
	TimeoutSeconds             int64
	DontCheckTimeout           bool
	StatisticsRequested        bool
	RingCapacity               int
}

// Session is one play()..stop() lifetime of the core.
type Session struct {
	cfg Config

	ring    *ring.Ring
	flush   *flush.Controller
	ingress *ingress.Session
	egress  *egress.Loop
	preroll *preroll.State
	vol     *volume.Controller
	stats   *stats.Window
	codec   *alac.Codec

	sink     sink.Sink
	anchor   anchor.Provider
	resender resend.Sender
	clk      clock.Clock

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	stopOnce sync.Once

	shutdownRequested chan struct{}
	shutdownOnce      sync.Once
}

// New constructs a Session. sinkImpl/anchorProvider/resender are the
// external collaborators from spec.md §6; clk defaults to a real
// monotonic clock if nil.
func New(cfg Config, sinkImpl sink.Sink, anchorProvider anchor.Provider, resender resend.Sender, clk clock.Clock) *Session {
	if clk == nil {
		clk = clock.NewMonotonic()
	}
	return &Session{
		cfg: cfg, sink: sinkImpl, anchor: anchorProvider, resender: resender, clk: clk,
		shutdownRequested: make(chan struct{}),
	}
}

// ShutdownRequested is closed when spec.md §4.F step 1's service-timeout
// check fires: the caller should observe this and initiate its own
// teardown (the core itself never self-stops on timeout, per spec.md §7).
func (s *Session) ShutdownRequested() <-chan struct{} {
	return s.shutdownRequested
}

// Play implements spec.md §4.K's play(stream_cfg): install decrypt/decode
// state, allocate the ring, spawn the egress loop, and start the sink.
func (s *Session) Play(streamCfg StreamConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	codec, err := alac.New(streamCfg.FormatVec)
	if err != nil {
		return fmt.Errorf("player: %w", err)
	}
	s.codec = codec

	var decrypter ingress.Decrypter
	if streamCfg.Encrypted {
		d, err := streamcrypto.New(streamCfg.AESKey, streamCfg.AESIV)
		if err != nil {
			return fmt.Errorf("player: %w", err)
		}
		decrypter = d
	} else {
		decrypter = passthroughDecrypter{}
	}

	capacity := s.cfg.RingCapacity
	if capacity == 0 {
		capacity = 512
	}
	s.ring = ring.New(capacity, codec.FrameSize())
	s.flush = &flush.Controller{}
	var resender ingress.Resender = resendAdapter{}
	if s.resender != nil {
		resender = s.resender
	}
	s.ingress = ingress.NewSession(s.ring, s.flush, decrypter, codec, resender)
	s.preroll = preroll.NewState()
	var hw volume.HardwareVolume
	if s.sink.Parameters().HasHardwareVolume {
		hw = sinkHardwareVolume{s.sink}
	}
	s.vol = volume.New(hw, nil)
	s.stats = stats.NewWindow()

	var stuffer egress.Stuffer
	switch s.cfg.PacketStuffing {
	case "soxr":
		stuffer = highQualityAdapter{hq: stuff.NewHighQuality(), vol: s.vol}
	default:
		stuffer = basicAdapter{b: stuff.NewBasic(nil)}
	}

	egressParams := egress.Params{
		Latency:                    s.cfg.Latency,
		BackendLatencyOffset:       s.cfg.AudioBackendLatencyOffset,
		BackendBufferDesiredLength: s.cfg.AudioBackendBufferDesired,
		Tolerance:                  s.cfg.Tolerance,
		ResyncThreshold:            s.cfg.ResyncThreshold,
		FrameSize:                  codec.FrameSize(),
		SampleRate:                 streamCfg.FormatVec.SamplingRate(),
		TimeoutSeconds:             s.cfg.TimeoutSeconds,
		DontCheckTimeout:           s.cfg.DontCheckTimeout,
	}
	s.egress = egress.NewLoop(s.ring, s.anchor, s.clk, s.sink, s.resender, stuffer, s.stats, egressParams)
	s.egress.FlushFn = func(ts seqnum.Timestamp) { s.Flush(ts) }
	s.egress.ShutdownFn = func() { s.shutdownOnce.Do(func() { close(s.shutdownRequested) }) }

	if err := s.sink.Start(streamCfg.FormatVec.SamplingRate()); err != nil {
		return fmt.Errorf("player: sink start: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.runEgress(ctx)

	return nil
}

// Stop implements spec.md §4.K's stop(): signal, join, stop sink. The
// codec and ring are not released explicitly; they stay referenced by the
// Session.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		s.ingress.Flowcontrol.Broadcast()
		s.wg.Wait()
	})
	return s.sink.Stop()
}

// Flush implements spec.md §4.K's flush(ts).
func (s *Session) Flush(ts seqnum.Timestamp) {
	s.flush.Request(ts)
}

// SetVolume implements spec.md §4.I's player_volume(f).
func (s *Session) SetVolume(f float64) error {
	return s.vol.SetVolume(f)
}

// PutPacket forwards an inbound packet to the ingress path.
func (s *Session) PutPacket(seq seqnum.Seq, ts seqnum.Timestamp, payload []byte) error {
	return s.ingress.PutPacket(seq, ts, payload)
}

// runEgress is the egress/sync loop goroutine (spec.md §4.F), wired
// through preroll (§4.E) and the flush controller (§4.D).
func (s *Session) runEgress(ctx context.Context) {
	defer s.wg.Done()
	frameSize := s.egress.Params.FrameSize

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.ingress.Mu.Lock()
		lastAudioPacket := s.ingress.TimeOfLastAudioPacket
		s.ingress.Mu.Unlock()
		s.egress.ServiceTimeout(lastAudioPacket)

		if requested, _ := s.flush.Pending(); requested {
			// ring_resync, spec.md §4.D: drop all ring state, desync
			// cursors, re-enter pre-roll. The flush boundary itself
			// lingers (cleared by ingress.PutPacket once a later packet
			// arrives) as the low-pass filter spec.md describes.
			_ = s.sink.Flush()
			s.ring.ClearAll()
			s.ingress.Mu.Lock()
			s.ingress.ABSynced = false
			s.ingress.ABRead = 0
			s.ingress.ABWrite = 0
			s.ingress.Mu.Unlock()
			s.preroll.Reset()
			s.egress.ABRead = 0
			s.egress.ABWrite = 0
			s.egress.LastSeqnoRead = -1
			s.flush.ClearRequested()
		}

		s.ingress.Mu.Lock()
		slot := s.ring.SlotFor(s.egress.ABRead)
		ready, ts := slot.Ready, slot.Timestamp
		s.ingress.Mu.Unlock()

		if s.preroll.Buffering {
			// FlushedLate and Overshot both request a flush through
			// s.flush rather than mutating ring/ingress state directly;
			// the flush-pending block above performs the actual
			// sink.Flush()+ring_resync on the next iteration, so the
			// Outcome itself needs no further handling here.
			preroll.Step(s.preroll, ready, ts, s.anchor, s.clk, s.sink, s.flush, preroll.Params{
				Latency:              s.egress.Params.Latency,
				BackendLatencyOffset: s.egress.Params.BackendLatencyOffset,
				FrameSize:            frameSize,
				SampleRate:           s.egress.Params.SampleRate,
			})
			time.Sleep(time.Millisecond)
			continue
		}

		if !s.egress.ReleaseDecision(ts, ready) {
			s.ingress.Flowcontrol.L.Lock()
			waitDeadline := time.Duration(float64(4*frameSize) / 3 / float64(s.egress.Params.SampleRate) * float64(time.Second))
			timer := time.AfterFunc(waitDeadline, func() { s.ingress.Flowcontrol.Broadcast() })
			s.ingress.Flowcontrol.Wait()
			timer.Stop()
			s.ingress.Flowcontrol.L.Unlock()
			continue
		}

		s.egress.LastChanceResend()

		var pcm []int16
		synthetic := false
		if !ready {
			pcm = make([]int16, frameSize*2)
			s.stats.RecordMissing()
			synthetic = true
		} else {
			pcm = make([]int16, frameSize*2)
			copy(pcm, slot.PCM)
		}

		syncError, currentDelay := s.egress.SyncError(ts)
		s.stats.RecordDACQueueLen(currentDelay)
		amount := s.egress.CorrectionChoice(syncError, currentDelay)

		out := make([]int16, (frameSize+1)*2)
		fixVolume := s.vol.FixVolume()
		var n int
		if amount == 0 && s.vol.IsUnity() {
			copy(out, pcm)
			n = frameSize
		} else {
			n = s.egress.Stuffer.Stuff(pcm, frameSize, amount, fixVolume, out)
		}
		_ = s.sink.Play(out[:n*2], n)

		s.egress.ResyncWatchdog(syncError, ts)
		s.stats.Observe(int32(syncError), int32(amount))
		s.egress.SequenceAudit(slot.Sequence, synthetic)
		s.egress.AdvanceABRead()
	}
}

// sinkHardwareVolume adapts sink.Sink's Volume method to the narrower
// volume.HardwareVolume contract, keeping internal/volume decoupled from
// the full sink interface.
type sinkHardwareVolume struct{ s sink.Sink }

func (h sinkHardwareVolume) SetHardwareVolume(f float64) error { return h.s.Volume(f) }

type passthroughDecrypter struct{}

func (passthroughDecrypter) Decrypt(payload []byte) []byte { return payload }

// resendAdapter lets ingress.Session's resend.Sender-shaped dependency
// stay nil-safe when no resender was configured; player wires the real
// resend.Sender in at construction when one is supplied.
type resendAdapter struct{}

func (resendAdapter) RequestResend(seqnum.Seq, int) error { return nil }

type basicAdapter struct{ b *stuff.Basic }

func (a basicAdapter) Stuff(in []int16, frameSize, stuffAmount int, fixVolume int32, out []int16) int {
	return a.b.Stuff(in, frameSize, stuffAmount, fixVolume, out)
}

type highQualityAdapter struct {
	hq  *stuff.HighQuality
	vol *volume.Controller
}

func (a highQualityAdapter) Stuff(in []int16, frameSize, stuffAmount int, fixVolume int32, out []int16) int {
	return a.hq.Stuff(in, frameSize, stuffAmount, a.vol.MixerVolume(), fixVolume, out)
}
