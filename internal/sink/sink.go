// Package sink defines the output-device external collaborator contract
// from spec.md §6. Any capability a concrete sink doesn't implement is
// treated as a no-op by callers, not an error.
package sink

// VolumeRange describes a sink's hardware volume capability, published via
// Parameters.
type VolumeRange struct {
	HasHardwareVolume bool
	MinDB             float64
	MaxDB             float64
	CurrentDB         float64
	Muted             bool
}

// Sink is the output-device contract: start/stop the device, push PCM,
// flush unrendered audio, report queue depth, and optionally expose
// hardware volume control.
type Sink interface {
	// Start begins output at the given sample rate (stereo, 16-bit signed).
	Start(sampleRate int) error
	// Stop tears the device down.
	Stop() error
	// Play blocks until frameCount stereo frames of pcm are enqueued.
	Play(pcm []int16, frameCount int) error
	// Flush drops any buffered audio not yet rendered.
	Flush() error
	// Delay returns frames currently queued in the device, or -1 on error.
	Delay() int
	// Volume sets hardware volume to linear gain f, if supported.
	Volume(f float64) error
	// Parameters reports the sink's capability/volume-range info.
	Parameters() VolumeRange
}

// NopSink is a Sink that drops everything; useful as a default/test double
// and as a base a concrete sink can embed to pick up no-op capabilities
// it doesn't implement (internal/sink/portaudio implements every method
// itself).
type NopSink struct{}

func (NopSink) Start(int) error        { return nil }
func (NopSink) Stop() error             { return nil }
func (NopSink) Play([]int16, int) error { return nil }
func (NopSink) Flush() error            { return nil }
func (NopSink) Delay() int              { return -1 }
func (NopSink) Volume(float64) error    { return nil }
func (NopSink) Parameters() VolumeRange { return VolumeRange{} }
