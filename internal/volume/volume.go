// Package volume implements the 16.16 fixed-point attenuation and
// triangular-dither stage from spec.md §4.I/§4.G, and the player_volume
// policy from spec.md §4.I that maps an AirPlay volume in [-30, 0] ∪
// {-144} to a linear software gain (or passes through to hardware volume
// when the sink exposes one).
package volume

import (
	"math"
	"sync"
)

const unityFixVolume = 0x10000

// Dither is a 69069-multiplier LCG triangular (TPDF) dither source. Both
// taps start at 0 (spec.md §9: the source this is grounded on leaves
// rand_a uninitialized on the first call; an indeterminate second tap is
// a bug, not a feature, so both start at zero here).
type Dither struct {
	randA int32
	randB int32
}

func (d *Dither) next() int32 {
	d.randB = d.randA
	d.randA = d.randA*69069 + 3
	return int32(int16(d.randA)) - int32(int16(d.randB))
}

// DitheredVol scales one 16-bit sample by fixVolume (a 16.16 fixed-point
// linear gain, unity == 0x10000) and, when attenuating below unity, adds
// TPDF dither from d before truncating back to 16 bits.
func DitheredVol(d *Dither, x int16, fixVolume int32) int16 {
	out := int64(x) * int64(fixVolume)
	if fixVolume < unityFixVolume {
		out += int64(d.next())
	}
	out >>= 16
	if out > math.MaxInt16 {
		out = math.MaxInt16
	} else if out < math.MinInt16 {
		out = math.MinInt16
	}
	return int16(out)
}

// HardwareVolume is implemented by sinks that expose their own volume
// control (spec.md §4.I: "if sink exposes hardware volume, pass through
// f; set software gain to unity").
type HardwareVolume interface {
	SetHardwareVolume(f float64) error
}

// AttnMapper maps an AirPlay volume f in [-30,0] ("min" is caller-chosen
// wire convention) to attenuation in centi-dB, the vol2attn(f, 0, -4810)
// collaborator from spec.md §4.I.
type AttnMapper func(f float64, maxDB, minDB int) int

// Controller owns software_mixer_volume/fix_volume under vol_mutex, per
// spec.md §5.
type Controller struct {
	mu sync.Mutex

	hw          HardwareVolume
	mapper      AttnMapper
	mixerVolume float64
	fixVolume   int32
}

// New constructs a Controller. hw may be nil if the sink has no hardware
// volume control; mapper may be nil to use DefaultAttnMapper.
func New(hw HardwareVolume, mapper AttnMapper) *Controller {
	if mapper == nil {
		mapper = DefaultAttnMapper
	}
	return &Controller{hw: hw, mapper: mapper, mixerVolume: 1.0, fixVolume: unityFixVolume}
}

// airplayVolumeFloor is the bottom of AirPlay's non-mute volume range,
// spec.md §4.I's "f ∈ [-30, 0]".
const airplayVolumeFloor = -30.0

// DefaultAttnMapper linearly interpolates an AirPlay volume f ∈ [-30,0]
// into [minDB, maxDB] centi-dB, the simplest vol2attn(f, 0, -4810)
// collaborator spec.md §4.I describes: f == 0 maps to maxDB (no
// attenuation), f == -30 maps to minDB (maximum attenuation).
func DefaultAttnMapper(f float64, maxDB, minDB int) int {
	frac := (f - airplayVolumeFloor) / -airplayVolumeFloor
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return minDB + int(math.Round(frac*float64(maxDB-minDB)))
}

// SetVolume implements player_volume(f): spec.md §4.I.
func (c *Controller) SetVolume(f float64) error {
	if c.hw != nil {
		if err := c.hw.SetHardwareVolume(f); err != nil {
			return err
		}
		c.mu.Lock()
		c.mixerVolume = 1.0
		c.fixVolume = unityFixVolume
		c.mu.Unlock()
		return nil
	}

	var linear float64
	if f == -144 {
		linear = 0
	} else {
		attn := c.mapper(f, 0, -4810)
		linear = math.Pow(10, float64(attn)/1000)
	}

	c.mu.Lock()
	c.mixerVolume = linear
	c.fixVolume = int32(math.Round(65536 * linear))
	c.mu.Unlock()
	return nil
}

// FixVolume returns the current 16.16 fixed-point gain, snapshotted once
// per egress frame per spec.md §9 ("do not re-enter the volume mutex per
// sample").
func (c *Controller) FixVolume() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fixVolume
}

// MixerVolume returns the current linear software gain.
func (c *Controller) MixerVolume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mixerVolume
}

// IsUnity reports whether the current fix_volume is exactly unity, the
// condition under which egress may skip the stuffer's volume pass
// entirely (spec.md §4.F).
func (c *Controller) IsUnity() bool {
	return c.FixVolume() == unityFixVolume
}
