// Package config loads the recognized-options table from spec.md §6: a
// YAML file mapping directly onto player.Config's tunables, plus the
// network/device wiring main needs that the core itself doesn't own.
// Grounded on the teacher's bridge/config.go: a defaults-first struct
// populated from a parallel yaml-tagged wire struct, with per-field
// validation producing a descriptive error instead of a zero value.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultLatency                     = 88200
	defaultAudioBackendBufferDesired   = 6616
	defaultTolerance                   = 88
	defaultResyncThreshold             = 0
	defaultBufferStartFill             = 282
	defaultTimeoutSeconds              = 120
	defaultPacketStuffing              = "basic"
	defaultRingCapacity                = 512
	defaultAudioListenAddr             = ":6000"
	defaultAnchorListenAddr            = ":6001"
)

// Config is the recognized-options table from spec.md §6, plus the
// network endpoints a standalone receiver process needs to bind.
type Config struct {
	Latency                   int64
	AudioBackendLatencyOffset int64
	AudioBackendBufferDesired int64
	Tolerance                 int64
	ResyncThreshold           int64
	PacketStuffing            string
	BufferStartFill           int
	TimeoutSeconds            int64
	DontCheckTimeout          bool
	StatisticsRequested       bool
	RingCapacity              int

	AudioListenAddr  string
	AnchorListenAddr string
	ResendTargetAddr string
}

type yamlConfig struct {
	Latency                   *int64  `yaml:"latency"`
	AudioBackendLatencyOffset *int64  `yaml:"audio_backend_latency_offset"`
	AudioBackendBufferDesired *int64  `yaml:"audio_backend_buffer_desired_length"`
	Tolerance                 *int64  `yaml:"tolerance"`
	ResyncThreshold           *int64  `yaml:"resyncthreshold"`
	PacketStuffing            string  `yaml:"packet_stuffing"`
	BufferStartFill           *int    `yaml:"buffer_start_fill"`
	Timeout                   *int64  `yaml:"timeout"`
	DontCheckTimeout          bool    `yaml:"dont_check_timeout"`
	StatisticsRequested       bool    `yaml:"statistics_requested"`
	RingCapacity              int     `yaml:"ring_capacity"`
	AudioListenAddr           string  `yaml:"audio_listen_addr"`
	AnchorListenAddr          string  `yaml:"anchor_listen_addr"`
	ResendTargetAddr          string  `yaml:"resend_target_addr"`
}

// Load reads and validates a YAML config file at path, filling unset
// fields with the defaults spec.md §6's examples imply (88200-frame
// latency, basic stuffing, 512-slot ring).
func Load(path string) (Config, error) {
	cfg := Config{
		Latency:                   defaultLatency,
		AudioBackendBufferDesired: defaultAudioBackendBufferDesired,
		Tolerance:                 defaultTolerance,
		ResyncThreshold:           defaultResyncThreshold,
		PacketStuffing:            defaultPacketStuffing,
		BufferStartFill:           defaultBufferStartFill,
		TimeoutSeconds:            defaultTimeoutSeconds,
		RingCapacity:              defaultRingCapacity,
		AudioListenAddr:           defaultAudioListenAddr,
		AnchorListenAddr:          defaultAnchorListenAddr,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if yc.Latency != nil {
		cfg.Latency = *yc.Latency
	}
	if yc.AudioBackendLatencyOffset != nil {
		cfg.AudioBackendLatencyOffset = *yc.AudioBackendLatencyOffset
	}
	if yc.AudioBackendBufferDesired != nil {
		cfg.AudioBackendBufferDesired = *yc.AudioBackendBufferDesired
	}
	if yc.Tolerance != nil {
		if *yc.Tolerance < 0 {
			return Config{}, errors.New("config: tolerance must be >= 0")
		}
		cfg.Tolerance = *yc.Tolerance
	}
	if yc.ResyncThreshold != nil {
		if *yc.ResyncThreshold < 0 {
			return Config{}, errors.New("config: resyncthreshold must be >= 0")
		}
		cfg.ResyncThreshold = *yc.ResyncThreshold
	}
	if yc.PacketStuffing != "" {
		if yc.PacketStuffing != "basic" && yc.PacketStuffing != "soxr" {
			return Config{}, fmt.Errorf("config: packet_stuffing must be 'basic' or 'soxr', got %q", yc.PacketStuffing)
		}
		cfg.PacketStuffing = yc.PacketStuffing
	}
	if yc.BufferStartFill != nil {
		capacity := cfg.RingCapacity
		if yc.RingCapacity > 0 {
			capacity = yc.RingCapacity
		}
		if *yc.BufferStartFill > capacity {
			return Config{}, fmt.Errorf("config: buffer_start_fill %d exceeds ring capacity %d", *yc.BufferStartFill, capacity)
		}
		cfg.BufferStartFill = *yc.BufferStartFill
	}
	if yc.Timeout != nil {
		if *yc.Timeout < 0 {
			return Config{}, errors.New("config: timeout must be >= 0")
		}
		cfg.TimeoutSeconds = *yc.Timeout
		cfg.DontCheckTimeout = *yc.Timeout == 0
	}
	if yc.DontCheckTimeout {
		cfg.DontCheckTimeout = true
	}
	cfg.StatisticsRequested = yc.StatisticsRequested

	if yc.RingCapacity > 0 {
		if yc.RingCapacity&(yc.RingCapacity-1) != 0 {
			return Config{}, fmt.Errorf("config: ring_capacity must be a power of two, got %d", yc.RingCapacity)
		}
		cfg.RingCapacity = yc.RingCapacity
	}
	if yc.AudioListenAddr != "" {
		cfg.AudioListenAddr = yc.AudioListenAddr
	}
	if yc.AnchorListenAddr != "" {
		cfg.AnchorListenAddr = yc.AnchorListenAddr
	}
	cfg.ResendTargetAddr = yc.ResendTargetAddr

	return cfg, nil
}
