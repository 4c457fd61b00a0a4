// Command airsyncd is the standalone process entry point: it loads a
// config file, binds the audio and timing-anchor UDP sockets, opens the
// output device, and runs one playback session until interrupted.
// Grounded on the teacher's cmd/sip-tg-bridge/main.go: signal.NotifyContext
// for graceful shutdown, load config, construct collaborators, wire
// callbacks, run, then tear down in reverse order.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	pa "github.com/gordonklaus/portaudio"
	"github.com/spf13/pflag"

	"airsync/internal/alac"
	"airsync/internal/anchor"
	"airsync/internal/config"
	"airsync/internal/netrecv"
	"airsync/internal/player"
	"airsync/internal/resend"
	"airsync/internal/sink/portaudio"
)

func main() {
	configPath := pflag.StringP("config-file", "c", "airsyncd.yaml", "Configuration file path.")
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}

	if err := pa.Initialize(); err != nil {
		logger.Error("portaudio init failed", "error", err)
		os.Exit(1)
	}
	defer pa.Terminate()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	audioRecv, err := netrecv.Listen(cfg.AudioListenAddr)
	if err != nil {
		logger.Error("audio listen failed", "error", err)
		os.Exit(1)
	}
	defer audioRecv.Close()

	anchorDst := anchor.NewAtomic()
	anchorRecv, err := anchor.Listen(cfg.AnchorListenAddr, anchorDst)
	if err != nil {
		logger.Error("anchor listen failed", "error", err)
		os.Exit(1)
	}
	defer anchorRecv.Close()
	go func() {
		if err := anchorRecv.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("anchor receiver stopped", "error", err)
		}
	}()

	var resender resend.Sender
	if cfg.ResendTargetAddr != "" {
		conn, err := net.Dial("udp", cfg.ResendTargetAddr)
		if err != nil {
			logger.Error("resend target dial failed", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		resender = resend.NewRTCPSender(conn, 0, 0)
	}

	sess := player.New(player.Config{
		Latency:                   cfg.Latency,
		AudioBackendLatencyOffset: cfg.AudioBackendLatencyOffset,
		AudioBackendBufferDesired: cfg.AudioBackendBufferDesired,
		Tolerance:                 cfg.Tolerance,
		ResyncThreshold:           cfg.ResyncThreshold,
		PacketStuffing:            cfg.PacketStuffing,
		BufferStartFill:           cfg.BufferStartFill,
		TimeoutSeconds:            cfg.TimeoutSeconds,
		DontCheckTimeout:          cfg.DontCheckTimeout,
		StatisticsRequested:       cfg.StatisticsRequested,
		RingCapacity:              cfg.RingCapacity,
	}, portaudio.New(), anchorDst, resender, nil)

	// TODO: wire AES key/IV/fmtp from the session-setup handshake once a
	// control-channel listener is added; a non-encrypted raw-PCM-over-ALAC
	// stream exercises the full receive path in the meantime.
	if err := sess.Play(player.StreamConfig{
		FormatVec: alac.FormatVector{1: 352, 3: 16, 11: 44100},
	}); err != nil {
		logger.Error("play failed", "error", err)
		os.Exit(1)
	}
	logger.Info("airsyncd listening", "audio_addr", cfg.AudioListenAddr, "anchor_addr", cfg.AnchorListenAddr)

	go func() {
		for {
			pkt, err := audioRecv.Receive(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("receive error", "error", err)
				continue
			}
			if err := sess.PutPacket(pkt.Sequence, pkt.Timestamp, pkt.Payload); err != nil {
				logger.Warn("put_packet error", "error", err)
			}
		}
	}()

	go func() {
		select {
		case <-sess.ShutdownRequested():
			logger.Warn("service timeout: no audio received, requesting shutdown")
			cancel()
		case <-ctx.Done():
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	if err := sess.Stop(); err != nil {
		logger.Error("stop error", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
