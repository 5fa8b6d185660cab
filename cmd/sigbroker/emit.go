package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sgostarter/i/l"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/shiwa/sigbroker/internal/frame"
	"github.com/shiwa/sigbroker/internal/logger"
	"github.com/shiwa/sigbroker/internal/source"
	"github.com/shiwa/sigbroker/pkg/config"
)

var (
	emitPort     string
	emitBaud     int
	emitCount    int
	emitInterval string

	emitCmd = &cobra.Command{
		Use:   "emit",
		Short: "Write ramp sample frames to a serial port",
		Long: `Generates ramp samples with the signal layout of the configured source
and writes them as sample frames, one per interval. The receiving side runs
sigbroker with protocol: serial and the same signal list.`,
		Args: cobra.NoArgs,
		RunE: runEmit,
	}
)

func runEmit(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Quiet = quiet || cfg.Log.Quiet

	device, baud := emitPort, emitBaud
	if device == "" {
		device = cast.ToString(cfg.Source.Options["device"])
	}
	if baud == 0 {
		baud = cast.ToInt(cfg.Source.Options["baud"])
	}
	if device == "" {
		return errors.New("emit: no port (--port or source.options.device)")
	}
	if baud == 0 {
		baud = 115200
	}
	interval := cfg.Interval()
	if emitInterval != "" {
		if interval, err = time.ParseDuration(emitInterval); err != nil {
			return fmt.Errorf("emit: interval: %w", err)
		}
	}

	port, err := frame.Open(device, baud, time.Second)
	if err != nil {
		return fmt.Errorf("открытие порта %s: %w", device, err)
	}
	defer port.Close()

	ramp, err := newEmitRamp(cfg.Source, cfg.Broker.TimeSignal)
	if err != nil {
		return err
	}
	ctx, cancel := withShutdown()
	defer cancel()

	logger.Info("emit: %s, %d baud, %d bytes per sample, interval %v", device, baud, len(ramp.Payload()), interval)
	n, err := emit(ctx, port, ramp, interval, emitCount)
	logger.Info("emit: %d frames written", n)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newEmitRamp строит ramp с раскладкой сигналов источника из конфига
func newEmitRamp(sc config.SourceConfig, timeSignal string) (*source.Ramp, error) {
	sc.Protocol = "ramp"
	s, err := source.NewFromConfig(sc, timeSignal, l.NewNopLoggerWrapper())
	if err != nil {
		return nil, err
	}
	return s.(*source.Ramp), nil
}

type frameWriter interface {
	WriteFrame(packet []byte) error
}

// emit пишет count кадров (0 — до отмены ctx); первый кадр — начальное состояние
func emit(ctx context.Context, w frameWriter, ramp *source.Ramp, interval time.Duration, count int) (int, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for seq := 0; count == 0 || seq < count; seq++ {
		if seq > 0 {
			if err := ramp.Synchronise(); err != nil {
				return seq, err
			}
		}
		packet, err := frame.EncodeSample(uint64(seq), ramp.Payload())
		if err != nil {
			return seq, err
		}
		if err := w.WriteFrame(packet); err != nil {
			return seq, fmt.Errorf("write sample %d: %w", seq, err)
		}
		select {
		case <-ctx.Done():
			return seq + 1, ctx.Err()
		case <-ticker.C:
		}
	}
	return count, nil
}
