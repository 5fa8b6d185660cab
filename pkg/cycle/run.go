// Package cycle предоставляет цикл исполнения функции с интерполирующим брокером для встраивания в другие сервисы.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sgostarter/i/l"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shiwa/sigbroker/internal/logger"
	"github.com/shiwa/sigbroker/internal/metrics"
	"github.com/shiwa/sigbroker/internal/source"
	"github.com/shiwa/sigbroker/pkg/broker"
	"github.com/shiwa/sigbroker/pkg/config"
)

// faultLogEvery — не чаще одного сообщения об ошибке цикла за этот интервал
const faultLogEvery = time.Second

// Report — итог одного цикла
type Report struct {
	RunID    string
	Cycle    uint64
	Stats    broker.Stats
	Err      error
	Status   source.Status
	Function *broker.Function
}

// Options — параметры запуска
type Options struct {
	Quiet  bool
	Logger l.Wrapper
	// Sink вызывается синхронно после каждого Execute; память функции можно
	// читать только внутри вызова
	Sink func(Report)
	// Source — готовый источник вместо создаваемого по cfg.Source
	Source source.Source
	// Registry — реестр метрик; nil — отдельный
	Registry *prometheus.Registry
}

// RunDaemon запускает цикл (источник -> брокер -> функция) до отмены ctx или
// до cycle.count циклов. Ошибки отдельных циклов (остановка времени источника,
// сбой Synchronise) не прерывают цикл: функция получает последние значения,
// ошибка уходит в лог, метрики и Sink.
func RunDaemon(ctx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("cycle: nil config")
	}
	logger.Quiet = opts.Quiet || cfg.Log.Quiet
	logger.Debug = cfg.Log.Debug

	runID := uuid.NewString()[:8]
	log := opts.Logger
	if log == nil {
		log = logger.Wrapper()
	}
	log = log.WithFields(l.StringField(l.ClsKey, "cycle"), l.StringField("run", runID))

	src := opts.Source
	if src == nil {
		s, err := source.NewFromConfig(cfg.Source, cfg.Broker.TimeSignal, log)
		if err != nil {
			return fmt.Errorf("source %s: %w", cfg.Source.Name, err)
		}
		src = s
		defer func() { _ = src.Close() }()
	}

	inputs, err := cfg.FunctionInputs()
	if err != nil {
		return err
	}
	fn, err := broker.NewFunction(cfg.Function.Name, inputs, nil)
	if err != nil {
		return err
	}
	b := broker.NewInterpolatedInputBroker(broker.WithMaxResyncs(cfg.Broker.MaxResyncs), broker.WithLogger(log))
	if err := b.Init(src, fn); err != nil {
		return err
	}
	if err := b.SetTimeSignalByName(cfg.Broker.TimeSignal, cfg.Broker.InterpolationPeriod); err != nil {
		return err
	}

	m := metrics.New(opts.Registry)
	interval := cfg.Interval()
	logger.Info("cycle %s: source=%s protocol=%s function=%s inputs=%d interval=%v period=%g",
		runID, src.Name(), src.Protocol(), fn.Name(), b.NumberOfCopies(), interval, cfg.Broker.InterpolationPeriod)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	if cfg.Metrics.Listen != "" {
		g.Go(func() error {
			return m.Serve(gctx, cfg.Metrics.Listen)
		})
	}
	g.Go(func() error {
		defer cancel()
		if err := prime(gctx, src, interval, log); err != nil {
			return err
		}
		return loop(gctx, cfg, opts, runID, src, fn, b, m, log)
	})
	err = g.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return err
}

// prime ждёт первый отсчёт источника: первый Execute берёт начало
// виртуального времени из памяти сигнала времени, пустая память дала бы 0.
// Повтор раз в interval до успеха или отмены ctx.
func prime(ctx context.Context, src source.Source, interval time.Duration, log l.Wrapper) error {
	limiter := rate.NewLimiter(rate.Every(faultLogEvery), 1)
	for attempt := 1; ; attempt++ {
		err := src.Prime()
		if err == nil {
			if attempt > 1 {
				logger.Info("source %s: first sample after %d attempts", src.Name(), attempt)
			}
			return nil
		}
		if limiter.Allow() {
			log.WithFields(l.ErrorField(err), l.IntField("attempt", attempt)).Warn("waiting for first sample")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func loop(ctx context.Context, cfg *config.Config, opts Options, runID string, src source.Source,
	fn *broker.Function, b *broker.InterpolatedInputBroker, m *metrics.Metrics, log l.Wrapper) error {
	ticker := time.NewTicker(cfg.Interval())
	defer ticker.Stop()
	limiter := rate.NewLimiter(rate.Every(faultLogEvery), 1)
	var faults, suppressed uint64

	for n := uint64(0); cfg.Cycle.Count == 0 || n < uint64(cfg.Cycle.Count); n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		start := time.Now()
		err := b.Execute()
		elapsed := time.Since(start)
		st := b.Stats()
		status := src.Status()
		m.Observe(src.Name(), st, elapsed, err)
		m.SetLive(src.Name(), status.IsUsable())

		if err != nil {
			faults++
			if limiter.Allow() {
				log.WithFields(l.ErrorField(err), l.UInt64Field("cycle", n),
					l.UInt64Field("suppressed", suppressed)).Warn("cycle fault")
				suppressed = 0
			} else {
				suppressed++
			}
		} else {
			logger.Debugf("cycle %d: vt=%g segment=[%g, %g] resyncs=%d", n, st.VirtualTime, st.T0, st.T1, st.LastResyncs)
		}
		if opts.Sink != nil {
			opts.Sink(Report{RunID: runID, Cycle: n, Stats: st, Err: err, Status: status, Function: fn})
		}
	}
	logger.Info("cycle %s: done, %d cycles, %d faults", runID, cfg.Cycle.Count, faults)
	return nil
}
