// Package metrics — метрики Prometheus цикла брокера и HTTP /metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shiwa/sigbroker/pkg/broker"
)

const namespace = "sigbroker"

// Значения метки result
const (
	ResultOK        = "ok"
	ResultStalled   = "stalled"
	ResultSyncError = "sync_error"
	ResultError     = "error"
)

// Metrics — коллекторы одного цикла; метка source — имя источника данных
type Metrics struct {
	Executions   *prometheus.CounterVec
	Resyncs      *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
	SegmentEnd   *prometheus.GaugeVec
	VirtualTime  *prometheus.GaugeVec
	SourceStatus *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New регистрирует коллекторы в reg; nil — отдельный реестр.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Executions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Broker Execute calls by result",
		}, []string{"source", "result"}),
		Resyncs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resyncs_total",
			Help:      "Data source Synchronise calls made by the broker",
		}, []string{"source"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execute_duration_seconds",
			Help:      "Broker Execute latency",
			Buckets:   []float64{1e-6, 1e-5, 1e-4, 5e-4, 1e-3, 5e-3, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"source"}),
		SegmentEnd: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "segment_end_time",
			Help:      "Data source time at the end of the current interpolation segment",
		}, []string{"source"}),
		VirtualTime: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "virtual_time",
			Help:      "Virtual time of the last Execute",
		}, []string{"source"}),
		SourceStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_live",
			Help:      "1 if the last Synchronise produced a fresh sample",
		}, []string{"source"}),
		gatherer: reg,
	}
}

// Result переводит ошибку Execute в значение метки result
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, broker.ErrStalledTimeSource):
		return ResultStalled
	case errors.Is(err, broker.ErrSynchronise):
		return ResultSyncError
	}
	return ResultError
}

// Observe учитывает один Execute
func (m *Metrics) Observe(source string, st broker.Stats, d time.Duration, err error) {
	m.Executions.WithLabelValues(source, Result(err)).Inc()
	m.Resyncs.WithLabelValues(source).Add(float64(st.LastResyncs))
	m.Duration.WithLabelValues(source).Observe(d.Seconds())
	m.SegmentEnd.WithLabelValues(source).Set(st.T1)
	m.VirtualTime.WithLabelValues(source).Set(st.VirtualTime)
}

// SetLive выставляет состояние источника
func (m *Metrics) SetLive(source string, live bool) {
	v := 0.0
	if live {
		v = 1
	}
	m.SourceStatus.WithLabelValues(source).Set(v)
}

// Handler отдаёт метрики реестра в формате Prometheus
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve поднимает HTTP с /metrics на addr до отмены ctx
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	}
}
