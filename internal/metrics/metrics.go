// Package metrics exposes Prometheus counters and gauges for the ladder
// engine and the screener:
//   - ladder_decisions_total{action}    – decisions taken per tick
//   - ladder_orders_total{side,status}  – orders by side and terminal status
//   - ladder_open_rungs                 – rungs currently held
//   - ladder_session_profit             – realized profit of the last session
//   - screener_triggers_total           – candidates emitted by the screener
//
// All are registered in init() and served at /metrics by Serve.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mtxDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_decisions_total",
			Help: "Decisions taken per monitoring tick",
		},
		[]string{"action"},
	)

	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_orders_total",
			Help: "Orders placed, by side and terminal status",
		},
		[]string{"side", "status"},
	)

	mtxOpenRungs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ladder_open_rungs",
			Help: "Rungs currently held on the ladder",
		},
	)

	mtxSessionProfit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ladder_session_profit",
			Help: "Realized profit of the most recently closed session",
		},
	)

	mtxScreenerTriggers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screener_triggers_total",
			Help: "Candidates emitted by the lower-circuit screener",
		},
	)
)

func init() {
	prometheus.MustRegister(mtxDecisions, mtxOrders)
	prometheus.MustRegister(mtxOpenRungs, mtxSessionProfit)
	prometheus.MustRegister(mtxScreenerTriggers)
}

func ObserveDecision(action string)    { mtxDecisions.WithLabelValues(action).Inc() }
func ObserveOrder(side, status string) { mtxOrders.WithLabelValues(side, status).Inc() }
func SetOpenRungs(n int)               { mtxOpenRungs.Set(float64(n)) }
func SetSessionProfit(v float64)       { mtxSessionProfit.Set(v) }
func IncScreenerTrigger()              { mtxScreenerTriggers.Inc() }

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}
