// Package metrics holds the Prometheus collectors shared by the board, chat
// and presence engines. Collectors live on a private registry so tests and
// embedding programs never collide with the global default registry.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultStale     = "stale"
	ResultDebounced = "debounced"
)

var (
	// Registry is the registry every labdesk collector is registered on.
	Registry = prometheus.NewRegistry()

	// SectionWrites counts whole-section persist attempts by section and result.
	SectionWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labdesk",
		Name:      "section_writes_total",
		Help:      "Whole-section persist attempts by section and result.",
	}, []string{"section", "result"})

	// ChatSends counts message persist attempts (send and retry) by result.
	ChatSends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labdesk",
		Name:      "chat_sends_total",
		Help:      "Chat message persist attempts by result.",
	}, []string{"result"})

	// PendingWrites reports the current size of the pending-write set.
	PendingWrites = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "labdesk",
		Name:      "pending_writes",
		Help:      "Items currently being persisted.",
	})

	// Notifications counts mention notifications by result.
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labdesk",
		Name:      "notifications_total",
		Help:      "Mention notifications by result.",
	}, []string{"result"})

	// TypingReports counts typing reports by result.
	TypingReports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labdesk",
		Name:      "typing_reports_total",
		Help:      "Typing reports by result.",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(SectionWrites, ChatSends, PendingWrites, Notifications, TypingReports)
}

// Handler returns an HTTP handler exposing the labdesk registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[Metrics] Shutdown error: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
