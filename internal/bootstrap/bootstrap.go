// Package bootstrap holds the process wiring shared by the three binaries:
// telemetry, storage backends and the HTTP server lifecycle.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Zhima-Mochi/warehouse-observability/internal/config"
	infraobs "github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/observability/tracing"
	"github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	"github.com/Zhima-Mochi/warehouse-observability/internal/pkg/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Telemetry is the per-process logging, tracing and metrics stack.
type Telemetry struct {
	Zap      *zap.Logger
	Tracing  *tracing.Provider
	Registry prometrics.Registry
	Obs      observability.Observability
	// System logs process lifecycle lines outside any request.
	System observability.Logger
}

func NewTelemetry(ctx context.Context, c config.Common) (*Telemetry, error) {
	base, err := logging.NewLogger(logging.Options{
		Service: c.ServiceName,
		Env:     c.Env,
		File:    c.LogFile,
		Debug:   c.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}
	zap.ReplaceGlobals(base)

	tp, err := tracing.New(ctx, c.ServiceName, c.OtelHost, uuid.NewString())
	if err != nil {
		_ = base.Sync()
		return nil, fmt.Errorf("bootstrap: tracing: %w", err)
	}

	reg := prometrics.New("", "")
	counters, histograms := infraobs.Instruments(reg)
	logger := zaplogger.New(base)

	return &Telemetry{
		Zap:      base,
		Tracing:  tp,
		Registry: reg,
		Obs: infraobs.New(
			oteltrace.New(tp.TracerProvider, c.ServiceName),
			logger,
			counters,
			histograms,
		),
		System: logger.With(observability.F("component", "system")),
	}, nil
}

// Close flushes spans and logs.
func (t *Telemetry) Close() {
	if t == nil {
		return
	}
	if err := t.Tracing.Shutdown(); err != nil {
		t.System.Warn("tracer_shutdown_error", observability.Err(err))
	}
	_ = t.Zap.Sync()
}

// Serve runs srv until ctx is canceled, then shuts it down within timeout.
func Serve(ctx context.Context, srv *http.Server, logger observability.Logger, timeout time.Duration) error {
	if logger == nil {
		logger = observability.NopLogger()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_server_start", observability.F("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("http_server_error", observability.Err(err))
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", observability.Err(err))
		return err
	}
	<-errCh
	logger.Info("http_server_stopped")
	return nil
}
