package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	appStock "github.com/Zhima-Mochi/warehouse-observability/internal/application/stock"
	"github.com/Zhima-Mochi/warehouse-observability/internal/bootstrap"
	"github.com/Zhima-Mochi/warehouse-observability/internal/config"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	httppresentation "github.com/Zhima-Mochi/warehouse-observability/internal/presentation/http"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "stock-controller:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadStockController()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := bootstrap.NewTelemetry(ctx, cfg.Common)
	if err != nil {
		return err
	}
	defer tel.Close()

	stockRepo, closeStore, err := bootstrap.OpenStockStore(ctx, cfg.Store, tel.Obs.Logger())
	if err != nil {
		tel.System.Error("store_open_failed", observability.Err(err))
		return err
	}
	defer closeStore()
	tel.System.Info("store_ready",
		observability.F("backend", cfg.Backend),
		observability.F("initial_stock", cfg.InitialStock),
		observability.F("redis_cache", cfg.RedisAddr != ""),
	)

	handler := httppresentation.NewStockHandler(
		appStock.NewCheckStockUseCase(stockRepo, tel.Obs),
		appStock.NewAdjustStockUseCase(stockRepo, tel.Obs),
	)
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httppresentation.NewServer(tel.Obs, tel.Tracing.Propagator, tel.Registry.Handler()).Router(handler),
	}

	return bootstrap.Serve(ctx, server, tel.System, cfg.ShutdownTimeout)
}
