package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	appOrder "github.com/Zhima-Mochi/warehouse-observability/internal/application/order"
	"github.com/Zhima-Mochi/warehouse-observability/internal/bootstrap"
	"github.com/Zhima-Mochi/warehouse-observability/internal/config"
	"github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	httppresentation "github.com/Zhima-Mochi/warehouse-observability/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/warehouse-observability/internal/presentation/worker"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "order-processor:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadOrderProcessor()
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

	orderRepo, closeStore, err := bootstrap.OpenOrderStore(ctx, cfg.Store)
	if err != nil {
		tel.System.Error("store_open_failed", observability.Err(err))
		return err
	}
	defer closeStore()
	tel.System.Info("store_ready", observability.F("backend", cfg.Backend))

	// order events are logged in-process; nothing downstream consumes them yet
	bus := outbox.NewBus(tel.Obs.Logger())
	workerpresentation.NewRelay(bus, nil, "", tel.Obs).Start()
	bus.Start(ctx)
	defer bus.Stop(context.Background())

	handler := httppresentation.NewOrderHandler(
		appOrder.NewCreateOrderUseCase(orderRepo, bus, tel.Obs),
		appOrder.NewListUnprocessedUseCase(orderRepo, tel.Obs),
		appOrder.NewDeleteOrderUseCase(orderRepo, bus, tel.Obs),
	)
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httppresentation.NewServer(tel.Obs, tel.Tracing.Propagator, tel.Registry.Handler()).Router(handler),
	}

	return bootstrap.Serve(ctx, server, tel.System, cfg.ShutdownTimeout)
}
