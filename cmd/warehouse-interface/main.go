package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Zhima-Mochi/warehouse-observability/internal/application/warehouse"
	"github.com/Zhima-Mochi/warehouse-observability/internal/bootstrap"
	"github.com/Zhima-Mochi/warehouse-observability/internal/config"
	domoutbox "github.com/Zhima-Mochi/warehouse-observability/internal/domain/outbox"
	"github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/amqp"
	"github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/httpclient"
	"github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	httppresentation "github.com/Zhima-Mochi/warehouse-observability/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/warehouse-observability/internal/presentation/worker"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "warehouse-interface:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWarehouseInterface()
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

	var sink domoutbox.Publisher
	sinkName := ""
	if cfg.AMQPURL != "" {
		conn, err := amqp.Dial(ctx, cfg.AMQPURL, cfg.AMQPExchange, tel.System)
		if err != nil {
			tel.System.Error("amqp_connect_failed", observability.Err(err))
			return err
		}
		defer func() { _ = conn.Close() }()
		sink = amqp.NewPublisher(conn.Channel(), cfg.AMQPExchange, cfg.ServiceName, tel.Tracing.Propagator)
		sinkName = "rabbitmq"
		tel.System.Info("amqp_ready", observability.F("exchange", cfg.AMQPExchange))
	}

	bus := outbox.NewBus(tel.Obs.Logger())
	workerpresentation.NewRelay(bus, sink, sinkName, tel.Obs).Start()
	bus.Start(ctx)
	defer bus.Stop(context.Background())

	httpClient := &http.Client{Timeout: cfg.CallTimeout}
	orch := warehouse.NewOrchestrator(
		httpclient.NewOrderClient(cfg.OrderProcessorURL, httpClient, tel.Tracing.Propagator, tel.Obs),
		httpclient.NewStockClient(cfg.StockControllerURL, httpClient, tel.Tracing.Propagator, tel.Obs),
		warehouse.NewRandomDemand(0),
		warehouse.Config{
			Interval:    cfg.CycleInterval,
			CallTimeout: cfg.CallTimeout,
			Source:      warehouse.FulfillmentSource(cfg.FulfillmentSource),
		},
		tel.Obs,
		warehouse.WithPublisher(bus),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tel.System.Info("warehouse_loop_start",
			observability.F("order_processor", cfg.OrderProcessorURL),
			observability.F("stock_controller", cfg.StockControllerURL),
			observability.F("interval", cfg.CycleInterval.String()),
		)
		orch.Run(ctx)
		tel.System.Info("warehouse_loop_stopped")
	}()

	// only /health and /metrics; the interface has no business routes
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httppresentation.NewServer(tel.Obs, tel.Tracing.Propagator, tel.Registry.Handler()).Router(),
	}
	err = bootstrap.Serve(ctx, server, tel.System, cfg.ShutdownTimeout)
	stop()
	wg.Wait()
	return err
}
