package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"

	SourcePending = "pending"
	SourceDemand  = "demand"
)

// Common holds the settings every binary reads.
type Common struct {
	ServiceName     string
	Env             string
	HTTPAddr        string
	OtelHost        string
	LogFile         string
	Debug           bool
	ShutdownTimeout time.Duration
}

// Store selects and configures the persistence backend of the order and stock services.
type Store struct {
	Backend      string
	DatabaseURL  string
	InitialStock int
	RedisAddr    string
	RedisTTL     time.Duration
}

type OrderProcessor struct {
	Common
	Store
}

type StockController struct {
	Common
	Store
}

type WarehouseInterface struct {
	Common
	OrderProcessorURL  string
	StockControllerURL string
	CycleInterval      time.Duration
	CallTimeout        time.Duration
	FulfillmentSource  string
	AMQPURL            string
	AMQPExchange       string
}

func LoadOrderProcessor() (OrderProcessor, error) {
	c := OrderProcessor{
		Common: loadCommon("order-processor", ":8080"),
	}
	s, err := loadStore()
	if err != nil {
		return OrderProcessor{}, err
	}
	c.Store = s
	return c, nil
}

func LoadStockController() (StockController, error) {
	c := StockController{
		Common: loadCommon("stock-controller", ":8081"),
	}
	s, err := loadStore()
	if err != nil {
		return StockController{}, err
	}
	c.Store = s
	return c, nil
}

func LoadWarehouseInterface() (WarehouseInterface, error) {
	c := WarehouseInterface{
		Common:             loadCommon("warehouse-interface", ":9090"),
		OrderProcessorURL:  strings.TrimRight(getenv("ORDER_PROCESSOR_URL", "http://order-processor:8080"), "/"),
		StockControllerURL: strings.TrimRight(getenv("STOCK_CONTROLLER_URL", "http://stock-controller:8081"), "/"),
		CycleInterval:      getenvDuration("CYCLE_INTERVAL", 10*time.Second),
		CallTimeout:        getenvDuration("CALL_TIMEOUT", 5*time.Second),
		FulfillmentSource:  strings.ToLower(getenv("FULFILLMENT_SOURCE", SourcePending)),
		AMQPURL:            os.Getenv("AMQP_URL"),
		AMQPExchange:       getenv("AMQP_EXCHANGE", "warehouse.events"),
	}

	switch c.FulfillmentSource {
	case SourcePending, SourceDemand:
	default:
		return WarehouseInterface{}, fmt.Errorf("FULFILLMENT_SOURCE must be %q or %q, got %q",
			SourcePending, SourceDemand, c.FulfillmentSource)
	}
	if c.CycleInterval <= 0 {
		return WarehouseInterface{}, errors.New("CYCLE_INTERVAL must be positive")
	}
	if c.CallTimeout <= 0 {
		return WarehouseInterface{}, errors.New("CALL_TIMEOUT must be positive")
	}
	return c, nil
}

func loadCommon(service, addr string) Common {
	return Common{
		ServiceName:     getenv("SERVICE_NAME", service),
		Env:             getenv("ENV", "dev"),
		HTTPAddr:        getenv("HTTP_ADDR", addr),
		OtelHost:        getenv("OTEL_HOST", "localhost"),
		LogFile:         os.Getenv("LOG_FILE"),
		Debug:           getenvBool("DEBUG", false),
		ShutdownTimeout: getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func loadStore() (Store, error) {
	s := Store{
		Backend:      strings.ToLower(getenv("STORE_BACKEND", BackendMemory)),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		InitialStock: getenvInt("INITIAL_STOCK", 500),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisTTL:     getenvDuration("REDIS_TTL", 30*time.Second),
	}
	switch s.Backend {
	case BackendMemory:
	case BackendPostgres:
		if s.DatabaseURL == "" {
			return Store{}, errors.New("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return Store{}, fmt.Errorf("unknown STORE_BACKEND %q", s.Backend)
	}
	return s, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
