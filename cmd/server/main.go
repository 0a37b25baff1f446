package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/shopflow/checkout-core/internal/cart"
	"github.com/shopflow/checkout-core/internal/catalog"
	"github.com/shopflow/checkout-core/internal/checkout"
	"github.com/shopflow/checkout-core/internal/coupon"
	"github.com/shopflow/checkout-core/internal/inventory"
	"github.com/shopflow/checkout-core/internal/messaging"
	"github.com/shopflow/checkout-core/internal/orders"
	"github.com/shopflow/checkout-core/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "checkout-core", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("checkout-core", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := otelruntime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database connection", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var placedProducer, cancelledProducer *messaging.Producer
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		placedProducer = messaging.NewProducer(brokers, "order.placed")
		defer func() { _ = placedProducer.Close() }()
		cancelledProducer = messaging.NewProducer(brokers, "order.cancelled")
		defer func() { _ = cancelledProducer.Close() }()
	}

	catalogRepo := catalog.NewRepository(db)
	couponValidator := coupon.NewValidator(coupon.NewRepository(db))
	cartService := cart.NewService(cart.NewRepository(db), catalogRepo, couponValidator)
	cartHandler := cart.NewHandler(cartService, logger)

	ordersRepo := orders.NewRepository(db)
	ordersHandler := orders.NewHandler(ordersRepo, cancelledProducer, logger)

	ledger := inventory.NewLedger(db)

	var placed checkout.EventPublisher
	if placedProducer != nil {
		placed = placedProducer
	}
	orchestrator := checkout.NewOrchestrator(cartService, ledger, ordersRepo, placed, logger)
	checkoutHandler := checkout.NewHandler(orchestrator, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(cartHandler.HandleView))
	mux.HandleFunc("DELETE /cart", telemetry.WithHTTPRoute(cartHandler.HandleClear))
	mux.HandleFunc("POST /cart/items", telemetry.WithHTTPRoute(cartHandler.HandleAddItem))
	mux.HandleFunc("PATCH /cart/items", telemetry.WithHTTPRoute(cartHandler.HandleUpdateItem))
	mux.HandleFunc("DELETE /cart/items/{productId}", telemetry.WithHTTPRoute(cartHandler.HandleRemoveItem))
	mux.HandleFunc("POST /cart/coupon", telemetry.WithHTTPRoute(cartHandler.HandleApplyCoupon))
	mux.HandleFunc("DELETE /cart/coupon", telemetry.WithHTTPRoute(cartHandler.HandleRemoveCoupon))

	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(checkoutHandler.HandleCheckout))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(ordersHandler.HandleList))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(ordersHandler.HandleGet))
	mux.HandleFunc("PATCH /orders/{id}/status", telemetry.WithHTTPRoute(ordersHandler.HandleUpdateStatus))
	mux.HandleFunc("PATCH /orders/{id}/cancel", telemetry.WithHTTPRoute(ordersHandler.HandleCancel))
	mux.HandleFunc("PATCH /orders/{id}/payment", telemetry.WithHTTPRoute(ordersHandler.HandleUpdatePayment))
	mux.HandleFunc("GET /orders/{id}/tracking", telemetry.WithHTTPRoute(ordersHandler.HandleTracking))
	mux.HandleFunc("DELETE /orders/{id}", telemetry.WithHTTPRoute(ordersHandler.HandleDelete))

	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "checkout-core",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting checkout service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
