package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/rl1809/vending-machine/internal/adapter/dispatch"
	"github.com/rl1809/vending-machine/internal/adapter/handler"
	"github.com/rl1809/vending-machine/internal/adapter/storage"
	"github.com/rl1809/vending-machine/internal/config"
	"github.com/rl1809/vending-machine/internal/core/service"
	"github.com/rl1809/vending-machine/internal/port"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	// Initialize store
	db, err := sql.Open(cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.StoreDriver, err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if cfg.StoreDriver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping store: %v", err)
	}
	log.Printf("connected to %s store", cfg.StoreDriver)

	sheets := storage.NewSQLSheet(db)
	if err := sheets.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to prepare store: %v", err)
	}

	names := service.SheetNames{
		Inventory: cfg.SheetInventory,
		Users:     cfg.SheetUsers,
		Sales:     cfg.SheetSales,
	}
	if err := service.InitSheets(ctx, sheets, names); err != nil {
		log.Fatalf("failed to initialize sheets: %v", err)
	}

	checks := map[string]port.HealthChecker{"store": sheets}

	// Initialize locker
	var locker port.Locker = storage.NewLocalLocker()
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		redisAdapter := storage.NewRedisAdapter(rdb, cfg.LockTTL, cfg.LockWait)
		locker = redisAdapter
		checks["redis"] = redisAdapter
		log.Println("connected to redis, using distributed locks")
	}

	// Initialize dispatcher; the broker being down must not stop sales
	publisher := dispatch.NewMQTTPublisher(dispatch.MQTTOptions{
		Broker:   cfg.MQTTBroker,
		Port:     cfg.MQTTPort,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
		QoS:      byte(cfg.MQTTQoS),
		Quiesce:  250,
	})
	if err := publisher.Connect(ctx); err != nil {
		log.Printf("mqtt broker unavailable, will retry: %v", err)
	}
	checks["mqtt"] = publisher

	// Initialize service
	opts := service.DefaultOptions()
	opts.Sheets = names
	opts.DispatchTopic = cfg.MQTTTopic
	opts.DispatchTimeout = cfg.DispatchTimeout
	opts.AllowUnknownPurchaser = cfg.AllowUnknownPurchaser

	vending, err := service.NewVendingService(ctx, sheets, locker, publisher, opts)
	if err != nil {
		log.Fatalf("failed to start vending service: %v", err)
	}

	// Health loop
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		healthLoop(ctx, cfg.HealthInterval, vending, checks)
	}()

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterVendingServer(grpcServer, handler.NewGRPCHandler(vending))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("gRPC server error: %v", err)
		}
	}()

	// Initialize HTTP server
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler.NewHTTPHandler(vending, checks).Routes(),
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Println("gRPC server stopped")

	cancel()
	wg.Wait()

	publisher.Close()
	if rdb != nil {
		rdb.Close()
	}
	db.Close()
	log.Println("connections closed")
}

// healthLoop keeps the long-lived clients connected and picks up header
// changes in the sheets.
func healthLoop(ctx context.Context, interval time.Duration, vending *service.VendingService, checks map[string]port.HealthChecker) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for name, check := range checks {
			checkCtx, cancel := context.WithTimeout(ctx, interval/2)
			if err := check.Check(checkCtx); err != nil {
				log.Printf("health: %s: %v", name, err)
			}
			cancel()
		}

		if err := vending.ReloadSchema(ctx); err != nil {
			log.Printf("health: keeping previous sheet layout: %v", err)
		}
	}
}
