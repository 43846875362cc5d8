package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"ordersync/internal/devserver"
	"ordersync/internal/devserver/infra/mysql"
	"ordersync/internal/devserver/infra/rabbitmq"
	"ordersync/internal/devserver/repository"
	mysqlrepo "ordersync/internal/devserver/repository/mysql"
	"ordersync/pkg/config"
	"ordersync/pkg/logger"
	"ordersync/pkg/shutdown"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "devserver", Env: cfg.AppEnv, Level: cfg.LogLevel})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	var repo repository.OrderRepository
	if cfg.MySQLEnabled {
		db, err := mysql.NewMySQLFromEnv()
		if err != nil {
			log.Error("mysql connect failed", "error", err)
			os.Exit(1)
		}
		sqlDB, _ := db.DB()
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
		repo = mysqlrepo.NewOrderRepository(db, log)
		log.Info("using mysql storage")
	} else {
		repo = repository.NewMemoryRepository()
		log.Info("using in-memory storage")
	}

	opts := []devserver.Option{
		devserver.WithLogger(log),
		devserver.WithHeartbeat(cfg.HeartbeatInterval),
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:        cfg.RedisAddr,
			DialTimeout: 2 * time.Second,
		})
		opts = append(opts, devserver.WithRedis(rdb))
		log.Info("store list caching enabled", "addr", cfg.RedisAddr)
	}

	if cfg.AMQPURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.AMQPURL, "order.exchange", log)
		if err != nil {
			log.Error("rabbitmq connect failed", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		opts = append(opts, devserver.WithPublisher(pub))
		log.Info("event publishing enabled")
	}

	gin.SetMode(gin.ReleaseMode)
	server := devserver.New(repo, opts...)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: server.Router(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("dev server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		return srv.Shutdown(stopCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("dev server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("dev server stopped")
}
