package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/Navnit-07/kanban-realtime-websocket/api"
	"github.com/Navnit-07/kanban-realtime-websocket/domain"
	"github.com/Navnit-07/kanban-realtime-websocket/relay"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()

	maxMessageSize := int64(api.DefaultMaxMessageSize)
	if v := os.Getenv("MAX_MESSAGE_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			log.Fatalf("invalid MAX_MESSAGE_SIZE: %v", v)
		}
		maxMessageSize = n
	}

	store := domain.NewStore()
	engine := domain.NewEngine(store)
	hub := api.NewHub(engine, store, logger, maxMessageSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		rc := redis.NewClient(redisOptions(redisConn))
		eventsChannel := "boardsync:events"
		if v := os.Getenv("EVENTS_CHANNEL"); v != "" {
			eventsChannel = v
		}
		instanceID := uuid.NewString()
		pub := relay.NewPublisher(rc, eventsChannel, instanceID, logger)
		hub.SetPublish(pub.Publish)
		go relay.Subscribe(ctx, logger, rc, eventsChannel, instanceID, hub)
		logger.WithFields(log.Fields{"channel": eventsChannel, "instance": instanceID}).Info("relay enabled")
	}

	go hub.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	api.Register(e, hub, logger)

	listenAddr := ":5000"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("shutdown: %v", err)
		}
	}()

	if err := e.Start(listenAddr); err != nil {
		logger.Info(err)
	}
}

// redisOptions parses either a redis URL or the comma-separated
// host,password=...,ssl=... connection-string form.
func redisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
