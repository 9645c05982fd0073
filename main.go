package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yaohuangguan/orion-chat/internal/observability"
	"github.com/yaohuangguan/orion-chat/internal/rabbitmq"
	"github.com/yaohuangguan/orion-chat/internal/relay"
	"github.com/yaohuangguan/orion-chat/internal/telemetry"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "orion-chat").Logger()

	ctx := context.Background()
	shutdownTracing, err := observability.InitTracing(ctx, "orion-chat", getEnv("OTLP_ENDPOINT", ""))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	bus := rabbitmq.NewPublisher(getEnv("AMQP_URL", ""), getEnv("AMQP_EXCHANGE", "orion.events"), logger)
	defer bus.Close()

	audit := telemetry.NewAuditEmitter(bus, "audit.chat", "orion-chat", getEnv("ENVIRONMENT", "development"), logger)

	roomKey := getEnv("ROOM_KEY", "lobby")
	hub := relay.NewHub(roomKey, relay.NewMessageLog(), bus, audit, logger)
	handler := relay.NewHandler(hub, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("orion-chat"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/ws", handler.HandleWS)
	router.GET("/history/public/:room", handler.GetPublicHistory)
	router.GET("/history/private/:peer", handler.GetPrivateHistory)
	router.GET("/users", handler.ListUsers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	port := getEnv("PORT", "8083")
	logger.Info().Str("port", port).Str("room", roomKey).Msg("relay listening")
	if err := router.Run(":" + port); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
