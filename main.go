package main

import (
	"log"

	"github.com/eventlink/ticketing/config"
	"github.com/eventlink/ticketing/internal/consumer"
	"github.com/eventlink/ticketing/internal/email"
	"github.com/eventlink/ticketing/internal/fees"
	"github.com/eventlink/ticketing/internal/handler"
	"github.com/eventlink/ticketing/internal/middleware"
	"github.com/eventlink/ticketing/internal/repository"
	"github.com/eventlink/ticketing/internal/service"
	"github.com/eventlink/ticketing/pkg/database"
	"github.com/eventlink/ticketing/pkg/rabbitmq"
	"github.com/eventlink/ticketing/pkg/redisclient"
	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	db := database.NewPostgresDB(cfg.DSN())
	redisClient := redisclient.New(cfg.RedisURL)
	defer redisClient.Close()

	// RabbitMQ: reconciliation publishes ticket.issued, the email consumer
	// turns it into the confirmation email.
	mqPublisher, err := rabbitmq.NewPublisher(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	defer mqPublisher.Close()

	mqConsumer, err := rabbitmq.NewConsumer(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	defer mqConsumer.Close()

	msgs, err := mqConsumer.Consume()
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	// Repositories
	eventRepo := repository.NewEventRepository(db)
	ticketRepo := repository.NewTicketRepository(db)

	// Email pipeline
	sender := email.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom)
	emailConsumer := consumer.NewTicketEmailConsumer(sender, ticketRepo)
	emailConsumer.Start(msgs)

	// Services
	calc := fees.NewCalculator(fees.Policy{
		PlatformFeePerTicket: cfg.PlatformFeePerTicket,
		PayPalFeePercent:     cfg.PayPalFeePercent,
		PayPalFeeFixed:       cfg.PayPalFeeFixed,
	})
	reconcileSvc := service.NewReconcileService(eventRepo, ticketRepo, calc, mqPublisher, redisClient)
	checkinSvc := service.NewCheckinService(ticketRepo)

	// Echo
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.Printf("%s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		if err := redisclient.HealthCheck(redisClient); err != nil {
			return c.JSON(503, map[string]string{"status": "unhealthy", "error": err.Error()})
		}
		return c.JSON(200, map[string]string{"status": "ok", "service": "ticketing"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	handler.NewTicketHandler(reconcileSvc, checkinSvc).RegisterRoutes(e)

	log.Printf("Ticketing Service starting on :%s", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
