package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-service/config"
	"payment-service/internal/api"
	"payment-service/internal/broker"
	"payment-service/internal/gateway"
	"payment-service/internal/redisclient"
	"payment-service/internal/service"
	"payment-service/internal/store"
	"payment-service/internal/util"
	"payment-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting payment service")

	tp, err := util.InitTracer("payment-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayment)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	registry := gateway.NewRegistry()
	registry.Register(gateway.NewKakaoPayAdapter(cfg.Gateways.KakaoPay, cfg.Gateways.CallTimeout))
	registry.Register(gateway.NewTossAdapter(cfg.Gateways.Toss, cfg.Gateways.CallTimeout))
	registry.Register(gateway.NewNaverPayAdapter(cfg.Gateways.NaverPay, cfg.Gateways.CallTimeout))

	orderClient := service.NewHTTPOrderClient(cfg.Order)
	reputationClient := service.NewHTTPReputationClient(cfg.Risk)

	riskScorer := service.NewRiskScorer(cfg.Policy, reputationClient, redisClient, db, eventPublisher)
	orchestrator := service.NewPaymentOrchestrator(db, registry, orderClient, riskScorer, eventPublisher, cfg.Gateways)
	refundService := service.NewRefundService(db, registry, orderClient, eventPublisher, cfg.Policy, cfg.Gateways)
	webhookReconciler := service.NewWebhookReconciler(db, registry, orchestrator, redisClient)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var notifier service.Notifier
	if cfg.Risk.AlertWebhook != "" {
		notifier = service.NewWebhookNotifier(cfg.Risk.AlertWebhook)
	} else {
		notifier = service.NewLogNotifier()
	}

	alertConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayment, cfg.Kafka.ConsumerGroup)
	alertWorker := worker.NewAlertWorker(alertConsumer, notifier)
	go func() {
		if err := alertWorker.Start(workerCtx); err != nil {
			log.Printf("Alert worker error: %v", err)
		}
	}()

	reconcileWorker := worker.NewReconcileWorker(db, orchestrator, redisClient, 5*time.Minute, cfg.Policy.StuckPaymentAge)
	go func() {
		if err := reconcileWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Reconcile worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(orchestrator, refundService, webhookReconciler, riskScorer)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	alertWorker.Stop()

	log.Println("Server exited")
}
