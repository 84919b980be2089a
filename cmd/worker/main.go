package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"eventpush/internal/awsutil"
	"eventpush/internal/badge"
	"eventpush/internal/config"
	"eventpush/internal/httpserver"
	"eventpush/internal/logging"
	"eventpush/internal/observability"
	"eventpush/internal/providers/onesignal"
	sqsqueue "eventpush/internal/queue/sqs"
	"eventpush/internal/redisutil"
	"eventpush/internal/store/pg"
	workerproc "eventpush/internal/worker"
)

func main() {
	cfg := config.LoadWorker()
	logging.Init("worker", cfg.LogFormat)

	// Use a root ctx we can cancel
	ctx, cancel := context.WithCancel(context.Background())

	db, err := pg.NewPool(ctx, cfg.DBConfig)
	if err != nil {
		slog.Error("worker db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	dbStore := pg.New(db)

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("worker sqs client init failed", "err", err)
		os.Exit(1)
	}

	queueReady := func(c context.Context) error {
		_, err := sqsClient.GetQueueAttributes(c, &sqs.GetQueueAttributesInput{
			QueueUrl:       &cfg.SQSQueueURL,
			AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
		})
		return err
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	defer startupCancel()
	if err := db.Ping(startupCtx); err != nil {
		slog.Error("db not reachable", "err", err)
		os.Exit(1)
	}
	if err := queueReady(startupCtx); err != nil {
		slog.Error("sqs not reachable", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	consumer := &sqsqueue.Consumer{
		SQS:               sqsClient,
		QueueURL:          cfg.SQSQueueURL,
		WaitTimeSeconds:   cfg.SQSWaitTime,
		MaxMessages:       cfg.SQSMaxMsgs,
		VisibilityTimeout: cfg.SQSVizTimeout,
	}

	// OneSignal + limiter/breaker + processor
	os1 := &onesignal.Client{
		AppID:      cfg.OneSignalAppID,
		RESTAPIKey: cfg.OneSignalRESTAPIKey,
		HTTP:       &http.Client{Timeout: 8 * time.Second},
		BaseURL:    cfg.OneSignalBaseURL,
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.OneSignalRPSPerPod), cfg.OneSignalBurst)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "onesignal",
		MaxRequests: 3,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
		// A missing subscription is the receiver's state, not an outage.
		IsSuccessful: func(err error) bool {
			var nre *onesignal.NoRecipientsError
			return err == nil || errors.As(err, &nre)
		},
	})
	processor := &workerproc.Processor{
		Store:           dbStore,
		Sender:          os1,
		Templates:       workerproc.DefaultTemplates,
		Limiter:         limiter,
		Breaker:         cb,
		ClaimStaleAfter: cfg.ClaimStaleAfter,
	}

	readyChecks := []httpserver.ReadyzCheck{
		func(c context.Context) error { return db.Ping(c) },
		queueReady,
	}
	if rdb := redisutil.NewClient(cfg.RedisConfig); rdb != nil {
		defer rdb.Close()
		processor.Badges = badge.New(rdb)
		readyChecks = append(readyChecks, func(c context.Context) error { return rdb.Ping(c).Err() })
	} else {
		slog.Warn("REDIS_ADDR not set, pushes are sent without badge counts")
	}

	// health + metrics servers
	health := httpserver.New()
	health.Mux.Use(httpserver.Logging)
	health.RegisterHealth(2*time.Second, readyChecks...)

	healthSrv := &http.Server{Addr: ":" + cfg.Port, Handler: health.Mux}
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}

	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()
	metricsErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker metrics listening", "port", cfg.MetricsPort)
		metricsErrCh <- metricsSrv.ListenAndServe()
	}()

	// start polling
	pollErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker starting poll", "queue_url", cfg.SQSQueueURL)
		pollErrCh <- consumer.PollConcurrent(ctx, cfg.WorkerConcurrency, func(ctx context.Context, job sqsqueue.PushJob) (err error) {
			start := time.Now()
			slog.Info("worker job start", "notification_id", job.NotificationID)
			defer func() {
				if err != nil {
					slog.Info("worker job finish",
						"notification_id", job.NotificationID,
						"status", "error",
						"duration", time.Since(start),
						"err", err,
					)
				} else {
					slog.Info("worker job finish",
						"notification_id", job.NotificationID,
						"status", "ok",
						"duration", time.Since(start),
					)
				}
			}()
			return processor.Process(ctx, job)
		})
	}()

	// shutdown wiring
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case err := <-pollErrCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("worker poll failed", "err", err)
			exitCode = 1
		}
	case err := <-healthErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker health server failed", "err", err)
			exitCode = 1
		}
	case err := <-metricsErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker metrics server failed", "err", err)
			exitCode = 1
		}
	case sig := <-sigCh:
		slog.Info("worker shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	select {
	case <-pollErrCh:
	case <-time.After(10 * time.Second):
		slog.Info("worker shutdown timeout waiting for poll loop")
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
