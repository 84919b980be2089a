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

	"eventpush/internal/awsutil"
	"eventpush/internal/badge"
	"eventpush/internal/config"
	"eventpush/internal/httpserver"
	"eventpush/internal/logging"
	"eventpush/internal/observability"
	"eventpush/internal/pending"
	sqsqueue "eventpush/internal/queue/sqs"
	"eventpush/internal/redisutil"
	"eventpush/internal/service"
	"eventpush/internal/store/pg"
	"eventpush/internal/util"
)

func main() {
	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBConfig)
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	dbStore := pg.New(db)

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("api sqs client init failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	producer := &sqsqueue.Producer{SQS: sqsClient, QueueURL: cfg.SQSQueueURL, GroupBuckets: cfg.SQSGroupBuckets}

	routes := &service.RouteService{}
	readyChecks := []httpserver.ReadyzCheck{
		func(c context.Context) error { return db.Ping(c) },
		func(c context.Context) error {
			_, err := sqsClient.GetQueueAttributes(c, &sqs.GetQueueAttributesInput{
				QueueUrl:       &cfg.SQSQueueURL,
				AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
			})
			return err
		},
	}
	if rdb := redisutil.NewClient(cfg.RedisConfig); rdb != nil {
		defer rdb.Close()
		routes.Pending = pending.NewRedis(rdb, 0)
		routes.Badges = badge.New(rdb)
		readyChecks = append(readyChecks, func(c context.Context) error { return rdb.Ping(c).Err() })
	} else {
		slog.Warn("REDIS_ADDR not set, pending routes are kept in memory and badges are disabled")
		routes.Pending = pending.NewMemory()
	}

	api := &httpserver.API{
		Notifications: &service.NotificationService{Store: dbStore, Queue: producer},
		Users:         &service.UserService{Store: dbStore},
		Events:        &service.EventService{Store: dbStore},
		Routes:        routes,
		IDGen:         util.NewNotificationID,
	}

	s := httpserver.NewInstrumented(observability.APIRequests)
	api.Register(s.Mux)
	s.RegisterHealth(2*time.Second, readyChecks...)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}

	srvErrCh := make(chan error, 1)
	go func() {
		slog.Info("api listening", "port", cfg.Port)
		srvErrCh <- srv.ListenAndServe()
	}()
	metricsErrCh := make(chan error, 1)
	go func() {
		slog.Info("api metrics listening", "port", cfg.MetricsPort)
		metricsErrCh <- metricsSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case err := <-srvErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api server failed", "err", err)
			exitCode = 1
		}
	case err := <-metricsErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api metrics server failed", "err", err)
			exitCode = 1
		}
	case sig := <-sigCh:
		slog.Info("api shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
