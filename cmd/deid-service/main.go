package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/mux"
	"github.com/synaptica-ai/pseudonym/pkg/common/auth"
	"github.com/synaptica-ai/pseudonym/pkg/common/config"
	"github.com/synaptica-ai/pseudonym/pkg/common/database"
	"github.com/synaptica-ai/pseudonym/pkg/common/kafka"
	"github.com/synaptica-ai/pseudonym/pkg/common/logger"
	"github.com/synaptica-ai/pseudonym/pkg/common/middleware"
	"github.com/synaptica-ai/pseudonym/pkg/common/models"
	"github.com/synaptica-ai/pseudonym/pkg/deid"
	"github.com/synaptica-ai/pseudonym/pkg/dlp"
	"github.com/synaptica-ai/pseudonym/pkg/labelpool"
	"github.com/synaptica-ai/pseudonym/pkg/observability/metrics"
	"github.com/synaptica-ai/pseudonym/pkg/pseudonym"
)

type DeIDApp struct {
	service  *deid.Service
	producer *kafka.Producer
	consumer *kafka.Consumer
}

func main() {
	logger.Init()
	metrics.Init()
	cfg := config.Load()

	db, err := database.GetKeyfileStore()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to keyfile store")
	}
	defer database.CloseKeyfileStore()

	repo := deid.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate keyfile tables")
	}

	rules, err := dlp.LoadRules(cfg.DLPRulesFile)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load DLP rules")
	}
	detector, err := dlp.NewDetector(rules)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to compile DLP rules")
	}

	pools := labelpool.NewStore(database.GetRedis(), cfg.LabelPoolTTL)
	defer database.CloseRedis()

	service := deid.NewService(repo,
		deid.WithPools(pools),
		deid.WithDetector(detector, cfg.DLPStrict),
		deid.WithKeySource(deid.FileKeySource(cfg.KeyFile)),
		deid.WithDefaults(defaultPlan(cfg)),
	)

	app := &DeIDApp{service: service}
	app.producer = kafka.NewProducer(cfg.OutputTopic)
	defer app.producer.Close()

	app.consumer = kafka.NewConsumer(cfg.InputTopic, cfg.KafkaGroupID, kafka.WithPermanent(deid.IsInputError))
	defer app.consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := app.consumer.Consume(ctx, app.processEvent); err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Fatal("consumer error")
		}
	}()

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := database.Check(ctx, db, database.GetRedis()); err != nil {
			logger.Log.WithError(err).Warn("not ready")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	var handlerOpts []deid.HandlerOption
	if cfg.AuthTokenSecret != "" {
		tokens, err := auth.NewTokenManager(cfg.AuthTokenSecret, cfg.AuthIssuer, cfg.AuthAudience, cfg.AuthTokenTTL)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to configure service tokens")
		}
		handlerOpts = append(handlerOpts, deid.WithTokens(tokens))
	} else {
		logger.Log.Warn("AUTH_TOKEN_SECRET not set; API is unauthenticated and re-identification is disabled")
	}
	deid.NewHandler(service, cfg.MaxRequestBody, handlerOpts...).Register(router.PathPrefix("/api/v1").Subrouter())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Pseudonymization Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Pseudonymization Service...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Pseudonymization Service stopped")
}

func defaultPlan(cfg *config.Config) pseudonym.Plan {
	plan := pseudonym.Plan{}
	if cfg.PlanFile != "" {
		loaded, err := pseudonym.LoadPlan(cfg.PlanFile)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to load default plan")
		}
		plan = loaded
	}
	if plan.Prefix == "" {
		plan.Prefix = cfg.Prefix
	}
	if plan.PoolSize == 0 {
		plan.PoolSize = cfg.PoolSize
	}
	if plan.PadWidth == 0 {
		plan.PadWidth = cfg.PadWidth
	}
	if plan.LabelColumn == "" {
		plan.LabelColumn = cfg.LabelColumn
	}
	if plan.Algorithm == "" {
		plan.Algorithm = cfg.HashAlgorithm
	}
	if plan.TruncateTo == nil {
		plan.TruncateTo = pseudonym.Truncate(cfg.TruncateTo)
	}
	return plan
}

func (a *DeIDApp) processEvent(ctx context.Context, event models.Event) error {
	req, err := deid.ParseDatasetEvent(event)
	if err != nil {
		logger.Log.WithError(err).Error("invalid dataset event")
		return err
	}

	resp, err := a.service.Pseudonymize(ctx, req)
	if err != nil {
		return err
	}

	// The keyfile is stored by now, so only the publish is repeated.
	data := deid.PayloadEvent(event.ID, resp)
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	return backoff.RetryNotify(
		func() error {
			return a.producer.PublishEvent(ctx, deid.EventTypePseudonymized, "deid-service", resp.RunID, data)
		},
		backoff.WithContext(b, ctx),
		func(err error, next time.Duration) {
			logger.ForRun(resp.RunID, resp.Strategy).WithError(err).WithField("next", next.String()).Warn("retrying payload publish")
		},
	)
}
