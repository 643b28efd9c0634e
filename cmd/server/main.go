package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	approvalhandler "seeddid/internal/approval/handler"
	approvalservice "seeddid/internal/approval/service"
	"seeddid/internal/audit"
	authhandler "seeddid/internal/auth/handler"
	authservice "seeddid/internal/auth/service"
	"seeddid/internal/auth/token"
	"seeddid/internal/credential/confidential"
	credentialhandler "seeddid/internal/credential/handler"
	credentialservice "seeddid/internal/credential/service"
	credentialstore "seeddid/internal/credential/store"
	didhandler "seeddid/internal/did/handler"
	didservice "seeddid/internal/did/service"
	didstore "seeddid/internal/did/store"
	"seeddid/internal/messaging"
	"seeddid/internal/messaging/breaker"
	"seeddid/internal/messaging/seal"
	"seeddid/internal/messaging/store/memory"
	redishub "seeddid/internal/messaging/store/redis"
	"seeddid/internal/platform/config"
	"seeddid/internal/platform/httpserver"
	"seeddid/internal/platform/kafka"
	"seeddid/internal/platform/logger"
	"seeddid/internal/platform/metrics"
	"seeddid/internal/platform/postgres"
	"seeddid/internal/platform/redis"
	"seeddid/internal/platform/secrets"
	schemahandler "seeddid/internal/schema/handler"
	schemaservice "seeddid/internal/schema/service"
	schemastore "seeddid/internal/schema/store"
	httptransport "seeddid/internal/transport/http"
)

const auditBuffer = 1024

// main wires dependencies and owns the server lifecycle. Business logic lives
// in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	schemas     schemaservice.Store
	dids        didservice.Store
	credentials credentialservice.Store
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	st, closeStores, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	hub, closeHub, err := buildHub(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeHub()

	auditor, runAudit, err := buildAuditor(ctx, cfg, log)
	if err != nil {
		return err
	}
	// The audit worker outlives the server so events from in-flight requests
	// are delivered before exit.
	auditCtx, stopAudit := context.WithCancel(context.Background())
	defer stopAudit()
	auditDone := make(chan struct{})
	go func() {
		defer close(auditDone)
		runAudit(auditCtx)
	}()

	didBox, err := loadBox(cfg.Auth.DIDSealKey, "DID_SEAL_KEY", log)
	if err != nil {
		return err
	}
	confidentialBox, err := loadBox(cfg.Confidential.Key, "CONFIDENTIAL_KEY", log)
	if err != nil {
		return err
	}

	schemas, err := schemaservice.New(st.schemas,
		schemaservice.WithLogger(log),
		schemaservice.WithMetrics(m),
		schemaservice.WithAuditPublisher(auditor),
	)
	if err != nil {
		return err
	}
	dids, err := didservice.New(st.dids, didBox,
		didservice.WithLogger(log),
		didservice.WithMetrics(m),
		didservice.WithAuditPublisher(auditor),
	)
	if err != nil {
		return err
	}
	credentials, err := credentialservice.New(st.credentials, schemas, confidential.New(confidentialBox),
		credentialservice.WithLogger(log),
		credentialservice.WithMetrics(m),
		credentialservice.WithAuditPublisher(auditor),
	)
	if err != nil {
		return err
	}
	approvals, err := approvalservice.New(credentials,
		approvalservice.WithLogger(log),
		approvalservice.WithMetrics(m),
		approvalservice.WithAuditPublisher(auditor),
		approvalservice.WithConcurrency(cfg.Messaging.ScanConcurrency),
	)
	if err != nil {
		return err
	}
	tokens := token.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	auth, err := authservice.New(dids, tokens,
		authservice.WithLogger(log),
		authservice.WithMetrics(m),
		authservice.WithAuditPublisher(auditor),
	)
	if err != nil {
		return err
	}

	if cfg.Messaging.Seal {
		hub = seal.NewHub(hub, dids, seal.WithLogger(log))
	}

	router := httptransport.NewRouter(httptransport.Routes{
		Public: []httptransport.Registrar{
			authhandler.New(auth, log),
			schemahandler.New(schemas, log),
			didhandler.New(dids, log),
		},
		Authenticated: []httptransport.Registrar{
			credentialhandler.New(credentials, log),
			approvalhandler.New(approvals, hub, log),
		},
	}, httptransport.Options{
		Logger:         log,
		Metrics:        m,
		Gatherer:       prometheus.DefaultGatherer,
		Tokens:         tokens,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting seeddid", "addr", cfg.Server.Addr, "sealed_messages", cfg.Messaging.Seal)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	stopAudit()
	<-auditDone
	return err
}

func buildStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, func(), error) {
	if cfg.Postgres.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		return stores{
			schemas:     schemastore.NewInMemory(),
			dids:        didstore.NewInMemory(),
			credentials: credentialstore.NewInMemory(),
		}, func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return stores{}, nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return stores{}, nil, err
	}
	log.Info("connected to postgres")
	return stores{
		schemas:     schemastore.NewPostgres(db),
		dids:        didstore.NewPostgres(db),
		credentials: credentialstore.NewPostgres(db),
	}, func() { _ = db.Close() }, nil
}

func buildHub(ctx context.Context, cfg config.Config, log *slog.Logger) (messaging.Hub, func(), error) {
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		log.Warn("REDIS_URL not set, messages live in process memory")
		return memory.NewHub(), func() {}, nil
	}
	log.Info("connected to redis")
	return breaker.NewHub(redishub.NewHub(client.Client), breaker.WithLogger(log)), func() { _ = client.Close() }, nil
}

// buildAuditor returns the publisher services emit to and the loop that
// delivers its events until ctx ends.
func buildAuditor(ctx context.Context, cfg config.Config, log *slog.Logger) (audit.Publisher, func(context.Context), error) {
	var sink audit.Publisher = audit.NewLogPublisher(log)
	var closeSink func()

	client, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if client != nil {
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.AuditTopic, 3, 1); err != nil {
			client.Close()
			return nil, nil, err
		}
		log.Info("audit events stream to kafka", "topic", cfg.Kafka.AuditTopic)
		sink = audit.NewKafkaPublisher(client, cfg.Kafka.AuditTopic)
		closeSink = client.Close
	}

	worker := audit.NewWorker(sink, auditBuffer, log)
	return worker.Publisher(), func(ctx context.Context) {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
		if closeSink != nil {
			closeSink()
		}
	}, nil
}

// loadBox opens the secret box for hexKey, generating a throwaway key when
// none is configured. Data sealed with a throwaway key is lost on restart.
func loadBox(hexKey, name string, log *slog.Logger) (*secrets.Box, error) {
	if hexKey == "" {
		generated, err := secrets.GenerateKey()
		if err != nil {
			return nil, err
		}
		log.Warn(name+" not set, generated an ephemeral key", "env", name)
		hexKey = generated
	}
	return secrets.NewBox(hexKey)
}
