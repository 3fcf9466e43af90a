package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"

	"iplist/internal/builds"
	"iplist/internal/classifier"
	"iplist/internal/dataset"
	"iplist/internal/events"
	"iplist/internal/ingest/handler"
	"iplist/internal/ingest/journal"
	"iplist/internal/ingest/lock"
	"iplist/internal/ingest/service"
	"iplist/internal/normalize"
	"iplist/internal/pagetext"
	"iplist/internal/platform/config"
	"iplist/internal/platform/kafka"
	"iplist/internal/platform/metrics"
	"iplist/internal/platform/redis"
	"iplist/internal/publisher"
	"iplist/internal/ratelimit"
	"iplist/internal/reasoner"
	"iplist/internal/resolver"
	"iplist/pkg/platform/httputil"
	"iplist/pkg/platform/middleware/metadata"
	"iplist/pkg/platform/middleware/requesttime"
)

const (
	eventBufferSize  = 1024
	startupTimeout   = 15 * time.Second
	kafkaPartitions  = 3
	kafkaReplication = 1
	requestTimeout   = 60 * time.Second
)

// app holds the constructed dependency graph.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	registry *prometheus.Registry
	redis    *redis.Client
	db       *sql.DB
	kafka    *kgo.Client
	buffered *events.Buffered
	builds   *builds.Tracker
	limiter  *ratelimit.Middleware
	clientIP *metadata.ClientIP
	service  *service.Service
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(a.registry)

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	var err error
	if a.clientIP, err = metadata.NewClientIP(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	if a.redis, err = redis.New(startCtx, cfg.Redis); err != nil {
		return nil, err
	}

	jrnl, err := a.openJournal(startCtx)
	if err != nil {
		a.close()
		return nil, err
	}

	sink, err := a.openEvents(startCtx)
	if err != nil {
		a.close()
		return nil, err
	}

	resolverOpts := []resolver.Option{resolver.WithLogger(log), resolver.WithObserver(m)}
	if a.redis != nil {
		resolverOpts = append(resolverOpts, resolver.WithCache(resolver.NewRedisCache(a.redis, time.Duration(cfg.Dataset.DefaultTimeout)*time.Second)))
	}
	res, err := resolver.New(cfg.Resolver.Servers, cfg.Resolver.Timeout, resolverOpts...)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("resolver: %w", err)
	}

	gemini := reasoner.NewGemini(cfg.Reasoner.BaseURL, cfg.Reasoner.Model, cfg.Reasoner.APIKeys, cfg.Reasoner.Timeout,
		reasoner.WithLogger(log))
	if !gemini.Configured() {
		log.Warn("reasoning service not configured; classification needs an explicit category")
	}

	pub, err := newPublisher(cfg, log)
	if err != nil {
		a.close()
		return nil, err
	}

	categories := classifier.NewCategories(cfg.Dataset.Categories)
	if cfg.Dataset.CategoriesFromRepo {
		names, err := pub.Categories(startCtx)
		switch {
		case err != nil:
			log.Warn("failed to list categories from repository, using configured set", "error", err)
		case len(names) == 0:
			log.Warn("repository has no categories, using configured set")
		default:
			categories.Replace(names)
		}
	}
	clsOpts := []classifier.Option{
		classifier.WithLogger(log),
		classifier.WithBreakerObserver(m),
	}
	if cfg.Reasoner.PageTimeout > 0 && gemini.Configured() {
		clsOpts = append(clsOpts, classifier.WithContextFetcher(pagetext.New(cfg.Reasoner.PageTimeout)))
	}
	cls, err := classifier.New(gemini, categories, clsOpts...)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("classifier: %w", err)
	}

	guessers := []normalize.Guesser{}
	if gemini.Configured() {
		guessers = append(guessers, normalize.NewReasonerGuesser(gemini))
	}
	guessers = append(guessers, normalize.NewTLDGuesser(cfg.Dataset.DefaultTLD))
	norm, err := normalize.New(res,
		normalize.WithLogger(log),
		normalize.WithGuessers(guessers...),
		normalize.WithWWWAliases(cfg.Dataset.WWWAliases),
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("normalizer: %w", err)
	}

	var locker lock.Locker = lock.NewKeyed()
	if a.redis != nil {
		locker = lock.Chain{locker, lock.NewRedisLease(a.redis, cfg.Redis.LockTTL, lock.WithLeaseLogger(log))}
	}

	if cfg.RateLimit.Requests > 0 {
		var store ratelimit.Store = ratelimit.NewMemory()
		if a.redis != nil {
			store = ratelimit.NewRedis(a.redis)
		}
		a.limiter = ratelimit.NewMiddleware(store, cfg.RateLimit.Requests, cfg.RateLimit.Window,
			ratelimit.WithLogger(log), ratelimit.WithMetrics(m))
	}

	a.builds = builds.NewTracker(builds.WithEvents(sink), builds.WithMetrics(m), builds.WithLogger(log))

	a.service, err = service.New(service.Deps{
		Normalizer: norm,
		Resolver:   res,
		Classifier: cls,
		Publisher:  pub,
	},
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithLocker(locker),
		service.WithJournal(jrnl),
		service.WithEvents(sink),
		service.WithBuildTracker(a.builds),
		service.WithDefaults(dataset.Defaults{DNS: cfg.Resolver.Servers, Timeout: cfg.Dataset.DefaultTimeout}),
		service.WithMaxAttempts(cfg.Dataset.MaxAttempts),
		service.WithPublishTimeout(cfg.Dataset.PublishTimeout),
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("ingest service: %w", err)
	}
	return a, nil
}

func (a *app) openJournal(ctx context.Context) (service.Journal, error) {
	if a.cfg.Postgres.URL == "" {
		return journal.NewMemory(0), nil
	}
	db, err := sql.Open("postgres", a.cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(a.cfg.Postgres.MaxOpenConns)
	a.db = db
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	pg := journal.NewPostgres(db)
	if err := pg.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return pg, nil
}

func (a *app) openEvents(ctx context.Context) (events.Sink, error) {
	client, err := kafka.NewProducer(ctx, a.cfg.Kafka)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, nil
	}
	a.kafka = client
	if err := kafka.EnsureTopic(ctx, client, a.cfg.Kafka.Topic, kafkaPartitions, kafkaReplication); err != nil {
		return nil, err
	}
	a.buffered = events.NewBuffered(events.NewKafkaSink(client, a.cfg.Kafka.Topic), eventBufferSize,
		events.WithLogger(a.log))
	return a.buffered, nil
}

func newPublisher(cfg config.Config, log *slog.Logger) (publisher.Publisher, error) {
	if cfg.Publisher == config.PublisherMemory {
		log.Info("dry-run mode: publishing to memory")
		return publisher.NewMemory(), nil
	}
	gh, err := publisher.NewGitHub(cfg.GitHub.Repo, cfg.GitHub.Token, cfg.Dataset.PublishTimeout,
		publisher.WithLogger(log),
		publisher.WithAPIURL(cfg.GitHub.APIURL),
		publisher.WithBranch(cfg.GitHub.Branch),
		publisher.WithLayout(cfg.Dataset.Root, cfg.Dataset.File),
	)
	if err != nil {
		return nil, fmt.Errorf("github publisher: %w", err)
	}
	return gh, nil
}

func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(metadata.RequestID)
	r.Use(a.clientIP.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	var ingestMiddleware []func(http.Handler) http.Handler
	if a.limiter != nil {
		ingestMiddleware = append(ingestMiddleware, a.limiter.Limit)
	}
	handler.New(a.service, a.log).Register(r, ingestMiddleware...)
	if a.cfg.GitHub.WebhookSecret != "" {
		builds.NewWebhook(a.cfg.GitHub.WebhookSecret, a.builds, a.log).Register(r)
	} else {
		a.log.Info("GITHUB_WEBHOOK_SECRET unset; build notifications disabled")
	}
	return r
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{}
	status := http.StatusOK
	if a.redis != nil {
		checks["redis"] = "ok"
		if err := a.redis.Health(ctx); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if a.db != nil {
		checks["postgres"] = "ok"
		if err := a.db.PingContext(ctx); err != nil {
			checks["postgres"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	httputil.WriteJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": checks})
}

func (a *app) close() {
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
