package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"curriculab/internal/api"
	"curriculab/internal/attendance"
	"curriculab/internal/auth"
	"curriculab/internal/catalog"
	"curriculab/internal/changelog"
	"curriculab/internal/config"
	"curriculab/internal/httpmiddleware"
	"curriculab/internal/logging"
	"curriculab/internal/memstore"
	"curriculab/internal/queue"
	"curriculab/internal/store"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.WithError(err).Fatal("http server failed")
	}
}

type backends struct {
	subjects  attendance.SubjectDirectory
	timetable api.Timetable
	logs      attendance.LogStore
	changes   changelog.Store
	seeder    catalog.Seeder
	healthy   func(context.Context) bool
	close     func()
}

func openStore(ctx context.Context, cfg config.App, log *logrus.Logger) (backends, error) {
	if cfg.StoreBackend == "memory" {
		mem := memstore.New()
		log.Warn("using in-memory store, data is lost on restart")
		return backends{
			subjects: mem, timetable: mem, logs: mem, changes: mem, seeder: mem,
			healthy: func(context.Context) bool { return true },
			close:   func() {},
		}, nil
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Warn("db not reachable")
	}
	if db == nil {
		return backends{}, err
	}
	if err == nil {
		if err := db.Migrate(ctx); err != nil {
			return backends{}, err
		}
	}
	cat := catalog.NewRepository(db.Client)
	return backends{
		subjects:  cat,
		timetable: cat,
		logs:      attendance.NewRepository(db.Client),
		changes:   changelog.NewRepository(db.Client),
		seeder:    cat,
		healthy:   db.Healthy,
		close:     func() { _ = db.Close() },
	}, nil
}

func runHTTP(cfg config.App, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	if cfg.SeedFile != "" {
		data, err := catalog.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := catalog.Seed(ctx, b.seeder, data); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"subjects": len(data.Subjects), "slots": len(data.Timetable)}).Info("catalog seeded")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		mq := queue.NewInMemory(64)
		q = mq
		// no separate worker process can see this queue
		go func() {
			_ = changelog.NewRecorder(b.changes, log.WithField("component", "recorder")).Run(ctx, mq)
		}()
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	}

	svc := attendance.NewService(b.subjects, b.timetable, b.logs,
		attendance.WithLocation(cfg.Location()),
		attendance.WithWindow(cfg.MissingWindowDays),
		attendance.WithLogger(log.WithField("component", "attendance")),
		attendance.WithPublisher(q),
	)
	h := api.New(svc, b.subjects, b.timetable, b.changes, log.WithField("component", "api"))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(log, "/healthz", "/metrics"))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := cfg.QueueBackend == "memory" || redisClient.Healthy(c.Request.Context())
		dbHealthy := b.healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	v1 := r.Group("/v1", auth.UserAuth(cfg.JWTSigningKey, cfg.JWTIssuer), limiter.GinMiddleware())
	h.Register(v1)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.HTTPPort).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server forced shutdown")
	}
	log.Info("server exited")
	return nil
}

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       24 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cc.AllowAllOrigins = true
			return cc
		}
	}
	cc.AllowOrigins = origins
	cc.AllowCredentials = true
	return cc
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
