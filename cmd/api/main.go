package main

import (
	"context"
	"expvar"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"bazaar/internal/auth"
	"bazaar/internal/db"
	"bazaar/internal/domain/storage"
	"bazaar/internal/idempotency"
	"bazaar/internal/mailer"
	"bazaar/internal/metrics"
	"bazaar/internal/payments"
	"bazaar/internal/ratelimiter"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new zap logger with color.
func NewLogger() (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)
	core := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), zapcore.InfoLevel)

	return zap.New(core).Sugar(), nil
}

var version = "0.1.0"

func loadConfig() config {
	apiURL := strings.TrimRight(getEnv("EXTERNAL_URL", "http://localhost:8080"), "/")
	production := getEnvBool("PAYU_PRODUCTION", false)

	return config{
		addr:        getEnv("ADDR", ":8080"),
		env:         getEnv("ENV", "development"),
		apiURL:      apiURL,
		frontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		db: dbConfig{
			addr:        os.Getenv("DB_ADDR"),
			maxConns:    int32(getEnvInt("DB_MAX_CONNS", 10)),
			maxIdleTime: getEnv("DB_MAX_IDLE_TIME", "15m"),
		},
		redis: redisConfig{
			addr:     os.Getenv("REDIS_ADDR"),
			password: os.Getenv("REDIS_PASSWORD"),
			db:       getEnvInt("REDIS_DB", 0),
			ttl:      getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		auth: authConfig{
			basic: basicConfig{
				user: os.Getenv("AUTH_BASIC_USER"),
				pass: os.Getenv("AUTH_BASIC_PASS"),
			},
			token: tokenConfig{
				secret: os.Getenv("AUTH_TOKEN_SECRET"),
				iss:    getEnv("AUTH_TOKEN_ISS", "bazaar"),
			},
		},
		payu: payments.PayUConfig{
			MerchantKey:  os.Getenv("PAYU_MERCHANT_KEY"),
			Salt:         os.Getenv("PAYU_SALT"),
			IsProduction: production,
			StrictFields: getEnvBool("PAYU_STRICT_FIELDS", production),
			DefaultPhone: getEnv("PAYU_DEFAULT_PHONE", "9999999999"),
			SuccessURL:   apiURL + "/v1/payments/payu/success",
			FailureURL:   apiURL + "/v1/payments/payu/failure",
		},
		mail: mailConfig{
			smtp: mailer.SMTPConfig{
				Host:      os.Getenv("SMTP_HOST"),
				Port:      getEnvInt("SMTP_PORT", 587),
				Username:  os.Getenv("SMTP_USER"),
				Password:  os.Getenv("SMTP_PASS"),
				FromEmail: os.Getenv("MAIL_FROM"),
			},
		},
		rateLimiter: LoadRateLimiterConfig(),
	}
}

func main() {
	// a missing .env is normal outside local development
	envErr := godotenv.Load()

	logger, err := NewLogger()
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Infow("no .env file loaded, using process environment", "error", envErr.Error())
	}

	cfg := loadConfig()

	// Payment gateway
	payu, err := payments.NewPayUAdapter(cfg.payu)
	if err != nil {
		logger.Fatal(err)
	}
	paymentManager := payments.NewPaymentManager()
	paymentManager.RegisterGateway(payments.ProviderPayU, payu)
	logger.Infow("payment gateway registered",
		"provider", payments.ProviderPayU,
		"production", cfg.payu.IsProduction,
		"strict_fields", cfg.payu.StrictFields,
		"action", payu.FormAction(),
	)

	if cfg.auth.token.secret == "" {
		logger.Fatal("AUTH_TOKEN_SECRET is required")
	}

	// Database
	var store *storage.Container
	if cfg.db.addr != "" {
		pool, err := db.New(cfg.db.addr, cfg.db.maxConns, cfg.db.maxIdleTime)
		if err != nil {
			logger.Fatal(err)
		}
		defer pool.Close()
		logger.Info("database connection pool established")

		store = storage.NewContainer(pool)
		expvar.Publish("database", expvar.Func(func() any {
			s := pool.Stat()
			return map[string]any{
				"total_conns":    s.TotalConns(),
				"idle_conns":     s.IdleConns(),
				"acquired_conns": s.AcquiredConns(),
			}
		}))
	} else {
		logger.Warn("DB_ADDR not set, payment attempts are kept in memory (sandbox mode)")
		store = storage.NewMemoryContainer()
	}

	app := &application{
		config:        cfg,
		store:         store,
		logger:        logger,
		payments:      paymentManager,
		authenticator: auth.NewJWTAuthenticator(cfg.auth.token.secret, cfg.auth.token.iss),
		metrics:       metrics.NewPayments(),
	}

	// Replay cache
	if cfg.redis.addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		cache, err := idempotency.New(ctx, idempotency.Config{
			Addr:      cfg.redis.addr,
			Password:  cfg.redis.password,
			DB:        cfg.redis.db,
			TTL:       cfg.redis.ttl,
			KeyPrefix: "bazaar:",
		}, logger)
		cancel()
		if err != nil {
			logger.Fatal(err)
		}
		defer cache.Close()
		app.replay = cache
	} else {
		logger.Warn("REDIS_ADDR not set, replayed callbacks are not deduplicated")
	}

	// Receipts
	if cfg.mail.smtp.Host != "" {
		m, err := mailer.NewSMTPMailer(cfg.mail.smtp)
		if err != nil {
			logger.Fatal(err)
		}
		app.mailer = m
	} else {
		logger.Warn("SMTP_HOST not set, payment receipts are disabled")
	}

	// Rate limiter
	if cfg.rateLimiter.Enabled {
		app.rateLimiter = ratelimiter.NewIPLimiter(cfg.rateLimiter)
		defer app.rateLimiter.Close()
	}

	//Metrics collected http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.mount()

	if err := app.run(mux); err != nil {
		logger.Fatal(err)
	}
}
