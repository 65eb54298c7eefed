package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"insurease-backend/internal/chatbot"
	"insurease-backend/internal/compare"
	"insurease-backend/internal/extract"
	"insurease-backend/internal/insurance"
	"insurease-backend/internal/llm"
	openai "insurease-backend/internal/llm/openai"
	"insurease-backend/internal/policies"
	"insurease-backend/internal/rag"
	"insurease-backend/internal/services/health"
	"insurease-backend/internal/session"
	"insurease-backend/internal/shared/auth"
	"insurease-backend/internal/shared/config"
	"insurease-backend/internal/shared/server"
	"insurease-backend/internal/shared/server/middleware"
	"insurease-backend/internal/shared/storage/db"
	"insurease-backend/internal/shared/storage/policystore"
	localstore "insurease-backend/internal/shared/storage/policystore/local"
	s3store "insurease-backend/internal/shared/storage/policystore/s3"
	"insurease-backend/internal/shared/telemetry"
	"insurease-backend/internal/users"
)

const rateLimitPrefix = "insurease:ratelimit"

// App holds shared dependencies and the wired router.
type App struct {
	Config  config.Config
	Router  *gin.Engine
	DB      *sql.DB
	Redis   *redis.Client
	Store   policystore.Store
	LLM     llm.Client
	Limiter middleware.Limiter

	UsersService     *users.Service
	SessionService   *session.Service
	InsuranceService *insurance.Service
	PoliciesService  *policies.Service
	CompareService   *compare.Service
	Chatbot          *chatbot.Service
	IndexBuilder     *rag.Builder
}

// Build wires every dependency and the router. The retrieval index is not
// built here; call BuildIndex.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		LLM:    client,
	}
	app.Redis, app.Limiter = buildLimiter(ctx, cfg)

	if err := buildServices(app); err != nil {
		return nil, err
	}
	if err := seedAdmin(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// IndexEnabled reports whether the retrieval index should be built at startup.
func (a *App) IndexEnabled() bool {
	return a.Config.IndexOnStartup && strings.TrimSpace(a.Config.OpenAIAPIKey) != ""
}

// BuildIndex indexes every stored policy and installs the result in the chatbot.
func (a *App) BuildIndex(ctx context.Context) error {
	n, err := a.Chatbot.Reindex(ctx)
	if err != nil {
		return fmt.Errorf("build policy index: %w", err)
	}
	telemetry.Info("bootstrap.index_ready", map[string]any{"documents": n})
	return nil
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.db_memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromConfig(cfg, db.DefaultServerOptions()))
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.db_memory", map[string]any{"reason": "connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (policystore.Store, error) {
	switch cfg.PolicyStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("POLICY_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.S3KMSKeyID)
	default:
		return localstore.New(cfg.BasePath), nil
	}
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		telemetry.Warn("bootstrap.llm_placeholder", map[string]any{"reason": "OPENAI_API_KEY empty"})
		return llm.PlaceholderClient{}, nil
	}
	client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.EmbeddingModel, cfg.OpenAITimeout)
	if err != nil {
		return nil, err
	}
	return llm.WithRetry(client), nil
}

// buildLimiter prefers Redis so limits hold across replicas and falls back to
// the in-process limiter when Redis is absent or unreachable.
func buildLimiter(ctx context.Context, cfg config.Config) (*redis.Client, middleware.Limiter) {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil, middleware.NewRateLimiter(nil)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		telemetry.Warn("bootstrap.redis_unavailable", map[string]any{"addr": cfg.RedisAddr, "error": err})
		_ = client.Close()
		return nil, middleware.NewRateLimiter(nil)
	}
	return client, middleware.NewRedisLimiter(client, rateLimitPrefix, 0)
}

func buildServices(app *App) error {
	var userRepo users.Repo
	if app.DB != nil {
		userRepo = &users.PGRepo{DB: app.DB}
	} else {
		userRepo = users.NewMemoryRepo()
	}
	userSvc := users.NewService(userRepo, app.Config.BcryptCost)

	tokens, err := auth.NewTokenManager(app.Config.JWTSecret, app.Config.JWTAlgorithm, app.Config.AccessTokenTTL)
	if err != nil {
		return err
	}
	sessionSvc := session.NewService(userSvc, tokens)

	text := extract.FromStore(app.Store)
	compareSvc := compare.NewService(text, app.LLM, app.Config.CompareMaxChars)
	builder := &rag.Builder{
		Lister:         app.Store,
		Text:           text,
		Client:         app.LLM,
		Cache:          rag.IndexCache{Dir: app.Config.IndexDir},
		Splitter:       rag.NewSentenceSplitter(),
		EmbeddingModel: app.Config.EmbeddingModel,
	}
	chatbotSvc := chatbot.NewService(func(ctx context.Context) (chatbot.Index, error) {
		router, err := builder.Build(ctx)
		if err != nil {
			return nil, err
		}
		return router, nil
	}, compareSvc)

	app.UsersService = userSvc
	app.SessionService = sessionSvc
	app.InsuranceService = insurance.NewService(app.Store)
	app.PoliciesService = policies.NewService(app.Store)
	app.CompareService = compareSvc
	app.Chatbot = chatbotSvc
	app.IndexBuilder = builder

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           app.Config,
		Session:          sessionSvc,
		SessionHandler:   session.NewHandler(sessionSvc, int(app.Config.CookieMaxAge.Seconds())),
		UsersHandler:     users.NewHandler(userSvc),
		InsuranceHandler: insurance.NewHandler(app.InsuranceService),
		PoliciesHandler:  policies.NewHandler(app.PoliciesService, app.Config.MaxUploadBytes),
		ChatbotHandler:   chatbot.NewHandler(chatbotSvc),
		Health:           buildHealth(app),
		Limiter:          app.Limiter,
	})
	return nil
}

func buildHealth(app *App) *health.Service {
	svc := health.NewService()
	if app.DB != nil {
		svc.Register("database", app.DB.PingContext)
	}
	if app.Redis != nil {
		svc.Register("redis", func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		})
	}
	svc.Register("policy_store", func(ctx context.Context) error {
		_, err := app.Store.Structure(ctx)
		return err
	})
	return svc
}

func seedAdmin(ctx context.Context, app *App) error {
	if app.Config.AdminEmail == "" || app.Config.AdminPassword == "" {
		return nil
	}
	created, err := app.UsersService.EnsureAdmin(ctx, app.Config.AdminEmail, app.Config.AdminPassword, "")
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		telemetry.Info("bootstrap.admin_created", map[string]any{"email": users.NormalizeEmail(app.Config.AdminEmail)})
	}
	return nil
}
