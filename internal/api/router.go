package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/promptlab/promptlab/internal/api/handlers"
	"github.com/promptlab/promptlab/internal/api/middleware"
	"github.com/promptlab/promptlab/internal/auth"
	"github.com/promptlab/promptlab/internal/cache"
	"github.com/promptlab/promptlab/internal/config"
	"github.com/promptlab/promptlab/internal/evaluation"
	"github.com/promptlab/promptlab/internal/llm"
	"github.com/promptlab/promptlab/internal/project"
	"github.com/promptlab/promptlab/internal/prompt"
	"github.com/promptlab/promptlab/internal/queue"
	"github.com/promptlab/promptlab/internal/testcase"
	"github.com/promptlab/promptlab/internal/webhook"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	jwt   *auth.JWTMiddleware
	llmGW *llm.Gateway
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		jwt:   auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
		llmGW: llm.NewGateway(cfg.LLM),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Initialize services
	projectSvc := project.NewService(rt.db)
	promptSvc := prompt.NewService(rt.db)
	registry := testcase.NewRegistry(rt.db)
	evalStore := evaluation.NewStore(rt.db)
	batchStore := evaluation.NewBatchStore(rt.db)
	runner := evaluation.NewRunner(promptSvc, registry, evalStore, rt.llmGW, rt.cfg.Eval.BatchConcurrency)
	assembler := evaluation.NewAssembler(promptSvc, registry, evalStore)
	queueClient := queue.NewClient(rt.cfg.Redis)
	dispatcher := webhook.NewDispatcher()
	webhookSvc := webhook.NewService(rt.db, dispatcher)

	var compareCache *cache.CompareCache
	if rt.redis != nil {
		compareCache = cache.NewCompareCache(rt.redis, time.Duration(rt.cfg.Eval.CompareCacheTTLSeconds)*time.Second)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		projectH := handlers.NewProjectHandler(projectSvc)
		r.Route("/projects", func(r chi.Router) {
			r.Post("/", projectH.Create)
			r.Get("/", projectH.List)
			r.Delete("/{id}", projectH.Delete)
		})

		promptH := handlers.NewPromptHandler(promptSvc)
		tcH := handlers.NewTestCaseHandler(registry)
		evalH := handlers.NewEvaluationHandler(runner, assembler, batchStore, queueClient, compareCache, rt.cfg.LLM.DefaultModel)
		r.Route("/prompts", func(r chi.Router) {
			r.Post("/", promptH.Create)
			r.Get("/", promptH.List)
			r.Get("/{id}", promptH.Get)
			r.Patch("/{id}", promptH.Rename)
			r.Post("/{id}/versions", promptH.CreateVersion)
			r.Get("/{id}/versions", promptH.ListVersions)
			r.Get("/{id}/versions/latest", promptH.GetLatestVersion)
			r.Post("/{id}/testcases", tcH.Create)
			r.Get("/{id}/testcases", tcH.List)
			r.Get("/{id}/compare", evalH.Compare)
		})

		r.Delete("/testcases/{id}", tcH.Delete)

		r.Route("/evaluations", func(r chi.Router) {
			r.Post("/run", evalH.Run)
			r.Post("/batch", evalH.RunBatch)
			r.Get("/batch/{id}", evalH.GetBatch)
		})

		modelsH := handlers.NewModelsHandler(rt.llmGW)
		r.Get("/models", modelsH.List)

		webhookH := handlers.NewWebhookHandler(webhookSvc)
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/", webhookH.Create)
			r.Get("/", webhookH.List)
			r.Delete("/{id}", webhookH.Delete)
		})
	})

	return r
}
