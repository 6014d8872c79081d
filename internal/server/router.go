// Package server assembles the HTTP API from configuration, storage and cache.
package server

import (
	"context"
	"log"
	"time"

	"task-tracker/internal/cache"
	"task-tracker/internal/config"
	"task-tracker/internal/database"
	"task-tracker/internal/handlers"
	"task-tracker/internal/middleware"
	"task-tracker/internal/monitoring"
	"task-tracker/internal/services"
	"task-tracker/internal/worker"

	"github.com/gin-gonic/gin"
)

type Dependencies struct {
	Pool  *database.DatabasePool
	Cache cache.Cache // nil disables query caching
}

// App is a configured router together with the resources it owns.
type App struct {
	Router  *gin.Engine
	Monitor *monitoring.Monitor
	limiter *middleware.RateLimiter
	worker  *worker.Worker
}

func NewApp(cfg *config.Config, deps Dependencies) *App {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	policy := services.ValidationPolicy{
		Strict:            cfg.Validation.Strict,
		MinFullNameLength: cfg.Validation.MinFullNameLength,
	}

	var (
		employeeService services.EmployeeService = services.NewEmployeeService(policy)
		taskService     services.TaskService     = services.NewTaskService(policy)
		queryService    services.QueryService    = services.NewQueryService()
	)

	app := &App{}
	monitor := monitoring.NewMonitor()
	monitor.RegisterHealthCheck("database", deps.Pool.HealthContext)
	monitor.RegisterStats("database", func() interface{} { return deps.Pool.Stats() })

	if deps.Cache != nil {
		cachedQueries := services.NewCachedQueryService(queryService, deps.Cache, cfg.Cache.QueryTTL)
		employeeService = services.NewCachedEmployeeService(employeeService, cachedQueries)
		taskService = services.NewCachedTaskService(taskService, cachedQueries)
		queryService = cachedQueries

		monitor.RegisterHealthCheck("cache", func(ctx context.Context) error { return deps.Cache.Health(ctx) })
		monitor.RegisterStats("cache", func() interface{} { return cachedQueries.CacheStats() })

		if cfg.Cache.WarmInterval > 0 {
			app.worker = startCacheWarmer(deps.Pool, cachedQueries, cfg.Cache.WarmInterval)
			monitor.RegisterStats("worker", func() interface{} { return app.worker.Stats() })
		}
	}

	router := gin.New()
	router.Use(
		middleware.RecoveryWithLog(),
		middleware.RequestID(),
		middleware.RequestLogger(),
		monitor.Middleware(),
		middleware.CORS(cfg.Server.AllowedOrigins),
	)

	router.GET("/health", monitor.HealthHandler())
	router.GET("/health/ready", monitor.ReadinessHandler())
	router.GET("/health/live", monitor.LivenessHandler())
	router.GET("/metrics", monitor.MetricsHandler())

	app.Router = router
	app.Monitor = monitor

	api := router.Group("/")
	if cfg.RateLimit.Enabled {
		app.limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstSize, cfg.RateLimit.CleanupInterval)
		api.Use(app.limiter.Middleware())
	}
	if cfg.Auth.Enabled {
		api.Use(middleware.RequireWriteToken(middleware.AuthConfig{
			Secret: cfg.Auth.JWTSecret,
			Issuer: cfg.Auth.Issuer,
		}))
	}

	employeeHandler := handlers.NewEmployeeHandler(deps.Pool.DB, employeeService, queryService)
	employees := api.Group("/employees")
	{
		employees.GET("", employeeHandler.GetEmployees)
		employees.POST("", employeeHandler.CreateEmployee)
		employees.GET("/busy", employeeHandler.BusyEmployees)
		employees.GET("/:id", employeeHandler.GetEmployeeByID)
		employees.PUT("/:id", employeeHandler.UpdateEmployee)
		employees.PATCH("/:id", employeeHandler.PatchEmployee)
		employees.DELETE("/:id", employeeHandler.DeleteEmployee)
	}

	taskHandler := handlers.NewTaskHandler(deps.Pool.DB, taskService, queryService)
	tasks := api.Group("/tasks")
	{
		tasks.GET("", taskHandler.GetTasks)
		tasks.POST("", taskHandler.CreateTask)
		tasks.GET("/important", taskHandler.ImportantTasks)
		tasks.GET("/:id", taskHandler.GetTaskByID)
		tasks.PUT("/:id", taskHandler.UpdateTask)
		tasks.PATCH("/:id", taskHandler.PatchTask)
		tasks.DELETE("/:id", taskHandler.DeleteTask)
	}

	return app
}

// startCacheWarmer keeps the derived query results precomputed so reads after an
// idle period do not pay for the aggregation.
func startCacheWarmer(pool *database.DatabasePool, queries *services.CachedQueryService, interval time.Duration) *worker.Worker {
	w := worker.NewWorker(worker.DefaultWorkerConfig())
	w.RegisterHandler(worker.JobTypeWarmQueries, func(ctx context.Context, job *worker.Job) error {
		stored, err := queries.Warm(pool.DB.WithContext(ctx))
		if err != nil {
			return err
		}
		if !stored {
			log.Printf("🔄 Query cache changed during warm job %s, result discarded", job.ID)
		}
		return nil
	})
	w.Start(1)
	w.Enqueue(worker.JobTypeWarmQueries)
	w.Schedule(worker.JobTypeWarmQueries, interval)
	return w
}

func (a *App) Close() {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.worker != nil {
		a.worker.Stop()
	}
}
