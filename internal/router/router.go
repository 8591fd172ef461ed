package router

import (
	"net/http"
	"time"

	"clinicaja/internal/apierror"
	"clinicaja/internal/config"
	"clinicaja/internal/handler"
	"clinicaja/internal/infra"
	"clinicaja/internal/middleware"
	"clinicaja/internal/repository"
	"clinicaja/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// eventos may be nil, in which case lifecycle events are only recorded by the
// outbox column and never pushed.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, cb *infra.CircuitBreaker, eventos service.PublicadorEventos) *gin.Engine {
	// ── Repositories ─────────────────────────────────────────────────────────
	turnoRepo := repository.NewTurnoRepository(db)
	pagoRepo := repository.NewPagoRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	turnoSvc := service.NewTurnoService(turnoRepo, pagoRepo, eventos, service.TurnoOptions{
		MaxReintentosNumero: cfg.NumeracionMaxReintentos,
	})
	historialSvc := service.NewHistorialService(turnoRepo, cfg.HistorialMaxPageSize)

	// ── Handlers ─────────────────────────────────────────────────────────────
	turnosH := handler.NewTurnosHandler(turnoSvc, historialSvc)

	return Setup(cfg, turnosH, handler.Health(db, rdb, cb))
}

// Setup registers middleware and routes on a fresh engine. Split from New so
// handler tests can mount the real routing table over in-memory services.
func Setup(cfg *config.Config, turnosH *handler.TurnosHandler, health gin.HandlerFunc) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(cfg.RateLimitPerMinute, time.Minute))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, apierror.New(apierror.CodeNoEncontrado, "Ruta inexistente"))
	})

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", health)

	todos := middleware.RequireRole(middleware.RolCajero, middleware.RolSupervisor, middleware.RolAdministrador)
	supervision := middleware.RequireRole(middleware.RolSupervisor, middleware.RolAdministrador)

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		turnos := v1.Group("/turnos")
		{
			turnos.POST("", todos, turnosH.Abrir)
			turnos.GET("", supervision, turnosH.Listar)
			turnos.GET("/mio", todos, turnosH.MiTurno)
			turnos.POST("/:id/pagos", todos, turnosH.RegistrarPago)
			turnos.GET("/:id/resumen", todos, turnosH.Resumen)
			turnos.POST("/:id/cerrar", todos, turnosH.Cerrar)
			turnos.POST("/:id/anular", supervision, turnosH.Anular)
		}
	}

	// Swagger UI, only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
