package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"crm-backend/internal/core/auth"
	"crm-backend/internal/core/config"
	"crm-backend/internal/store"
	"crm-backend/internal/transport/http/handler"
	mdw "crm-backend/internal/transport/http/middleware"
	"crm-backend/pkg/utils"
)

// NewEngine assembles the middleware chain and mounts every resource. All
// routes live under /api; only login and health skip the auth gate.
func NewEngine(cfg *config.Config, l *zap.Logger, s *store.Store, jwter *auth.JWTer) *gin.Engine {
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		mdw.RequestID(),
		cors.Default(),
		ginzap.GinzapWithConfig(l, &ginzap.Config{
			TimeFormat: time.RFC3339,
			UTC:        true,
			Context: func(c *gin.Context) []zapcore.Field {
				return []zapcore.Field{mdw.RequestIDField(c)}
			},
		}),
		mdw.Recovery(l, cfg.Production()),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(16<<20),
		mdw.Timeout(10*time.Second),
		mdw.Metrics(),
	)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": utils.NowISO(),
			"message":   cfg.App.Name + " is running",
		})
	})

	authed := mdw.AuthJWT(jwter)

	authH := handler.NewAuth(s, jwter, l)
	ag := api.Group("/auth")
	ag.POST("/login", authH.Login)
	agAuthed := ag.Group("", authed)
	agAuthed.GET("/me", authH.Me)
	agAuthed.GET("/users", authH.ListUsers)
	agAdmin := agAuthed.Group("", mdw.RequireAdmin())
	agAdmin.POST("/users", authH.CreateUser)
	agAdmin.PUT("/users/:id/block", authH.BlockUser)
	agAdmin.PUT("/users/:id/unblock", authH.UnblockUser)
	agAdmin.DELETE("/users/:id", authH.DeleteUser)

	clientsH := handler.NewClients(s, l)
	cg := api.Group("/clients", authed)
	cg.GET("", clientsH.List)
	cg.POST("", clientsH.Create)
	cg.GET("/:id", clientsH.Get)
	cg.PUT("/:id", clientsH.Update)
	cg.DELETE("/:id", clientsH.Delete)
	cg.POST("/:id/notes", clientsH.AddNote)

	projectsH := handler.NewProjects(s, l)
	pg := api.Group("/projects", authed)
	pg.GET("", projectsH.List)
	pg.POST("", projectsH.Create)
	pg.GET("/:id", projectsH.Get)
	pg.PUT("/:id", projectsH.Update)
	pg.DELETE("/:id", projectsH.Delete)
	pg.POST("/:id/modules", projectsH.AddModule)
	pg.PUT("/:id/modules/:moduleId", projectsH.UpdateModule)
	pg.PUT("/:id/financials", projectsH.UpdateFinancials)
	pg.POST("/:id/documents", projectsH.AddDocument)
	pg.DELETE("/:id/documents/:docId", projectsH.DeleteDocument)
	pg.POST("/:id/activities", projectsH.AddActivity)

	tasksH := handler.NewTasks(s, l)
	tg := api.Group("/tasks", authed)
	tg.GET("", tasksH.List)
	tg.POST("", tasksH.Create)
	tg.GET("/my", tasksH.ListMine)
	tg.GET("/project/:projectId", tasksH.ListByProject)
	tg.GET("/:id", tasksH.Get)
	tg.PUT("/:id", tasksH.Update)
	tg.DELETE("/:id", tasksH.Delete)
	tg.POST("/:id/comments", tasksH.AddComment)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
	})

	return r
}
