package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pandaqa/internal/bootstrap"
	"pandaqa/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.StaticFile("/", "web/index.html")
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	healthHandler := handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt)
	router.GET("/healthz", healthHandler.Check)

	kbHandler := handler.NewKBHandler(app.Config, app.Splitter, app.Index, app.Log)
	queryHandler := handler.NewQueryHandler(app.Retriever, app.Generator, app.Log)

	api := router.Group("/api")
	api.POST("/upload", kbHandler.Upload)
	api.POST("/query", queryHandler.Query)
	api.GET("/status", kbHandler.Status)
	api.DELETE("/clear", kbHandler.Clear)
	api.POST("/save", kbHandler.Save)
	api.POST("/load", kbHandler.Load)
	api.GET("/lm-status", queryHandler.LMStatus)

	return router
}
