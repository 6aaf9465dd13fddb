package router

import (
	"net/http"

	"github.com/asaadkhaja99/rabbit-hole/internal/api/handler"
	"github.com/asaadkhaja99/rabbit-hole/internal/metrics"
	"github.com/gin-gonic/gin"
)

// ServiceName is reported by the health endpoint
const ServiceName = "rabbit-hole-api"

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware())

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	chatHandler := handler.NewChatHandler(deps)
	pdfHandler := handler.NewPDFHandler(deps)
	jobHandler := handler.NewJobHandler(deps)

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "healthy",
				"service": ServiceName,
			})
		})

		pdfs := api.Group("/pdf")
		{
			pdfs.POST("/upload", pdfHandler.Upload)
			pdfs.GET("/list", pdfHandler.List)
			pdfs.GET("/:filename", pdfHandler.Get)
		}

		chat := api.Group("/chat")
		{
			chat.POST("/stream", chatHandler.Chat)
			chat.GET("/formula", chatHandler.Formula)
			chat.POST("/figure", chatHandler.Figure)
			chat.POST("/equation", chatHandler.Equation)
		}

		api.POST("/equation/annotate", chatHandler.Annotate)

		plans := api.Group("/learning-plan")
		{
			plans.POST("/generate", jobHandler.GenerateLearningPlan)
			plans.GET("/status/:job_id", jobHandler.GetLearningPlanStatus)
		}
	}

	return r
}
