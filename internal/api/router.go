package api

import (
	"github.com/gin-gonic/gin"
	"github.com/motionclinic/casematch/internal/api/handler"
	"github.com/motionclinic/casematch/internal/api/middleware"
	"github.com/motionclinic/casematch/internal/engine"
	"github.com/motionclinic/casematch/internal/logger"
	"github.com/motionclinic/casematch/internal/repository"
	"github.com/motionclinic/casematch/internal/storage"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	evaluator *engine.Evaluator,
	caseRepo *repository.CaseRepository,
	scans storage.ScanStorage,
	log *logger.Logger,
	mode string,
	cors middleware.CORSConfig,
) *gin.Engine {
	// Set Gin mode
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cors))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	analyzeHandler := handler.NewAnalyzeHandler(evaluator, scans)
	caseHandler := handler.NewCaseHandler(caseRepo)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Evaluation
		v1.POST("/analyze", analyzeHandler.Analyze)
		v1.POST("/analyze/text", analyzeHandler.AnalyzeText)

		// Categories
		v1.GET("/categories", analyzeHandler.GetCategories)

		// Cases
		v1.GET("/cases/:id", caseHandler.GetCase)

		// Stats
		v1.GET("/stats", caseHandler.GetStats)
	}

	return r
}
