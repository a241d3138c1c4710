// medqa-orchestrator server - drives the Generator/Verifier/Reformer/
// Translator pipeline, the human-in-the-loop validation queue, and the
// response cache behind an HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/medqa-orchestrator/pkg/agentrunner"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/audit"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/cache"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/config"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/database"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/humanloop"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/lang"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/llmclient"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/orchestrator"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/prompt"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/retrieval"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/safety"
	"github.com/codeready-toolchain/medqa-orchestrator/internal/retry"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	ginMode := getEnv("GIN_MODE", "debug")
	gin.SetMode(ginMode)

	log.Printf("Starting medqa-orchestrator")
	log.Printf("HTTP Port: %s", httpPort)
	log.Printf("Config Directory: %s", *configDir)

	ctx := context.Background()

	configPath := filepath.Join(*configDir, "medqa.yaml")
	if _, err := os.Stat(configPath); err != nil {
		log.Printf("No config file at %s, using built-in defaults", configPath)
		configPath = ""
	}
	cfg, err := config.Initialize(ctx, configPath)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("Error closing database client: %v", err)
		}
	}()
	log.Println("Connected to PostgreSQL database")

	orch := buildOrchestrator(cfg, dbClient)

	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()
	go orch.RunBackgroundSweeps(bgCtx)

	router := gin.Default()
	registerRoutes(router, orch, dbClient)

	log.Printf("HTTP server listening on :%s", httpPort)
	if err := router.Run(":" + httpPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// buildOrchestrator wires every collaborator per the resolved
// configuration: LLM transport, prompt builder, the four agent runners,
// the response cache, the human-loop manager, and the audit sink.
func buildOrchestrator(cfg *config.Config, dbClient *database.Client) *orchestrator.Orchestrator {
	d := cfg.Defaults

	llmBaseURL := getEnv("LLM_BASE_URL", "http://localhost:11434/v1")
	llmAPIKey := os.Getenv("LLM_API_KEY")
	llmModel := getEnv("LLM_MODEL", "medqa-default")
	llmClient := llmclient.NewHTTPClient(llmBaseURL, llmAPIKey, llmModel, nil)

	builder := prompt.NewPromptBuilder()

	policy := retry.Policy{
		MaxRetries: d.MaxRetries,
		BaseDelay:  d.RetryBaseDelay,
		Multiplier: 2,
		Jitter:     0.2,
	}

	maxTokens := 1024
	generator := agentrunner.NewGeneratorRunner(llmClient, builder, policy, d.LLMCallTimeout, maxTokens)
	verifier := agentrunner.NewVerifierRunner(llmClient, builder, policy, d.LLMCallTimeout, maxTokens)
	reformer := agentrunner.NewReformerRunner(llmClient, builder, policy, d.LLMCallTimeout, maxTokens)
	translator := agentrunner.NewTranslatorRunner(llmClient, builder, policy, d.LLMCallTimeout, maxTokens)

	respCache := cache.NewResponseCache(d.CacheTTL)
	detector := lang.NewDetector()
	classifier := safety.NewClassifier()
	retrievalClient := buildRetrievalClient()

	humanLoopMgr := humanloop.NewManager(dbClient.Client, d.HumanLoopTimeout)
	auditSink := audit.NewSink(dbClient.Client)

	return orchestrator.New(
		orchestrator.Config{
			MaxIterations:            d.MaxIterations,
			VerifierApproveThreshold: d.VerifierApproveThreshold,
			VerifierRejectThreshold:  d.VerifierRejectThreshold,
			WorkflowTimeout:          d.WorkflowTimeout,
			EnableHumanLoopDefault:   d.EnableHumanLoopDefault,
		},
		respCache, detector, classifier, retrievalClient,
		generator, verifier, reformer, translator,
		humanLoopMgr, auditSink,
	)
}

// buildRetrievalClient wires the document-retrieval boundary. No vector
// store is part of this retrieval pack (spec.md §1 scopes it out of core),
// so this returns an empty-context client; a real deployment replaces it
// with a Client backed by the actual embeddings/vector-search service.
func buildRetrievalClient() retrieval.Client {
	return retrieval.NewStubClient(func(_ context.Context, _ string) (models.Context, error) {
		return models.Context{}, nil
	})
}

type queryRequest struct {
	Text            string `json:"query" binding:"required"`
	TargetLanguage  string `json:"target_language"`
	EnableHumanLoop *bool  `json:"enable_human_loop"`
}

type decisionRequest struct {
	Decision     string `json:"decision" binding:"required"`
	ModifiedText string `json:"modified_text"`
	Notes        string `json:"notes"`
}

func registerRoutes(router *gin.Engine, orch *orchestrator.Orchestrator, dbClient *database.Client) {
	router.POST("/query", func(c *gin.Context) {
		var req queryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		enableHumanLoop := orch.EnableHumanLoopDefault()
		if req.EnableHumanLoop != nil {
			enableHumanLoop = *req.EnableHumanLoop
		}

		resp, err := orch.ProcessQuery(c.Request.Context(), models.Query{
			Text:            req.Text,
			TargetLanguage:  models.Language(req.TargetLanguage),
			EnableHumanLoop: enableHumanLoop,
		})
		if err != nil {
			var orchErr *orchestrator.Error
			if errors.As(err, &orchErr) && orchErr.Kind == orchestrator.ErrInputInvalid {
				c.JSON(http.StatusBadRequest, gin.H{"error": orchErr.Msg})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, resp)
	})

	router.POST("/validation/:id", func(c *gin.Context) {
		var req decisionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := orch.SubmitHumanDecision(c.Request.Context(), c.Param("id"),
			models.ValidationStatus(req.Decision), req.ModifiedText, req.Notes)
		switch {
		case errors.Is(err, humanloop.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, humanloop.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusOK, result)
		}
	})

	router.GET("/validation/:id", func(c *gin.Context) {
		resp, ok := orch.FetchValidationResult(c.Param("id"))
		if !ok {
			c.JSON(http.StatusAccepted, gin.H{"status": "PENDING"})
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	router.GET("/validation/queue", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pending": orch.GetValidationQueue(c.Request.Context())})
	})

	router.GET("/validation/statistics", func(c *gin.Context) {
		c.JSON(http.StatusOK, orch.GetValidationStatistics(c.Request.Context()))
	})

	router.GET("/health", func(c *gin.Context) {
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		dbHealth, err := database.Health(reqCtx, dbClient.DB())
		components := orch.Health()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "unhealthy",
				"database":   dbHealth,
				"components": components,
				"error":      err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"database":   dbHealth,
			"components": components,
		})
	})

	slog.Info("routes registered")
}
