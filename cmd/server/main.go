package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/fieldops/riskmeter/internal/cache"
	"github.com/fieldops/riskmeter/internal/errors"
	"github.com/fieldops/riskmeter/internal/monitoring"
	"github.com/fieldops/riskmeter/internal/ratelimit"
	"github.com/fieldops/riskmeter/internal/reports"
	"github.com/fieldops/riskmeter/internal/scoring"
	"github.com/fieldops/riskmeter/internal/security"
	"github.com/fieldops/riskmeter/internal/session"
	"github.com/fieldops/riskmeter/internal/store"
	"github.com/fieldops/riskmeter/internal/types"
)

func main() {
	// Structured logging setup
	appLogger := monitoring.NewLogger()
	slog.SetDefault(appLogger.Logger)

	// Configuration from environment with defaults
	dataDir := getEnvOrDefault("DATA_DIR", "./data")
	port := getEnvOrDefault("PORT", "8080")
	jwtSecret := getEnvOrDefault("JWT_SECRET", "dev-only-secret-change-in-production")
	redisAddr := os.Getenv("REDIS_ADDR")
	redisPassword := os.Getenv("REDIS_PASSWORD")
	slackWebhookURL := os.Getenv("SLACK_WEBHOOK_URL")
	snapshotInterval := getDurationOrDefault("SNAPSHOT_INTERVAL", 6*time.Hour)
	snapshotWindow := getDurationOrDefault("SNAPSHOT_WINDOW", 30*24*time.Hour)
	cacheTTL := getDurationOrDefault("CACHE_TTL", 15*time.Minute)
	sessionTTL := getDurationOrDefault("SESSION_TTL", 8*time.Hour)

	// Database, repository, scorer
	db, err := store.NewDB(dataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer errors.SafeClose(db, "database")

	repo := store.NewRepository(db)
	scorer := scoring.NewScorer(repo)

	// Monitoring and alerting
	appMetrics := monitoring.NewMetrics()
	alertManager := monitoring.NewAlertManager(appMetrics)
	if slackWebhookURL != "" {
		alertManager.AddNotifier(monitoring.NewSlackNotifier(slackWebhookURL))
	}

	// Caches and sessions. The report cache and the session store share the
	// cache implementation but not the instance.
	reportCache := cache.New(cacheTTL)
	sessionCache := cache.New(sessionTTL)
	sessions := session.NewStore(sessionCache, jwtSecret, sessionTTL)

	// Distributed rate limiting (optional Redis, in-memory fallback)
	redisClient, err := ratelimit.NewRedisClient(redisAddr, redisPassword, 0)
	if err != nil {
		slog.Warn("Redis unavailable, continuing with in-memory rate limiting", "error", err)
	}
	defer errors.SafeClose(redisClient, "redis")
	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.DefaultConfig(), appMetrics)

	// Snapshot scheduler
	scheduler := reports.NewScheduler(repo, scorer, alertManager, appMetrics, appLogger,
		snapshotInterval, snapshotWindow)
	schedCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go scheduler.Start(schedCtx)

	r := gin.New()

	r.Use(monitoring.MonitoringMiddleware(appMetrics, appLogger))
	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())

	securityConfig := security.DefaultSecurityConfig()
	securityMiddleware := security.NewSecurityMiddleware(securityConfig, sessions, appMetrics)
	r.Use(securityMiddleware.SecurityHeaders)
	r.Use(securityMiddleware.RequestTimeout)
	r.Use(securityMiddleware.ValidateContentType)
	r.Use(securityMiddleware.RateLimitByIP)

	r.Use(cors.New(cors.Config{
		AllowOrigins:     securityConfig.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(reportCache.ReportMiddleware(appMetrics))

	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		httpStatus := http.StatusOK

		if err := db.Ping(); err != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}

		redisStatus := "disabled"
		if redisClient.IsEnabled() {
			redisStatus = "ok"
			if err := redisClient.HealthCheck(c.Request.Context()); err != nil {
				redisStatus = "unreachable"
			}
		}

		c.JSON(httpStatus, gin.H{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   "1.0.0",
			"redis":     redisStatus,
		})
	})

	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, appMetrics.GetStats())
	})

	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"reports":  reportCache.Stats(),
			"sessions": sessionCache.Stats(),
		})
	})

	r.GET("/pools/database", func(c *gin.Context) {
		c.JSON(http.StatusOK, db.GetPoolStats())
	})

	r.GET("/alerts", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"alerts":    alertManager.GetActiveAlerts(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// On-demand risk report. ?store=true also persists a snapshot and feeds
	// the alert manager; cached responses never do either.
	r.POST("/reports/risk", ratelimit.ReportLimitMiddleware(limiter, appMetrics), func(c *gin.Context) {
		start := time.Now()

		var req types.RiskReportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errors.NewValidationError("invalid request body", err.Error()))
			return
		}

		w, appErr := parseWindow(req.EntityType, req.EntityID, req.PeriodStart, req.PeriodEnd)
		if appErr != nil {
			c.Error(appErr)
			return
		}

		result, err := scorer.Score(c.Request.Context(), w)
		if err != nil {
			c.Error(errors.NewStorageError("failed to compute risk report", err))
			return
		}
		appMetrics.IncrementReportRun()

		if c.Query("store") == "true" {
			if _, err := repo.SaveSnapshot(c.Request.Context(), result); err != nil {
				c.Error(errors.NewStorageError("failed to store snapshot", err))
				return
			}
			appMetrics.IncrementSnapshotWrite()
			alertManager.ProcessScore(c.Request.Context(), result)
		}

		appLogger.ReportLogger(string(w.EntityType), w.EntityID, result.Score,
			len(result.FlaggedMetrics), time.Since(start), false)

		c.JSON(http.StatusOK, result)
	})

	// Ratio set only, without composing a score.
	r.GET("/entities/:type/:id/ratios", func(c *gin.Context) {
		w, appErr := parseWindow(c.Param("type"), c.Param("id"),
			c.Query("period_start"), c.Query("period_end"))
		if appErr != nil {
			c.Error(appErr)
			return
		}

		result, err := scorer.Score(c.Request.Context(), w)
		if err != nil {
			c.Error(errors.NewStorageError("failed to compute ratios", err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"window": w,
			"ratios": result.Ratios,
		})
	})

	r.GET("/snapshots/:type/:id", func(c *gin.Context) {
		entityType := scoring.EntityType(c.Param("type"))
		if !entityType.Valid() {
			c.Error(errors.NewValidationError("entity type must be agent or company"))
			return
		}

		limit := 20
		if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 100 {
			limit = l
		}

		snapshots, err := repo.ListSnapshots(c.Request.Context(), entityType, c.Param("id"), limit)
		if err != nil {
			c.Error(errors.NewStorageError("failed to list snapshots", err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
	})

	r.GET("/snapshots/:type/:id/latest", func(c *gin.Context) {
		entityType := scoring.EntityType(c.Param("type"))
		if !entityType.Valid() {
			c.Error(errors.NewValidationError("entity type must be agent or company"))
			return
		}

		snapshot, err := repo.LatestSnapshot(c.Request.Context(), entityType, c.Param("id"))
		if err != nil {
			c.Error(errors.NewStorageError("failed to load snapshot", err))
			return
		}
		if snapshot == nil {
			c.Error(errors.NewNotFoundError("no snapshot stored for entity"))
			return
		}

		c.JSON(http.StatusOK, snapshot)
	})

	// Sessions. Creation is open (upstream identity is out of scope here);
	// impersonation requires an elevated session.
	r.POST("/sessions", func(c *gin.Context) {
		var req struct {
			UserID string `json:"user_id" binding:"required"`
			Role   string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errors.NewValidationError("invalid request body", err.Error()))
			return
		}
		if !validRole(req.Role) {
			c.Error(errors.NewValidationError("unknown role: " + req.Role))
			return
		}

		sess, err := sessions.Create(req.UserID, req.Role)
		if err != nil {
			c.Error(errors.NewInternalError("failed to create session", err))
			return
		}

		token, err := sessions.MintToken(sess)
		if err != nil {
			c.Error(errors.NewInternalError("failed to mint session token", err))
			return
		}

		c.JSON(http.StatusCreated, gin.H{"session": sess, "token": token})
	})

	r.POST("/sessions/impersonate",
		securityMiddleware.RequireRole(session.RoleAdmin, session.RoleDispatcher),
		func(c *gin.Context) {
			var req struct {
				Role       string `json:"role" binding:"required"`
				TTLSeconds int    `json:"ttl_seconds,omitempty"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.Error(errors.NewValidationError("invalid request body", err.Error()))
				return
			}
			if !validRole(req.Role) {
				c.Error(errors.NewValidationError("unknown role: " + req.Role))
				return
			}

			parent := c.MustGet("session").(*session.Session)
			sess, err := sessions.Impersonate(parent, req.Role, time.Duration(req.TTLSeconds)*time.Second)
			if err != nil {
				c.Error(errors.NewAuthError(err.Error()))
				return
			}

			token, err := sessions.MintToken(sess)
			if err != nil {
				c.Error(errors.NewInternalError("failed to mint session token", err))
				return
			}

			c.JSON(http.StatusCreated, gin.H{"session": sess, "token": token})
		})

	r.DELETE("/sessions/:id", securityMiddleware.RequireRole(), func(c *gin.Context) {
		sessions.Revoke(c.Param("id"))
		c.JSON(http.StatusOK, gin.H{"message": "session revoked"})
	})

	// Ingest endpoints feed the operational tables the scorer reads.
	ingest := r.Group("/ingest",
		securityMiddleware.RequireRole(session.RoleAdmin, session.RoleDispatcher),
		ratelimit.IngestLimitMiddleware(limiter, appMetrics))

	ingest.POST("/work-orders", func(c *gin.Context) {
		var req struct {
			CompanyID      string     `json:"company_id" binding:"required"`
			AgentID        string     `json:"agent_id" binding:"required"`
			Status         string     `json:"status" binding:"required"`
			ScheduledStart *time.Time `json:"scheduled_start,omitempty"`
			ScheduledEnd   *time.Time `json:"scheduled_end,omitempty"`
			ActualStart    *time.Time `json:"actual_start,omitempty"`
			ActualEnd      *time.Time `json:"actual_end,omitempty"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errors.NewValidationError("invalid request body", err.Error()))
			return
		}

		order := store.NewWorkOrder(req.CompanyID, req.AgentID, req.Status,
			req.ScheduledStart, req.ScheduledEnd, req.ActualStart, req.ActualEnd)
		if err := repo.InsertWorkOrder(c.Request.Context(), order); err != nil {
			c.Error(errors.NewStorageError("failed to store work order", err))
			return
		}

		c.JSON(http.StatusCreated, order)
	})

	ingest.POST("/feedback", func(c *gin.Context) {
		var req struct {
			WorkOrderID    string `json:"work_order_id" binding:"required"`
			CompanyID      string `json:"company_id" binding:"required"`
			AgentID        string `json:"agent_id" binding:"required"`
			Stars          int    `json:"stars" binding:"required,min=1,max=5"`
			WouldHireAgain bool   `json:"would_hire_again"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errors.NewValidationError("invalid request body", err.Error()))
			return
		}

		entry := store.NewFeedbackEntry(req.WorkOrderID, req.CompanyID, req.AgentID,
			req.Stars, req.WouldHireAgain)
		if err := repo.InsertFeedback(c.Request.Context(), entry); err != nil {
			c.Error(errors.NewStorageError("failed to store feedback", err))
			return
		}

		c.JSON(http.StatusCreated, entry)
	})

	ingest.POST("/issues", func(c *gin.Context) {
		var req struct {
			WorkOrderID string     `json:"work_order_id" binding:"required"`
			CompanyID   string     `json:"company_id" binding:"required"`
			AgentID     string     `json:"agent_id" binding:"required"`
			Status      string     `json:"status" binding:"required"`
			ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errors.NewValidationError("invalid request body", err.Error()))
			return
		}
		if req.Status != types.IssueOpen && req.Status != types.IssueResolved {
			c.Error(errors.NewValidationError("issue status must be open or resolved"))
			return
		}

		issue := store.NewIssue(req.WorkOrderID, req.CompanyID, req.AgentID, req.Status, req.ResolvedAt)
		if err := repo.InsertIssue(c.Request.Context(), issue); err != nil {
			c.Error(errors.NewStorageError("failed to store issue", err))
			return
		}

		c.JSON(http.StatusCreated, issue)
	})

	ingest.POST("/audit-entries", func(c *gin.Context) {
		var req struct {
			CompanyID string `json:"company_id" binding:"required"`
			AgentID   string `json:"agent_id" binding:"required"`
			Action    string `json:"action" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errors.NewValidationError("invalid request body", err.Error()))
			return
		}

		entry := store.NewAuditEntry(req.CompanyID, req.AgentID, req.Action)
		if err := repo.InsertAuditEntry(c.Request.Context(), entry); err != nil {
			c.Error(errors.NewStorageError("failed to store audit entry", err))
			return
		}

		c.JSON(http.StatusCreated, entry)
	})

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	stopScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

// parseWindow validates an entity reference and optional ISO period bounds.
func parseWindow(entityType, entityID, periodStart, periodEnd string) (scoring.MetricWindow, *errors.AppError) {
	et := scoring.EntityType(entityType)
	if !et.Valid() {
		return scoring.MetricWindow{}, errors.NewValidationError("entity type must be agent or company")
	}
	if entityID == "" {
		return scoring.MetricWindow{}, errors.NewValidationError("entity id is required")
	}

	w := scoring.MetricWindow{EntityType: et, EntityID: entityID}

	if periodStart != "" {
		t, err := parseISOTime(periodStart)
		if err != nil {
			return scoring.MetricWindow{}, errors.NewValidationError("invalid period_start: " + periodStart)
		}
		w.PeriodStart = &t
	}
	if periodEnd != "" {
		t, err := parseISOTime(periodEnd)
		if err != nil {
			return scoring.MetricWindow{}, errors.NewValidationError("invalid period_end: " + periodEnd)
		}
		w.PeriodEnd = &t
	}

	if w.PeriodStart != nil && w.PeriodEnd != nil && w.PeriodEnd.Before(*w.PeriodStart) {
		return scoring.MetricWindow{}, errors.NewValidationError("period_end is before period_start")
	}

	return w, nil
}

// parseISOTime accepts RFC3339 timestamps or bare dates.
func parseISOTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func validRole(role string) bool {
	switch role {
	case session.RoleAdmin, session.RoleDispatcher, session.RoleAgent, session.RoleClient:
		return true
	}
	return false
}

// Helper function for environment variables with defaults
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("Invalid duration in environment, using default", "key", key, "value", value)
	}
	return defaultValue
}
