package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/sales_recon/config"
	"github.com/mmdatafocus/sales_recon/middlewares"
	"github.com/mmdatafocus/sales_recon/models"
	"github.com/mmdatafocus/sales_recon/sheets"
	"github.com/mmdatafocus/sales_recon/utils"
	"github.com/mmdatafocus/sales_recon/workflow"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// runBody is the JSON body shared by the trigger endpoints.
// Workbook may be empty when the service runs against MySQL.
type runBody struct {
	Workbook string `json:"workbook"`
	Out      string `json:"out"`
	DryRun   bool   `json:"dry_run"`
	Transfer bool   `json:"transfer"`
}

// storeSession is one opened backing store plus how to persist and release it.
type storeSession struct {
	stores workflow.Stores
	save   func() error
	close  func()
}

type storeOpener func(body runBody, cfg *config.Config) (*storeSession, error)

var (
	errWorkbookRequired    = errors.New("workbook is required")
	errInvalidWorkbookPath = errors.New("workbook path must be relative to the workbook directory")
)

// resolveWorkbookPath places a request-supplied path under RECON_WORKBOOK_DIR
// (default: the working directory). Absolute paths and paths leaving it are refused.
func resolveWorkbookPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if filepath.IsAbs(p) || filepath.VolumeName(p) != "" {
		return "", fmt.Errorf("%w: %s", errInvalidWorkbookPath, p)
	}
	base := strings.TrimSpace(os.Getenv("RECON_WORKBOOK_DIR"))
	if base == "" {
		base = "."
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	joined := filepath.Join(base, p)
	rel, err := filepath.Rel(base, joined)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errInvalidWorkbookPath, p)
	}
	return joined, nil
}

func useDB() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("USE_DB")), "true")
}

// openStores opens the workbook named in the body, or the MySQL tables when
// USE_DB=true and no workbook is given.
func openStores(body runBody, cfg *config.Config) (*storeSession, error) {
	if strings.TrimSpace(body.Workbook) == "" {
		if !useDB() {
			return nil, errWorkbookRequired
		}
		store := models.NewGormStore(config.GetDB())
		return &storeSession{
			stores: workflow.Stores{Ledger: store, Transactions: store},
			save:   func() error { return nil },
			close:  func() {},
		}, nil
	}
	path, err := resolveWorkbookPath(body.Workbook)
	if err != nil {
		return nil, err
	}
	out := ""
	if strings.TrimSpace(body.Out) != "" {
		if out, err = resolveWorkbookPath(body.Out); err != nil {
			return nil, err
		}
	}
	wb, err := sheets.Open(path, cfg)
	if err != nil {
		return nil, err
	}
	save := wb.Save
	if out != "" {
		save = func() error { return wb.SaveAs(out) }
	}
	return &storeSession{
		stores: workflow.Stores{Ledger: wb, Transactions: wb, Fba: wb},
		save:   save,
		close:  func() { _ = wb.Close() },
	}, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, config.ErrUnknownChannel):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrRunLocked):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrRunLockUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, errWorkbookRequired),
		errors.Is(err, errInvalidWorkbookPath),
		errors.Is(err, workflow.ErrMissingStore),
		errors.Is(err, workflow.ErrMissingFbaStore):
		return http.StatusBadRequest
	case errors.Is(err, sheets.ErrSheetNotFound),
		errors.Is(err, sheets.ErrHeaderNotFound),
		errors.Is(err, os.ErrNotExist):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func abortWith(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

// bindAndOpen decodes the body and opens its store. An empty body is allowed.
func bindAndOpen(c *gin.Context, cfg *config.Config, open storeOpener) (runBody, *storeSession, bool) {
	var body runBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return body, nil, false
		}
	}
	session, err := open(body, cfg)
	if err != nil {
		abortWith(c, err)
		return body, nil, false
	}
	return body, session, true
}

func runHandler(logger *logrus.Logger, cfg *config.Config, open storeOpener) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, session, ok := bindAndOpen(c, cfg, open)
		if !ok {
			return
		}
		defer session.close()

		ctx := c.Request.Context()
		cid, _ := utils.GetCorrelationIdFromContext(ctx)
		summary, outcomes, err := workflow.ProcessReconciliationWorkflow(ctx, logger, cfg, session.stores, workflow.RunRequest{
			Channel:       c.Param("channel"),
			DryRun:        body.DryRun,
			Transfer:      body.Transfer,
			CorrelationId: cid,
		})
		if err != nil {
			abortWith(c, err)
			return
		}
		if !body.DryRun {
			if err := session.save(); err != nil {
				config.LogError(logger, "server.go", "runHandler", "save", body.Workbook, err)
				abortWith(c, err)
				return
			}
		}
		resp := gin.H{"summary": summary}
		if body.DryRun {
			resp["outcomes"] = outcomes
		}
		c.JSON(http.StatusOK, resp)
	}
}

func transferHandler(logger *logrus.Logger, cfg *config.Config, open storeOpener) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch, err := cfg.Channel(c.Param("channel"))
		if err != nil {
			abortWith(c, err)
			return
		}
		body, session, ok := bindAndOpen(c, cfg, open)
		if !ok {
			return
		}
		defer session.close()

		ctx := utils.SetChannelInContext(c.Request.Context(), ch.Name)
		release, err := workflow.ObtainRunLock(ctx, logger, ch.Name, config.RequireRunLock())
		if err != nil {
			abortWith(c, err)
			return
		}
		defer release()

		summary, err := workflow.TransferFinancials(ctx, logger, ch, session.stores, time.Now().In(cfg.Location()))
		if err != nil {
			abortWith(c, err)
			return
		}
		if err := session.save(); err != nil {
			config.LogError(logger, "server.go", "transferHandler", "save", body.Workbook, err)
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"summary": summary})
	}
}

func fbaHandler(logger *logrus.Logger, cfg *config.Config, open storeOpener) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, session, ok := bindAndOpen(c, cfg, open)
		if !ok {
			return
		}
		defer session.close()

		summary, err := workflow.ProcessFbaInventoryAdjustment(c.Request.Context(), logger, session.stores)
		if err != nil {
			abortWith(c, err)
			return
		}
		if err := session.save(); err != nil {
			config.LogError(logger, "server.go", "fbaHandler", "save", body.Workbook, err)
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"summary": summary})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func corsConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Deny all cross-origin requests if not configured.
			corsConfig.AllowOriginFunc = func(string) bool { return false }
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("OPTIONS")
	corsConfig.AddAllowHeaders("Authorization", middlewares.CorrelationHeader)
	return corsConfig
}

func newRouter(logger *logrus.Logger, cfg *config.Config, open storeOpener, ready func() bool) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(middlewares.ReadinessMiddleware(ready))
	r.Use(cors.New(corsConfig()))
	r.Use(gin.Recovery())
	r.Use(middlewares.ErrorLogger(logger))
	r.NoRoute(customNotFoundHandler)

	r.GET(middlewares.HealthPath, func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	api := r.Group("/", middlewares.AuthMiddleware(os.Getenv("RECON_API_TOKEN")))
	api.POST("/runs/:channel", runHandler(logger, cfg, open))
	api.POST("/transfers/:channel", transferHandler(logger, cfg, open))
	api.POST("/adjustments/fba", fbaHandler(logger, cfg, open))
	return r
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	cfg, err := config.LoadConfig(os.Getenv("RECON_CONFIG"))
	if err != nil {
		log.Fatalf("load channel config: %v", err)
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Until MySQL is connected, app endpoints return 503.
	ready := func() bool {
		return !useDB() || config.GetDB() != nil
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		gin.SetMode(gin.ReleaseMode)
	}
	r := newRouter(logger, cfg, openStores, ready)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	if useDB() {
		config.ConnectDatabaseWithRetry()
		if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
			models.MigrateTable()
		} else {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
		}
	}
	if os.Getenv("REDIS_ADDRESS") != "" {
		config.ConnectRedisWithRetry()
	}
	if config.PublishRunSummary() {
		if topic := os.Getenv("PUBSUB_TOPIC"); topic != "" {
			client, err := config.GetClient(sigCtx)
			if err == nil {
				_, err = config.CreateTopicIfNotExists(sigCtx, client, topic)
			}
			if err != nil {
				logger.WithFields(logrus.Fields{"field": "pubsub"}).Warn("run summaries may not publish: " + err.Error())
			}
		}
	}

	logger.WithFields(logrus.Fields{
		"info":     "Connection Established",
		"channels": cfg.ChannelNames(),
	}).Info("reconciliation service listening on :", port)

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
