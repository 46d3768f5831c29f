package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fathomline/sounder/log"
	"github.com/fathomline/sounder/types"
)

// NewRouter builds the observability routes: Prometheus metrics plus the
// health and readiness probes.
func NewRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	started := time.Now()

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(started).String(),
			"service": "sounder",
			"version": types.Version,
		})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"service": "sounder",
			"version": types.Version,
		})
	})
	return r
}

// Serve runs the observability endpoint on addr until ctx is done, then
// shuts it down. Returns nil after a clean shutdown.
func Serve(ctx context.Context, addr string, logger *log.Logger) error {
	RegisterMetrics()

	srv := &http.Server{
		Addr:    addr,
		Handler: NewRouter(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("observability shutdown", map[string]any{"error": err.Error()})
		}
	}()

	logger.Info("observability endpoint listening", map[string]any{"addr": addr})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
