package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stock-alert-server/internal/pricecache"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionCounter reports the number of connected clients.
type SessionCounter interface {
	ActiveSessions() int
}

// StatusAPI is a read-only HTTP view of the running server.
type StatusAPI struct {
	server    *http.Server
	sessions  SessionCounter
	prices    *pricecache.Cache
	startTime time.Time
	logger    *zap.Logger
}

// StatusAddress binds the status port on the same host as the protocol
// listener's serverAddress.
func StatusAddress(serverAddress string, port int) (string, error) {
	host, _, err := net.SplitHostPort(serverAddress)
	if err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", serverAddress, err)
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// NewStatusAPI creates the status API listening on addr.
func NewStatusAPI(addr string, sessions SessionCounter, prices *pricecache.Cache, logger *zap.Logger) *StatusAPI {
	api := &StatusAPI{
		sessions:  sessions,
		prices:    prices,
		startTime: time.Now(),
		logger:    logger.Named("status-api"),
	}
	api.server = &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return api
}

// Handler returns the routed gin engine.
func (a *StatusAPI) Handler() http.Handler {
	router := gin.New()
	router.Use(requestLogger(a.logger), gin.Recovery())

	router.GET("/health", a.healthHandler)
	router.GET("/status", a.statusHandler)
	router.GET("/prices/:symbol", a.priceHandler)
	return router
}

// Start runs the HTTP server in a new goroutine.
func (a *StatusAPI) Start() {
	a.logger.Info("Starting status API", zap.String("address", a.server.Addr))
	go func() {
		if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Status API failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (a *StatusAPI) Stop(ctx context.Context) error {
	a.logger.Info("Stopping status API...")
	return a.server.Shutdown(ctx)
}

func (a *StatusAPI) healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (a *StatusAPI) statusHandler(c *gin.Context) {
	snap := a.prices.Snapshot()

	var lastRefresh string
	if !snap.UpdatedAt().IsZero() {
		lastRefresh = snap.UpdatedAt().Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, gin.H{
		"start_time":      a.startTime.Format(time.RFC3339),
		"uptime":          time.Since(a.startTime).String(),
		"active_sessions": a.sessions.ActiveSessions(),
		"cached_symbols":  snap.Len(),
		"last_refresh":    lastRefresh,
	})
}

func (a *StatusAPI) priceHandler(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	price, ok := a.prices.Get(symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrSymbolUnavailable.Error(), "symbol": symbol})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "price": price})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
