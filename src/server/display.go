package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"rank-observer/src/analysis"
	"rank-observer/src/export"
	"rank-observer/src/logger"
	"rank-observer/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// DisplayServer
// -----------------------------------------------------------------------------

type DisplayServer struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	NextUpdate func() time.Time              // countdown source, optional
	Sources    func() []models.MSourceConfig // live source list, optional

	engine     *gin.Engine
	httpServer *http.Server

	// WebSocket clients, owned by the hub goroutine
	clients     map[*Client]struct{}
	clientCount atomic.Int64
	broadcast   chan *models.MLatestData
	register    chan *Client
	unregister  chan *Client
	quit        chan struct{}
	hubOnce     sync.Once
	stopOnce    sync.Once

	// Local cache
	latestState *models.MLatestData
	stateMutex  sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewDisplayServer(cfg *models.MConfig, logger *logger.Logger) *DisplayServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &DisplayServer{
		Config:  cfg,
		Logger:  logger,
		engine:  gin.New(),
		clients: make(map[*Client]struct{}),
		// Buffered so a tick never waits on the hub
		broadcast:  make(chan *models.MLatestData, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		httpServer: &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		latestState: &models.MLatestData{
			Type:   "INITIAL",
			Tables: make(map[string]*models.MEnrichedTable),
		},
	}

	s.engine.Use(gin.Recovery())
	if cfg.LogLevel == "DEBUG" {
		s.engine.Use(gin.Logger())
	}

	// CORS for local dashboards
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *DisplayServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.GET("/config", s.getConfig)
	api.GET("/metrics", s.getMetrics)
	api.GET("/ranks/:source", s.getRanks)
	api.GET("/ranks/:source/csv", s.getRanksCSV)
	api.GET("/drift/:source", s.getDrift)

	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Handler exposes the routes with the hub running, for embedding and tests.
func (s *DisplayServer) Handler() http.Handler {
	s.startHub()
	return s.engine
}

// -----------------------------------------------------------------------------

func (s *DisplayServer) startHub() {
	s.hubOnce.Do(func() { go s.handleWebsockets() })
}

// -----------------------------------------------------------------------------

// Start serves until Stop is called.
func (s *DisplayServer) Start() error {
	s.Logger.Info("Starting display server on %s", s.httpServer.Addr)

	s.httpServer.Handler = s.Handler()
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *DisplayServer) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.quit) })
	return s.httpServer.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *DisplayServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	timestamp := s.latestState.Timestamp
	ticks := make(map[string]int, len(s.latestState.Tables))
	for name, t := range s.latestState.Tables {
		ticks[name] = t.Tick
	}
	s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"connections":    s.clientCount.Load(),
		"latest_update":  timestamp,
		"ticks":          ticks,
		"next_update_in": s.secondsToNextUpdate(),
	})
}

// -----------------------------------------------------------------------------

func (s *DisplayServer) getConfig(c *gin.Context) {
	configured := s.Config.DataSource.Sources
	if s.Sources != nil {
		configured = s.Sources()
	}

	sources := make([]gin.H, 0, len(configured))
	for _, src := range configured {
		sources = append(sources, gin.H{"name": src.Name, "index": src.Index})
	}

	c.JSON(http.StatusOK, gin.H{
		"sources":                 sources,
		"update_interval_seconds": s.Config.DataSource.UpdateIntervalSeconds,
		"market_hours_only":       s.Config.DataSource.MarketHoursOnly,
	})
}

// -----------------------------------------------------------------------------

func (s *DisplayServer) getMetrics(c *gin.Context) {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, s.latestState.ProcessingMetrics)
}

// -----------------------------------------------------------------------------

func (s *DisplayServer) getRanks(c *gin.Context) {
	table, ok := s.tableFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, table)
}

// -----------------------------------------------------------------------------

func (s *DisplayServer) getRanksCSV(c *gin.Context) {
	table, ok := s.tableFor(c)
	if !ok {
		return
	}

	stamp := table.FetchedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	name := export.FileName(s.Config.Export.FilePattern, stamp)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)

	if err := export.WriteCSV(c.Writer, table); err != nil {
		s.Logger.Error("CSV download failed: %v", err)
	}
}

// -----------------------------------------------------------------------------

func (s *DisplayServer) getDrift(c *gin.Context) {
	table, ok := s.tableFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"source": table.Source,
		"tick":   table.Tick,
		"drift":  analysis.RankDrift(table),
	})
}

// -----------------------------------------------------------------------------

// tableFor resolves :source and the optional ?symbols=A,B filter.
func (s *DisplayServer) tableFor(c *gin.Context) (*models.MEnrichedTable, bool) {
	source := c.Param("source")

	s.stateMutex.RLock()
	table, ok := s.latestState.Tables[source]
	s.stateMutex.RUnlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no table for source '%s'", source)})
		return nil, false
	}
	return table.FilterSymbols(splitList(c.Query("symbols"))), true
}

// -----------------------------------------------------------------------------

func (s *DisplayServer) secondsToNextUpdate() int64 {
	if s.NextUpdate == nil {
		return 0
	}
	next := s.NextUpdate()
	if next.IsZero() {
		return 0
	}
	remaining := time.Until(next).Seconds()
	if remaining < 0 {
		return 0
	}
	return int64(remaining)
}

// -----------------------------------------------------------------------------

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
