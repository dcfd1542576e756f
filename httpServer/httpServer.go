package httpServer

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"gopscope/internal/auth"
	"gopscope/internal/gop"
	"gopscope/internal/mediamanager"
	"gopscope/internal/metrics"
	"gopscope/internal/probe"
	"gopscope/internal/storage"
	"gopscope/pkg/models"
)

// Analyzer runs a GOP analysis on a media file reachable at input
type Analyzer interface {
	Analyze(ctx context.Context, mediaID, input string, streamIndex int) (*models.GOPAnalysis, error)
}

// Options holds the server dependencies
type Options struct {
	Media         *mediamanager.Manager
	Storage       storage.Storage
	Analyzer      Analyzer
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer // Source for /metrics; nil uses the default registry
	Auth          *auth.Manager       // Upload tokens; nil accepts anonymous uploads
	MaxUploadSize int64
}

// Server wraps the HTTP server with dependencies
type Server struct {
	router        *gin.Engine
	media         *mediamanager.Manager
	storage       storage.Storage
	analyzer      Analyzer
	metrics       *metrics.Metrics
	gatherer      prometheus.Gatherer
	auth          *auth.Manager
	maxUploadSize int64
}

// New creates a new HTTP server
func New(opts Options) *Server {
	s := &Server{
		media:         opts.Media,
		storage:       opts.Storage,
		analyzer:      opts.Analyzer,
		metrics:       opts.Metrics,
		gatherer:      opts.Gatherer,
		auth:          opts.Auth,
		maxUploadSize: opts.MaxUploadSize,
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), s.metricsMiddleware())

	api := router.Group("/api")
	{
		api.GET("/ping", s.handlePing)
		api.POST("/v1/analyze", s.handleAnalyze)
		api.POST("/v1/uploads/token", s.handleUploadToken)
		api.POST("/v1/media", s.handleUpload)
		api.GET("/v1/media", s.handleListMedia)
		api.GET("/v1/media/:id", s.handleGetMedia)
		api.DELETE("/v1/media/:id", s.handleDeleteMedia)
		api.GET("/v1/media/:id/file", s.handleMediaFile)
		api.POST("/v1/media/:id/gop", s.handleProbeAnalyze)
		api.GET("/v1/media/:id/gop", s.handleLastAnalysis)
		api.GET("/v1/media/:id/keyframes", s.handleKeyframes)
		api.GET("/v1/media/:id/events", s.handleEvents)
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	s.router = router
}

// Handler returns the router for use with a custom http.Server or tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP on addr until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}

// Handler implementations

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
		"time":    time.Now().Unix(),
	})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	start := time.Now()

	var req models.AnalyzeRequest
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		s.metrics.RecordAnalysisFailure("frames", "invalid_input", time.Since(start).Seconds())
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, warnings, err := gop.AnalyzePayload(req.MediaID, req.StreamIndex, req.Frames, req.Dimensions())
	if err != nil {
		status, reason := analysisErrorStatus(err)
		s.metrics.RecordAnalysisFailure("frames", reason, time.Since(start).Seconds())
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	s.metrics.RecordAnalysis("frames", result, time.Since(start).Seconds())

	if warnings != nil {
		c.Header("X-Defaulted-Fields", strconv.Itoa(len(warnings.Errors)))
	}

	// Results for a registered media also reach its subscribers
	if req.MediaID != "" {
		if _, ok := s.media.Get(req.MediaID); ok {
			if err := s.media.Publish(result); err != nil {
				log.WithError(err).WithField("media", req.MediaID).Warn("failed to publish analysis")
			}
		}
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleUploadToken(c *gin.Context) {
	if s.auth == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "upload tokens are disabled"})
		return
	}

	var expiresIn time.Duration
	if raw := c.Query("expires_in"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expires_in must be a positive number of seconds"})
			return
		}
		expiresIn = time.Duration(secs) * time.Second
	}

	token, err := s.auth.Issue(expiresIn, c.ClientIP())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, models.UploadTokenResponse{
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt.Format(time.RFC3339),
	})
}

func (s *Server) handleUpload(c *gin.Context) {
	token, ok := s.redeemUploadToken(c)
	if !ok {
		return
	}
	if !s.storeUpload(c) && token != "" {
		s.auth.Release(token)
	}
}

// redeemUploadToken spends the request's upload token when tokens are enabled
func (s *Server) redeemUploadToken(c *gin.Context) (string, bool) {
	if s.auth == nil {
		return "", true
	}

	token := c.GetHeader("X-Upload-Token")
	if token == "" {
		token = c.Query("token")
	}
	if err := s.auth.Redeem(token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return "", false
	}
	return token, true
}

// storeUpload writes the multipart file to storage and registers it
func (s *Server) storeUpload(c *gin.Context) bool {
	if c.Request.ContentLength > s.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds size limit"})
		return false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadSize)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds size limit"})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing multipart field \"file\""})
		return false
	}

	src, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return false
	}
	defer src.Close()

	id := mediamanager.NewID()
	path := id + strings.ToLower(filepath.Ext(fh.Filename))

	size, err := s.storage.WriteFrom(path, src)
	if err != nil {
		log.WithError(err).WithField("media", id).Error("failed to store upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return false
	}

	media, err := s.media.Register(id, filepath.Base(fh.Filename), path, size)
	if err != nil {
		_ = s.storage.Delete(path)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return false
	}
	s.metrics.RecordUpload(size)

	log.WithFields(log.Fields{
		"media":    id,
		"filename": media.Filename,
		"size":     size,
	}).Info("media uploaded")

	c.JSON(http.StatusCreated, mediaToInfo(media))
	return true
}

func (s *Server) handleListMedia(c *gin.Context) {
	list := s.media.List()

	infos := make([]models.MediaInfo, len(list))
	for i, media := range list {
		infos[i] = mediaToInfo(media)
	}

	c.JSON(http.StatusOK, models.MediaListResponse{
		Media: infos,
		Total: len(infos),
	})
}

func (s *Server) handleGetMedia(c *gin.Context) {
	media, ok := s.lookupMedia(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, mediaToInfo(media))
}

func (s *Server) handleDeleteMedia(c *gin.Context) {
	id := c.Param("id")

	media, err := s.media.Delete(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err := s.storage.Delete(media.StoragePath); err != nil {
		log.WithError(err).WithField("media", id).Warn("failed to delete stored file")
	}
	s.metrics.RecordMediaDeleted(media.Size)

	c.JSON(http.StatusOK, gin.H{
		"message": "media deleted",
		"id":      id,
	})
}

// requireStoredFile answers 404 when the media is registered but its file is
// gone from storage
func (s *Server) requireStoredFile(c *gin.Context, media *models.Media) bool {
	exists, err := s.storage.Exists(media.StoragePath)
	if err != nil {
		log.WithError(err).WithField("media", media.ID).Error("failed to check stored file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stored file not available"})
		return false
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "stored file is missing"})
		return false
	}
	return true
}

func (s *Server) handleMediaFile(c *gin.Context) {
	media, ok := s.lookupMedia(c)
	if !ok || !s.requireStoredFile(c, media) {
		return
	}

	rs, err := s.storage.ReadSeeker(media.StoragePath)
	if err != nil {
		log.WithError(err).WithField("media", media.ID).Error("failed to open stored file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stored file not available"})
		return
	}
	if closer, ok := rs.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	c.Header("Content-Type", storage.ContentType(media.StoragePath))
	c.Header("Cache-Control", "private, max-age=3600")
	http.ServeContent(c.Writer, c.Request, media.Filename, media.UploadedAt, rs)
}

func (s *Server) handleProbeAnalyze(c *gin.Context) {
	media, ok := s.lookupMedia(c)
	if !ok {
		return
	}

	streamIndex := -1
	if raw := c.Query("stream"); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil || idx < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stream must be a non-negative integer"})
			return
		}
		streamIndex = idx
	}

	if !s.requireStoredFile(c, media) {
		return
	}
	input, err := s.storage.Locate(media.StoragePath)
	if err != nil {
		log.WithError(err).WithField("media", media.ID).Error("failed to locate stored file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stored file not available"})
		return
	}

	start := time.Now()
	media.SetState(models.MediaStateProbing)
	result, err := s.analyzer.Analyze(c.Request.Context(), media.ID, input, streamIndex)
	if err != nil {
		media.RecordFailure(err)
		status, reason := analysisErrorStatus(err)
		s.metrics.RecordAnalysisFailure("probe", reason, time.Since(start).Seconds())
		log.WithError(err).WithFields(log.Fields{
			"media":  media.ID,
			"stream": streamIndex,
		}).Warn("analysis failed")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	s.metrics.RecordAnalysis("probe", result, time.Since(start).Seconds())

	if err := s.media.Publish(result); err != nil {
		// Deleted while the probe was running
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	log.WithFields(log.Fields{
		"media":       media.ID,
		"stream":      result.StreamIndex,
		"frames":      result.TotalFrames,
		"gops":        result.Stats.TotalGOPs,
		"seekability": result.Stats.SeekabilityScore,
	}).Info("analysis complete")

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleLastAnalysis(c *gin.Context) {
	media, ok := s.lookupMedia(c)
	if !ok {
		return
	}
	result := media.LastAnalysis()
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "media has not been analyzed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleKeyframes(c *gin.Context) {
	media, ok := s.lookupMedia(c)
	if !ok {
		return
	}
	result := media.LastAnalysis()
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "media has not been analyzed"})
		return
	}
	c.JSON(http.StatusOK, models.KeyframesResponse{
		MediaID:     media.ID,
		StreamIndex: result.StreamIndex,
		Keyframes:   result.Keyframes,
	})
}

// Helper functions

func (s *Server) lookupMedia(c *gin.Context) (*models.Media, bool) {
	media, ok := s.media.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
		return nil, false
	}
	return media, true
}

// analysisErrorStatus maps an analysis error to an HTTP status and a
// metrics reason label
func analysisErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, gop.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, gop.ErrNoFrames):
		return http.StatusUnprocessableEntity, "no_frames"
	case errors.Is(err, probe.ErrNoVideoStream):
		return http.StatusUnprocessableEntity, "no_video"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return 499, "canceled"
	default:
		return http.StatusUnprocessableEntity, "probe_failed"
	}
}

func mediaToInfo(media *models.Media) models.MediaInfo {
	state, stats, lastErr := media.Snapshot()

	info := models.MediaInfo{
		ID:              media.ID,
		Filename:        media.Filename,
		Size:            media.Size,
		State:           string(state),
		UploadedAt:      media.UploadedAt.Format(time.RFC3339),
		LastError:       lastErr,
		Analyses:        stats.Analyses,
		LastGOPCount:    stats.LastGOPCount,
		LastSeekability: stats.LastSeekability,
	}

	if !stats.LastAnalyzedAt.IsZero() {
		info.LastAnalyzedAt = stats.LastAnalyzedAt.Format(time.RFC3339)
	}

	return info
}
