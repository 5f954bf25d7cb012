// Package server is the HTTP surface of serve mode: Drive consent, recording
// view logging, attendance reports and metrics
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/curtbushko/zoom-to-moodle/internal/config"
	"github.com/curtbushko/zoom-to-moodle/internal/email"
	"github.com/curtbushko/zoom-to-moodle/internal/logging"
	"github.com/curtbushko/zoom-to-moodle/internal/participants"
)

const (
	stateTTL        = 10 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// Attendance reports and records who attended an occurrence
type Attendance interface {
	Report(ctx context.Context, meetingUUID, filterEmail string) (*participants.Report, error)
	RecordRecordingView(ctx context.Context, meetingUUID string, view participants.View) error
}

// Consent runs the Drive OAuth2 consent flow
type Consent interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// Options configures a Server. Routes whose dependency is nil answer 503.
type Options struct {
	Config     config.ServerConfig
	Attendance Attendance
	Consent    Consent
	Logger     logging.Logger
	// ViewRate limits recording view posts per client IP. Zero means 5/s.
	ViewRate rate.Limit
}

// Server serves the HTTP routes
type Server struct {
	config     config.ServerConfig
	attendance Attendance
	consent    Consent
	logger     logging.Logger
	states     *cache.Cache
	engine     *gin.Engine
}

// recordingViewRequest is posted by the course page when a recording link is opened
type recordingViewRequest struct {
	UUID   string `json:"uuid" binding:"required"`
	UserID int64  `json:"userid" binding:"required"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// New builds the router
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	viewRate := opts.ViewRate
	if viewRate == 0 {
		viewRate = 5
	}

	s := &Server{
		config:     opts.Config,
		attendance: opts.Attendance,
		consent:    opts.Consent,
		logger:     logger,
		states:     cache.New(stateTTL, 2*stateTTL),
	}

	r := gin.New()
	r.Use(recovery(logger), requestContext(), accessLog(logger))

	r.GET("/healthz", s.health)
	r.GET("/oauth2/start", s.startConsent)
	r.GET("/oauth2/callback", s.finishConsent)
	r.GET("/participants", s.participantsReport)

	api := r.Group("/api")
	api.Use(rateLimit(viewRate, 10))
	{
		api.POST("/recording-views", s.recordView)
	}

	if opts.Config.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	s.engine = r
	return s
}

// Handler returns the http.Handler of the router
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on the configured address until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening on %s", s.config.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) startConsent(c *gin.Context) {
	if s.consent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "drive is not configured"})
		return
	}
	state := uuid.NewString()
	s.states.SetDefault(state, struct{}{})
	c.Redirect(http.StatusFound, s.consent.AuthCodeURL(state))
}

func (s *Server) finishConsent(c *gin.Context) {
	if s.consent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "drive is not configured"})
		return
	}

	state := c.Query("state")
	if _, ok := s.states.Get(state); !ok || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown or expired state"})
		return
	}
	s.states.Delete(state)

	if errMsg := c.Query("error"); errMsg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMsg})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}

	if _, err := s.consent.Exchange(c.Request.Context(), code); err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "Drive authorization failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "authorization failed"})
		return
	}
	s.logger.LogUserAction("drive_authorized", "", nil)
	c.String(http.StatusOK, "Google Drive authorization stored. You can close this window.")
}

// participantsReport answers GET /participants?meetinguuid=&viewer=. Viewers
// outside the staff domains only see their own rows.
func (s *Server) participantsReport(c *gin.Context) {
	if s.attendance == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attendance tracking is not configured"})
		return
	}

	meetingUUID := c.Query("meetinguuid")
	viewer := strings.TrimSpace(c.Query("viewer"))
	if meetingUUID == "" || viewer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "meetinguuid and viewer are required"})
		return
	}
	if !email.IsValidEmail(viewer) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid viewer"})
		return
	}

	filter := email.ReportFilter(viewer, false, s.config.StaffEmailDomains)
	report, err := s.attendance.Report(c.Request.Context(), meetingUUID, filter)
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "Participants report of %s failed: %v", meetingUUID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) recordView(c *gin.Context) {
	if s.attendance == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attendance tracking is not configured"})
		return
	}

	var req recordingViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	view := participants.View{UserID: req.UserID, Name: req.Name, Email: req.Email}
	if err := s.attendance.RecordRecordingView(c.Request.Context(), req.UUID, view); err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "Recording view of %s failed: %v", req.UUID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record view"})
		return
	}
	c.Status(http.StatusNoContent)
}
