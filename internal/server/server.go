package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/jobtrack/internal/handler"
	"github.com/dukerupert/jobtrack/internal/middleware"
	"github.com/dukerupert/jobtrack/internal/queue"
	"github.com/dukerupert/jobtrack/internal/reminder"
	"github.com/dukerupert/jobtrack/internal/store"
	ws "github.com/dukerupert/jobtrack/internal/websocket"
)

// Test emails allowed per client IP per minute.
const testEmailLimit = 5

type Config struct {
	AdminTokenHash string
	// OriginPatterns lists extra hosts allowed to open the /ws feed.
	OriginPatterns []string
	// TrustProxyHeaders keys the test email limit on forwarding headers
	// instead of the connection address.
	TrustProxyHeaders bool
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	cfg           Config
	reminderH     *handler.ReminderHandler
	notificationH *handler.NotificationHandler
	interviewH    *handler.InterviewHandler
	testLimiter   *middleware.RateLimiter
	logger        *slog.Logger
}

func New(db *sql.DB, hub *ws.Hub, scans handler.ScanRunner, enq handler.Enqueuer, q handler.QueueStatus, cfg Config, logger *slog.Logger) *Server {
	userStore := store.NewUserStore(db)
	prefStore := store.NewPreferenceStore(db)
	interviewStore := store.NewInterviewStore(db)
	deliveryStore := store.NewDeliveryStore(db)

	return &Server{
		db:            db,
		hub:           hub,
		cfg:           cfg,
		reminderH:     handler.NewReminderHandler(scans, enq, q, interviewStore, deliveryStore, logger.With("component", "reminder_handler")),
		notificationH: handler.NewNotificationHandler(userStore, prefStore, enq, hub, logger.With("component", "notification_handler")),
		interviewH:    handler.NewInterviewHandler(userStore, interviewStore, nil, logger.With("component", "interview_handler")),
		testLimiter:   middleware.NewRateLimiter(testEmailLimit, time.Minute),
		logger:        logger,
	}
}

// RateLimiter returns the test email limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.testLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()
	outerMux.HandleFunc("GET /health", s.healthHandler)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	requireToken := middleware.RequireToken(s.cfg.AdminTokenHash)
	outerMux.Handle("/api/", requireToken(protectedMux))
	outerMux.Handle("GET /ws", requireToken(ws.HandleWebSocket(s.hub, s.cfg.OriginPatterns)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.testLimiter, middleware.ClientIP(s.cfg.TrustProxyHeaders))(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Reminder pipeline
	mux.HandleFunc("POST /api/reminders/scan", s.reminderH.Scan)
	mux.HandleFunc("POST /api/interviews/{id}/remind", s.reminderH.Remind)
	mux.HandleFunc("GET /api/interviews/{id}/deliveries", s.reminderH.Deliveries)
	mux.HandleFunc("GET /api/queue", s.reminderH.Queue)

	// Interview views
	mux.HandleFunc("GET /api/users/{id}/interviews/upcoming", s.interviewH.Upcoming)
	mux.HandleFunc("GET /api/users/{id}/interviews/needs-review", s.interviewH.NeedsReview)

	// Notification preferences
	mux.HandleFunc("GET /api/users/{id}/notifications", s.notificationH.Get)
	mux.HandleFunc("PUT /api/users/{id}/notifications", s.notificationH.Update)
	mux.Handle("POST /api/users/{id}/notifications/test", s.rateLimitedHandler(s.notificationH.SendTest))
}

// PublishQueueEvent forwards a queue lifecycle event to the live feed.
func (s *Server) PublishQueueEvent(ev queue.Event) {
	s.hub.Broadcast(ws.Message{Type: ev.Type, Key: ev.Key, At: ev.At, Data: ev})
}

// PublishResult forwards a final dispatch result to the live feed.
func (s *Server) PublishResult(r reminder.Result) {
	s.hub.Broadcast(ws.NewMessage("dispatch.result", reminder.JobKey(r.InterviewID), r))
}
