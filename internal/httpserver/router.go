package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"chatcore/internal/domain"
	"chatcore/internal/metrics"
	"chatcore/internal/profiledirectory"
	"chatcore/internal/security"
	"chatcore/internal/service"
	"chatcore/internal/ws"
)

// Deps bundles every collaborator the router wires into handlers.
type Deps struct {
	Store         domain.Store
	Verifier      *security.TokenVerifier
	Conversations *service.ConversationService
	Messages      *service.MessageService
	ReadCursor    *service.ReadCursorService
	Users         *service.UserDirectoryService
	Profiles      *profiledirectory.Client
	Metrics       *metrics.Collector
	WSDeps        ws.Deps
	CORSOrigins   []string
	WSOrigins     []string
	Log           *logrus.Logger
}

// NewRouter constructs the main HTTP router: middleware, the REST surface,
// the /ws upgrade endpoint, and /api/metrics.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handleHealth())
		r.Get("/health/detailed", handleHealthDetailed(d.Store, d.Profiles))
		r.Handle("/metrics", metrics.Handler())

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Verifier, d.Users))

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", handleListConversations(d.Conversations, d.ReadCursor))
				r.Post("/direct", handleCreateDirect(d.Conversations))
				r.Post("/group", handleCreateGroup(d.Conversations))
				r.Post("/business", handleCreateBusiness(d.Conversations))
				r.Get("/{conversationID}", handleGetConversation(d.Conversations, d.ReadCursor))
				r.Post("/{conversationID}/read", handleMarkConversationRead(d.ReadCursor))
				r.Get("/{conversationID}/messages", handleListMessages(d.Messages))
				r.Post("/{conversationID}/messages", handleCreateMessage(d.Messages))
			})

			r.Route("/messages", func(r chi.Router) {
				r.Put("/{messageID}", handleEditMessage(d.Messages))
				r.Delete("/{messageID}", handleDeleteMessage(d.Messages))
			})

			r.Get("/users", handleListUsers(d.Users))
		})
	})

	r.Get("/ws", ws.MakeHandler(d.Verifier, d.WSDeps, d.WSOrigins, d.Log.WithField("component", "ws")))

	return r
}

// requestLogger adapts chi's request logging hook to logrus, scoping every
// line with the chi request ID the way the Connection Supervisor scopes
// its own lines with a connection ID.
func requestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
			}).Info("http request")
		})
	}
}
