package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"study-service/internal/app"
	"study-service/internal/logger"
)

// RouterConfig carries everything the API needs.
type RouterConfig struct {
	Auth    *app.AuthService
	Studies *app.StudyService
	Quiz    *app.QuizService
	Chat    *app.ChatService
	Video   *app.VideoService
	Log     *logger.Logger

	CORSOrigins  []string
	SecureCookie bool
	ChatRPS      float64
	ChatBurst    int
}

// Handler serves the /api routes.
type Handler struct {
	auth         *app.AuthService
	studies      *app.StudyService
	quiz         *app.QuizService
	chat         *app.ChatService
	video        *app.VideoService
	log          *logger.Logger
	secureCookie bool
	upgrader     websocket.Upgrader
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Log == nil {
		cfg.Log = logger.Nop()
	}
	h := &Handler{
		auth:         cfg.Auth,
		studies:      cfg.Studies,
		quiz:         cfg.Quiz,
		chat:         cfg.Chat,
		video:        cfg.Video,
		log:          cfg.Log.Named("http"),
		secureCookie: cfg.SecureCookie,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the cors middleware has already vetted the origin for credentialed requests
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	limiter := newUserLimiter(cfg.ChatRPS, cfg.ChatBurst)
	limited := limiter.middleware()

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log), corsMiddleware(cfg.CORSOrigins))

	api := r.Group("/api")
	api.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	api.POST("/auth/register", h.register)
	api.POST("/auth/login", h.login)
	api.POST("/auth/logout", h.logout)

	protected := api.Group("")
	protected.Use(requireAuth(cfg.Auth))

	protected.GET("/auth/me", h.me)

	protected.GET("/studies", h.listStudies)
	protected.POST("/studies", limited, h.createStudy)
	protected.POST("/studies/upload", limited, h.uploadStudy)
	protected.GET("/studies/:id", h.getStudy)
	protected.GET("/studies/:id/search", h.search)

	protected.GET("/studies/:id/chat/:context", h.chatHistory)
	protected.DELETE("/studies/:id/chat/:context", h.clearChat)
	protected.POST("/studies/:id/chat/stream", limited, h.streamChat)

	protected.GET("/studies/:id/quiz/recommendation", h.recommendation)
	protected.POST("/studies/:id/quiz", limited, h.generateQuiz)
	protected.POST("/studies/:id/analyze-quiz", limited, h.analyzeQuiz)
	protected.POST("/studies/:id/quiz-history", h.recordHistory)
	protected.DELETE("/studies/:id/quiz-history/:historyId", h.deleteHistory)
	protected.GET("/studies/:id/mastered-concepts", h.masteredConcepts)

	protected.PATCH("/studies/:id/topics/learned", h.setTopicsLearned)
	protected.PATCH("/studies/:id/topics/:topicId/learned", h.setTopicLearned)
	protected.PATCH("/studies/:id/topics/:topicId/video", h.setTopicVideo)
	protected.DELETE("/studies/:id/topics/:topicId/video", h.clearTopicVideo)
	protected.GET("/studies/:id/topics/:topicId/script", limited, h.topicScript)

	protected.GET("/ws/quiz", h.serveQuizWS)
	protected.GET("/ws/video", limited, h.serveVideoWS)

	return r
}

// NewServer wraps handler in a listener with the timeouts the API needs. Streaming
// routes write for longer than a normal request, so there is no write timeout.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
