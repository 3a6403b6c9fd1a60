// Package server exposes the study operations as a JSON API for a browser
// front end.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rcliao/studymap/internal/genai"
	"github.com/rcliao/studymap/internal/logger"
	"github.com/rcliao/studymap/internal/session"
	"github.com/rcliao/studymap/internal/study"
)

type Options struct {
	Log       *logger.Logger
	Registry  *session.Registry
	Generator genai.Generator
	// AllowedOrigins enables CORS for these origins. Empty disables CORS.
	AllowedOrigins []string
	SecureCookie   bool
}

type Server struct {
	log      *logger.Logger
	registry *session.Registry
	gen      genai.Generator
	opts     Options

	studyOpts  []study.Option
	quizzer    *study.Quizzer
	flashcards *study.Flashcards
	planner    *study.Planner
}

func New(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		log:      log.With("component", "server"),
		registry: opts.Registry,
		gen:      opts.Generator,
		opts:     opts,
	}
	s.studyOpts = []study.Option{study.WithLogger(log), study.WithDebouncer(study.NewDebouncer())}
	s.quizzer = study.NewQuizzer(s.gen, s.studyOpts...)
	s.flashcards = study.NewFlashcards(s.gen, s.studyOpts...)
	s.planner = study.NewPlanner(s.gen, s.studyOpts...)
	return s
}

// Router builds the gin engine with every route.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(s.log))
	if len(s.opts.AllowedOrigins) > 0 {
		router.Use(CORS(s.opts.AllowedOrigins))
	}
	router.Use(s.Identity())

	router.GET("/healthz", func(c *gin.Context) { respondOK(c, gin.H{"status": "ok"}) })

	api := router.Group("/api")
	{
		api.POST("/session", s.login)
		api.GET("/session", s.whoami)
		api.DELETE("/session", s.logout)
	}

	protected := api.Group("")
	protected.Use(s.RequireIdentity())
	{
		protected.GET("/syllabi", s.listSyllabi)
		protected.POST("/syllabi", s.uploadSyllabus)
		protected.GET("/syllabi/active", s.getActive)
		protected.PUT("/syllabi/active", s.setActive)
		protected.GET("/syllabi/:id", s.getSyllabus)
		protected.PATCH("/syllabi/:id", s.renameSyllabus)
		protected.DELETE("/syllabi/:id", s.deleteSyllabus)

		protected.GET("/dashboard", s.dashboard)
		protected.GET("/topics", s.topics)
		protected.POST("/quiz", s.quiz)
		protected.POST("/flashcards", s.flashcardDeck)
		protected.POST("/plan", s.plan)

		protected.GET("/tutor/history", s.tutorHistory)
		protected.POST("/tutor", s.ask)
		protected.DELETE("/tutor/history", s.clearTutorHistory)
	}
	return router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
