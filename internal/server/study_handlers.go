package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rcliao/studymap/internal/genai"
	"github.com/rcliao/studymap/internal/model"
	"github.com/rcliao/studymap/internal/study"
)

// activeSource loads the active syllabus or writes the error response.
func (s *Server) activeSource(c *gin.Context) (study.Source, bool) {
	src, err := study.ActiveSource(c.Request.Context(), repoOf(c))
	if err != nil {
		s.respondError(c, err)
		return study.Source{}, false
	}
	return src, true
}

func (s *Server) topics(c *gin.Context) {
	active, ok := repoOf(c).GetActive()
	if !ok {
		s.respondError(c, study.ErrNoActiveSyllabus)
		return
	}
	respondOK(c, gin.H{"topics": study.TopicChoices(active.MindMap)})
}

type quizRequest struct {
	Topic      string           `json:"topic"`
	Difficulty genai.Difficulty `json:"difficulty"`
	// Count defaults to genai.DefaultQuizQuestions when omitted.
	Count *int `json:"count"`
}

func (s *Server) quiz(c *gin.Context) {
	var req quizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest("invalid_json", err))
		return
	}
	src, ok := s.activeSource(c)
	if !ok {
		return
	}
	count := genai.DefaultQuizQuestions
	if req.Count != nil {
		count = *req.Count
	}
	if req.Topic == "" {
		req.Topic = genai.EntireSyllabus
	}
	if req.Difficulty == "" {
		req.Difficulty = genai.Medium
	}
	sess, err := s.quizzer.Start(c.Request.Context(), src, genai.QuizRequest{
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		Count:      count,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, sess)
}

type flashcardRequest struct {
	Topic string `json:"topic"`
}

func (s *Server) flashcardDeck(c *gin.Context) {
	var req flashcardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest("invalid_json", err))
		return
	}
	src, ok := s.activeSource(c)
	if !ok {
		return
	}
	deck, err := s.flashcards.Deck(c.Request.Context(), src, req.Topic)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, deck)
}

type planRequest struct {
	// ExamDate is YYYY-MM-DD; empty means thirty days from today.
	ExamDate   string           `json:"examDate"`
	DailyHours int              `json:"dailyHours"`
	Style      genai.StudyStyle `json:"style"`
	Intensity  genai.Intensity  `json:"intensity"`
}

func (s *Server) plan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest("invalid_json", err))
		return
	}
	exam := time.Now().Add(study.DefaultExamLead)
	if req.ExamDate != "" {
		parsed, err := time.Parse(time.DateOnly, req.ExamDate)
		if err != nil {
			s.respondError(c, badRequest("invalid_exam_date", err))
			return
		}
		exam = parsed
	}
	if req.DailyHours == 0 {
		req.DailyHours = study.DefaultDailyHours
	}
	if req.Style == "" {
		req.Style = genai.StyleBalanced
	}
	if req.Intensity == "" {
		req.Intensity = genai.IntensityMedium
	}
	src, ok := s.activeSource(c)
	if !ok {
		return
	}
	p, err := s.planner.Plan(c.Request.Context(), src, genai.PlanRequest{
		ExamDate:   exam,
		DailyHours: req.DailyHours,
		Style:      req.Style,
		Intensity:  req.Intensity,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, p)
}

func (s *Server) tutorHistory(c *gin.Context) {
	src, ok := s.activeSource(c)
	if !ok {
		return
	}
	turns, err := study.NewTutor(s.gen, repoOf(c), s.studyOpts...).History(c.Request.Context(), src)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if turns == nil {
		turns = []model.Turn{}
	}
	respondOK(c, gin.H{"syllabusId": src.SyllabusID, "turns": turns})
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	*study.Reply
	Disclaimer string `json:"disclaimer,omitempty"`
}

func (s *Server) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest("invalid_json", err))
		return
	}
	src, ok := s.activeSource(c)
	if !ok {
		return
	}
	reply, err := study.NewTutor(s.gen, repoOf(c), s.studyOpts...).Ask(c.Request.Context(), src, req.Question)
	if err != nil && reply == nil {
		s.respondError(c, err)
		return
	}
	// A reply whose transcript could not be saved is still shown.
	respondOK(c, askResponse{Reply: reply, Disclaimer: reply.Disclaimer()})
}

func (s *Server) clearTutorHistory(c *gin.Context) {
	src, ok := s.activeSource(c)
	if !ok {
		return
	}
	if err := study.NewTutor(s.gen, repoOf(c), s.studyOpts...).Reset(c.Request.Context(), src); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
