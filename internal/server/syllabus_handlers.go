package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rcliao/studymap/internal/model"
	"github.com/rcliao/studymap/internal/study"
	"github.com/rcliao/studymap/internal/upload"
)

// maxUploadBody leaves room for multipart framing around the file.
const maxUploadBody = upload.MaxFileSize + 1<<20

type syllabusSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	TopicCount int       `json:"topicCount"`
	Active     bool      `json:"active"`
}

type listResponse struct {
	Syllabi  []syllabusSummary `json:"syllabi"`
	ActiveID string            `json:"activeId,omitempty"`
}

func (s *Server) listSyllabi(c *gin.Context) {
	repo := repoOf(c)
	items := repo.List()
	model.SortNewestFirst(items)
	active, _ := repo.GetActive()

	resp := listResponse{Syllabi: make([]syllabusSummary, 0, len(items)), ActiveID: active.ID}
	for _, it := range items {
		resp.Syllabi = append(resp.Syllabi, syllabusSummary{
			ID:         it.ID,
			Name:       it.Name,
			CreatedAt:  it.CreatedAt,
			TopicCount: len(it.MindMap.Topics),
			Active:     it.ID == active.ID,
		})
	}
	respondOK(c, resp)
}

// uploadSyllabus validates the file, deconstructs it and saves the result
// as the new active syllabus.
func (s *Server) uploadSyllabus(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBody)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			s.respondError(c, upload.ErrTooLarge)
			return
		}
		s.respondError(c, badRequest("file_required", err))
		return
	}
	if fh.Size > upload.MaxFileSize {
		s.respondError(c, upload.ErrTooLarge)
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.respondError(c, badRequest("file_unreadable", err))
		return
	}
	defer f.Close()

	file, err := upload.Read(fh.Filename, f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	doc, err := file.Document()
	if err != nil {
		s.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	mm, err := s.gen.Deconstruct(ctx, doc)
	if err != nil {
		s.log.Warn("deconstruct failed", "file", file.Name, "error", err)
		s.respondError(c, err)
		return
	}
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = file.Stem()
	}
	created, err := repoOf(c).Create(ctx, mm, doc.Text, name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) getActive(c *gin.Context) {
	active, ok := repoOf(c).GetActive()
	if !ok {
		s.respondError(c, study.ErrNoActiveSyllabus)
		return
	}
	respondOK(c, active)
}

type setActiveRequest struct {
	ID string `json:"id"`
}

// setActive ignores unknown ids and reports the selection that holds.
func (s *Server) setActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest("invalid_json", err))
		return
	}
	repo := repoOf(c)
	if err := repo.SetActive(c.Request.Context(), req.ID); err != nil {
		s.respondError(c, err)
		return
	}
	active, ok := repo.GetActive()
	if !ok {
		s.respondError(c, study.ErrNoActiveSyllabus)
		return
	}
	respondOK(c, active)
}

type syllabusDetail struct {
	model.Syllabus
	HasText bool               `json:"hasText"`
	Stats   model.MindMapStats `json:"stats"`
}

func (s *Server) getSyllabus(c *gin.Context) {
	repo := repoOf(c)
	item, err := repo.Get(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	_, hasText, err := repo.Text(c.Request.Context(), item.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, syllabusDetail{Syllabus: item, HasText: hasText, Stats: model.Stats(item.MindMap)})
}

type renameRequest struct {
	Name string `json:"name"`
}

func (s *Server) renameSyllabus(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest("invalid_json", err))
		return
	}
	repo := repoOf(c)
	id := c.Param("id")
	if err := repo.Rename(c.Request.Context(), id, req.Name); err != nil {
		s.respondError(c, err)
		return
	}
	item, err := repo.Get(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, item)
}

type deleteResponse struct {
	Deleted  string `json:"deleted"`
	ActiveID string `json:"activeId,omitempty"`
}

func (s *Server) deleteSyllabus(c *gin.Context) {
	repo := repoOf(c)
	id := c.Param("id")
	if err := repo.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	active, _ := repo.GetActive()
	respondOK(c, deleteResponse{Deleted: id, ActiveID: active.ID})
}

type dashboardResponse struct {
	Syllabus          model.Syllabus     `json:"syllabus"`
	Stats             model.MindMapStats `json:"stats"`
	AverageImportance float64            `json:"averageImportanceDisplay"`
	TotalSyllabi      int                `json:"totalSyllabi"`
}

func (s *Server) dashboard(c *gin.Context) {
	repo := repoOf(c)
	active, ok := repo.GetActive()
	if !ok {
		s.respondError(c, study.ErrNoActiveSyllabus)
		return
	}
	st := model.Stats(active.MindMap)
	respondOK(c, dashboardResponse{
		Syllabus:          active,
		Stats:             st,
		AverageImportance: model.RoundImportance(st.AverageImportance),
		TotalSyllabi:      len(repo.List()),
	})
}
