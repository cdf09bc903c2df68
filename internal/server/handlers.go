package server

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jmaddaus/sprintlens/internal/filter"
	"github.com/jmaddaus/sprintlens/internal/model"
	"github.com/jmaddaus/sprintlens/internal/report"
)

func (s *Server) health(c *gin.Context) {
	resp := gin.H{
		"ok":           true,
		"generation":   s.snap.GenerationID,
		"generated_at": s.snap.GeneratedAt,
	}
	if !s.startedAt.IsZero() {
		resp["uptime"] = time.Since(s.startedAt).Round(time.Second).String()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.snap)
}

func (s *Server) kpis(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"kpis":                  s.snap.KPIs,
		"priority_bugs":         s.snap.PriorityBugs,
		"lead_time_by_priority": s.snap.LeadTimeByPriority,
		"backlog_aging":         s.snap.BacklogAging,
		"recommendations":       s.snap.Recommendations,
	})
}

// epicSummary is one entry of the epic listing.
type epicSummary struct {
	Key     string         `json:"epic_key"`
	Name    string         `json:"epic_name"`
	Project string         `json:"project"`
	Kind    model.EpicKind `json:"kind"`
	Size    int            `json:"size"`
}

// listEpics lists every epic with its member count. ?kind= narrows the list
// to one kind.
func (s *Server) listEpics(c *gin.Context) {
	kind := model.EpicKind(c.Query("kind"))
	out := []epicSummary{}
	for _, e := range s.snap.Epics {
		if kind != "" && e.Kind != kind {
			continue
		}
		out = append(out, epicSummary{Key: e.Key, Name: e.Name, Project: e.Project, Kind: e.Kind, Size: len(e.Members)})
	}
	c.JSON(http.StatusOK, gin.H{"epics": out, "total": len(out)})
}

func (s *Server) getEpic(c *gin.Context) {
	e := s.snap.Epic(c.Param("key"))
	if e == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "epic not found"})
		return
	}
	rows := []model.Row{}
	for _, r := range s.snap.Rows {
		if r.Epic == e.Key {
			rows = append(rows, r)
		}
	}
	c.JSON(http.StatusOK, gin.H{"epic": e, "rows": rows})
}

// view applies the selection given in the query string and returns the
// recomputed view.
func (s *Server) view(c *gin.Context) {
	var sel filter.Selection
	if err := c.ShouldBindQuery(&sel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.engine.View(sel))
}

func (s *Server) page(c *gin.Context) {
	var buf bytes.Buffer
	if err := report.RenderPage(&buf, s.snap); err != nil {
		s.log.Error().Err(err).Msg("render page")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
