package server

import (
	"time"

	"github.com/gin-gonic/gin"
)

// routes builds the router. Every route is a read.
func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.accessLog)

	r.GET("/health", s.health)
	r.GET("/", s.page)

	api := r.Group("/api")
	api.GET("/snapshot", s.snapshot)
	api.GET("/kpis", s.kpis)
	api.GET("/epics", s.listEpics)
	api.GET("/epics/:key", s.getEpic)
	api.GET("/view", s.view)

	return r
}

// accessLog logs method, route, status and duration for each request.
func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Info().
		Str("m", c.Request.Method).
		Str("p", c.FullPath()).
		Int("s", c.Writer.Status()).
		Dur("took", time.Since(start)).
		Msg("http")
}
