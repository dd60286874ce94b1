package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) systemRoutes(r *gin.RouterGroup) {
	r.POST("/maintenance/cleanup", func(c *gin.Context) {
		if s.d.Cleaner == nil {
			s.unavailable(c, "maintenance")
			return
		}
		res, err := s.d.Cleaner.CleanupUnusedContainers(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusOK, res)
	})
	r.GET("/settings", func(c *gin.Context) {
		st, err := s.d.Settings.AppSettings(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusOK, st)
	})
	r.PUT("/settings/container_root", func(c *gin.Context) {
		var in struct {
			Path string `json:"path"`
		}
		if err := bind(c, &in); err != nil {
			s.badRequest(c, err)
			return
		}
		if err := s.d.Settings.SetContainerRoot(c, in.Path); err != nil {
			s.fail(c, err)
			return
		}
		st, err := s.d.Settings.AppSettings(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusOK, st)
	})

	r.GET("/compat", func(c *gin.Context) {
		if s.d.Compat == nil {
			s.unavailable(c, "compat layer")
			return
		}
		st, err := s.d.Compat.Status(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusOK, st)
	})
	r.PUT("/compat/enabled", func(c *gin.Context) {
		if s.d.Compat == nil {
			s.unavailable(c, "compat layer")
			return
		}
		var in struct {
			Enabled bool `json:"enabled"`
		}
		if err := bind(c, &in); err != nil {
			s.badRequest(c, err)
			return
		}
		if err := s.d.Compat.SetEnabled(c, in.Enabled); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
	r.PUT("/compat/default_profile", func(c *gin.Context) {
		if s.d.Compat == nil {
			s.unavailable(c, "compat layer")
			return
		}
		var in struct {
			Profile string `json:"profile"`
		}
		if err := bind(c, &in); err != nil {
			s.badRequest(c, err)
			return
		}
		if err := s.d.Compat.SetDefaultProfile(c, in.Profile); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}
