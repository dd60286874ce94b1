package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuihairu/arcade/internal/runtimes"
	"github.com/cuihairu/arcade/internal/service/engines"
)

func (s *Server) engineRoutes(r *gin.RouterGroup) {
	r.GET("/engines", func(c *gin.Context) {
		items, err := s.d.Engines.List(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusOK, gin.H{"engines": items})
	})
	r.GET("/engines/find", func(c *gin.Context) {
		e, err := s.d.Engines.Find(c, c.Query("type"), c.Query("version"))
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusOK, e)
	})
	r.POST("/engines", func(c *gin.Context) {
		var in engines.AddInput
		if err := bind(c, &in); err != nil {
			s.badRequest(c, err)
			return
		}
		e, err := s.d.Engines.Add(c, in)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusCreated, e)
	})
	r.DELETE("/engines/:id", func(c *gin.Context) {
		if err := s.d.Engines.Delete(c, c.Param("id")); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
	r.GET("/engines/:id/update_info", func(c *gin.Context) {
		if s.d.Runtimes == nil {
			s.unavailable(c, "runtime manager")
			return
		}
		info, err := s.d.Runtimes.UpdateInfo(c, c.Param("id"))
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusOK, info)
	})
	r.POST("/engines/:id/update", func(c *gin.Context) {
		if s.d.Runtimes == nil {
			s.unavailable(c, "runtime manager")
			return
		}
		res, err := s.d.Runtimes.Update(c, c.Param("id"))
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusOK, res)
	})
}

func (s *Server) runtimeRoutes(r *gin.RouterGroup) {
	r.GET("/runtime/stable", func(c *gin.Context) {
		if s.d.Runtimes == nil {
			s.unavailable(c, "runtime manager")
			return
		}
		info, err := s.d.Runtimes.StableInfo(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusOK, info)
	})
	r.POST("/runtime/download", func(c *gin.Context) {
		if s.d.Runtimes == nil {
			s.unavailable(c, "runtime manager")
			return
		}
		var in struct {
			Flavor string `json:"flavor"`
			TaskID string `json:"taskId"`
			Wait   bool   `json:"wait"`
		}
		if err := bind(c, &in); err != nil {
			s.badRequest(c, err)
			return
		}
		flavor, err := runtimes.ParseFlavor(in.Flavor)
		if err != nil {
			s.fail(c, err)
			return
		}
		if in.TaskID == "" {
			in.TaskID = uuid.NewString()
		}
		// The install itself outlives the request; wait only bounds the response.
		res, err := s.d.Runtimes.DownloadStable(c, flavor, in.TaskID, in.Wait)
		if err != nil {
			s.fail(c, err)
			return
		}
		status := http.StatusOK
		if !in.Wait {
			status = http.StatusAccepted
		}
		s.JSON(c, status, res)
	})
}
