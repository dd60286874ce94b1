package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	dom "github.com/cuihairu/arcade/internal/ports"
	"github.com/cuihairu/arcade/internal/service/games"
)

func (s *Server) gameRoutes(r *gin.RouterGroup) {
	r.GET("/games", func(c *gin.Context) {
		items, err := s.d.Games.List(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusOK, gin.H{"games": items})
	})
	r.POST("/games", func(c *gin.Context) {
		var in games.ImportInput
		if err := bind(c, &in); err != nil {
			s.badRequest(c, err)
			return
		}
		g, err := s.d.Games.Import(c, in)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusCreated, g)
	})
	r.GET("/games/:id", func(c *gin.Context) {
		g, err := s.d.Games.Get(c, c.Param("id"))
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusOK, g)
	})
	r.PATCH("/games/:id", func(c *gin.Context) {
		var u dom.GameUpdate
		if err := bind(c, &u); err != nil {
			s.badRequest(c, err)
			return
		}
		g, err := s.d.Games.Update(c, c.Param("id"), u)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusOK, g)
	})
	r.DELETE("/games/:id", func(c *gin.Context) {
		if err := s.d.Games.Delete(c, c.Param("id")); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
	r.POST("/games/:id/launch", func(c *gin.Context) {
		if s.d.Launcher == nil {
			s.unavailable(c, "launcher")
			return
		}
		if truthy(c.Query("dry_run"), false) {
			p, err := s.d.Launcher.Plan(c, c.Param("id"))
			if err != nil {
				s.fail(c, err)
				return
			}
			s.JSON(c, http.StatusOK, p)
			return
		}
		res, err := s.d.Launcher.Launch(c, c.Param("id"))
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusOK, res)
	})
	r.GET("/games/:id/settings", func(c *gin.Context) {
		cfg, err := s.d.Games.Settings(c, c.Param("id"))
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusOK, cfg)
	})
	r.PUT("/games/:id/settings", func(c *gin.Context) {
		g, err := s.d.Games.Get(c, c.Param("id"))
		if err != nil {
			s.fail(c, err)
			return
		}
		// absent fields keep their defaults (sandboxHome stays on)
		cfg := dom.DefaultLaunchConfig(g)
		if err := bind(c, cfg); err != nil {
			s.badRequest(c, err)
			return
		}
		out, err := s.d.Games.SaveSettings(c, g.ID, cfg)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusOK, out)
	})
	r.GET("/games/:id/profile_dir", func(c *gin.Context) {
		dir, err := s.d.Games.ProfileDir(c, c.Param("id"))
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusOK, gin.H{"profileDir": dir})
	})

	r.POST("/scan", func(c *gin.Context) {
		var in struct {
			Root     string `json:"root"`
			MaxDepth *int   `json:"maxDepth"`
			TaskID   string `json:"taskId"`
			Wait     *bool  `json:"wait"`
		}
		if err := bind(c, &in); err != nil {
			s.badRequest(c, err)
			return
		}
		req := games.ScanInput{Root: in.Root, MaxDepth: -1, TaskID: in.TaskID}
		if in.MaxDepth != nil {
			req.MaxDepth = *in.MaxDepth
		}
		if req.TaskID == "" {
			req.TaskID = uuid.NewString()
		}
		if in.Wait != nil && !*in.Wait {
			go func() {
				if _, err := s.d.Games.Scan(s.bg, req); err != nil {
					s.log.Warn("background scan", "task_id", req.TaskID, "error", err)
				}
			}()
			s.JSON(c, http.StatusAccepted, gin.H{"taskId": req.TaskID})
			return
		}
		res, err := s.d.Games.Scan(c, req)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.JSON(c, http.StatusOK, gin.H{"taskId": req.TaskID, "result": res})
	})
}
