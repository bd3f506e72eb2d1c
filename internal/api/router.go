// Package api exposes the progress service and catalog administration over
// HTTP/JSON.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

// HealthChecker is a dependency probed by /readyz.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config holds the dependencies of the HTTP API.
type Config struct {
	Progress *progress.Service
	Catalog  catalog.Store
	Editor   *catalog.Editor          // default: editor over Catalog
	Checks   map[string]HealthChecker // probed by /readyz
}

type handler struct {
	progress *progress.Service
	catalog  catalog.Store
	editor   *catalog.Editor
	checks   map[string]HealthChecker
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg Config) *gin.Engine {
	editor := cfg.Editor
	if editor == nil {
		editor = catalog.NewEditor(cfg.Catalog)
	}
	h := &handler{
		progress: cfg.Progress,
		catalog:  cfg.Catalog,
		editor:   editor,
		checks:   cfg.Checks,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", h.healthz)
	r.GET("/readyz", h.readyz)

	api := r.Group("/api", authenticated())

	courses := api.Group("/courses")
	courses.GET("", h.listCourses)
	courses.GET("/:courseId", h.getCourse)
	courses.POST("/:courseId/enroll", h.enroll)
	courses.GET("/:courseId/enrollment-status", h.enrollmentStatus)

	prog := api.Group("/progress")
	prog.GET("", h.listProgress)
	prog.POST("/answer", h.submitAnswer)
	prog.POST("/quiz", h.submitQuiz)
	prog.POST("/complete-chapter", h.completeChapter)
	prog.POST("/recalculate", h.recalculate)
	prog.GET("/:courseId", h.getProgress)
	prog.DELETE("/:courseId", h.unenroll)
	prog.PUT("/:courseId/current-chapter", h.updateCurrentChapter)
	prog.POST("/:courseId/prune", h.prune)
	prog.POST("/:courseId/chapters/:chapterId/answer", h.submitAnswer)
	prog.POST("/:courseId/chapters/:chapterId/quiz", h.submitQuiz)
	prog.POST("/:courseId/chapters/:chapterId/complete", h.completeChapter)

	admin := api.Group("/admin/courses", adminOnly())
	admin.PUT("/:courseId/published", h.setPublished)
	admin.PATCH("/:courseId/sections/:sectionId", h.updateSection)
	admin.PATCH("/:courseId/units/:unitId", h.updateUnit)
	admin.PATCH("/:courseId/chapters/:chapterId", h.updateChapter)
	admin.DELETE("/:courseId/chapters/:chapterId", h.removeChapter)
	admin.DELETE("/:courseId", h.deleteCourse)

	return r
}

func (h *handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) readyz(c *gin.Context) {
	failed := gin.H{}
	for name, check := range h.checks {
		if err := check.HealthCheck(c.Request.Context()); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
