package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/p-n-ai/pai-learn/internal/catalog"
)

type publishRequest struct {
	Published *bool `json:"published" validate:"required"`
}

func (h *handler) setPublished(c *gin.Context) {
	var req publishRequest
	if err := bindJSON(c, &req); err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.editor.SetPublished(c.Request.Context(), c.Param("courseId"), *req.Published); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courseId": c.Param("courseId"), "published": *req.Published})
}

func (h *handler) updateSection(c *gin.Context) {
	var cmd catalog.UpdateSection
	if err := bindJSON(c, &cmd); err != nil {
		abortWithError(c, err)
		return
	}
	s, err := h.editor.UpdateSection(c.Request.Context(), c.Param("courseId"), c.Param("sectionId"), cmd)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handler) updateUnit(c *gin.Context) {
	var cmd catalog.UpdateUnit
	if err := bindJSON(c, &cmd); err != nil {
		abortWithError(c, err)
		return
	}
	u, err := h.editor.UpdateUnit(c.Request.Context(), c.Param("courseId"), c.Param("unitId"), cmd)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handler) updateChapter(c *gin.Context) {
	var cmd catalog.UpdateChapter
	if err := bindJSON(c, &cmd); err != nil {
		abortWithError(c, err)
		return
	}
	ch, err := h.editor.UpdateChapter(c.Request.Context(), c.Param("courseId"), c.Param("chapterId"), cmd)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// removeChapter deletes the chapter from the catalog. Existing progress
// entries for it become stale and stop counting at the next aggregation.
func (h *handler) removeChapter(c *gin.Context) {
	if err := h.editor.RemoveChapter(c.Request.Context(), c.Param("courseId"), c.Param("chapterId")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// deleteCourse removes the course and every progress record attached to it.
func (h *handler) deleteCourse(c *gin.Context) {
	ctx := c.Request.Context()
	courseID := c.Param("courseId")
	if err := h.editor.DeleteCourse(ctx, courseID); err != nil {
		abortWithError(c, err)
		return
	}
	n, err := h.progress.DeleteCourse(ctx, courseID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	slog.Info("course removed with progress", "course_id", courseID, "records", n)
	c.JSON(http.StatusOK, gin.H{"courseId": courseID, "progressRecordsDeleted": n})
}
