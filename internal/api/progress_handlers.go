package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/p-n-ai/pai-learn/internal/catalog"
)

type answerRequest struct {
	ChapterID  string `json:"chapterId"`
	QuestionID string `json:"questionId" validate:"required"`
	Answer     string `json:"answer" validate:"required,max=4096"`
}

type quizRequest struct {
	ChapterID string            `json:"chapterId"`
	Answers   map[string]string `json:"answers"`
}

type chapterRequest struct {
	ChapterID string `json:"chapterId"`
}

type currentChapterRequest struct {
	ChapterID string `json:"chapterId" validate:"required"`
}

func (h *handler) listCourses(c *gin.Context) {
	courses, err := h.catalog.ListCourses(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	id, _ := identityFrom(c)
	out := make([]*catalog.Course, 0, len(courses))
	for _, course := range courses {
		if course.Published || id.IsAdmin() {
			out = append(out, course)
		}
	}
	c.JSON(http.StatusOK, gin.H{"courses": out})
}

func (h *handler) getCourse(c *gin.Context) {
	course, err := h.catalog.GetCourse(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if id, _ := identityFrom(c); !course.Published && !id.IsAdmin() {
		abortWithError(c, fmt.Errorf("course %s: %w", course.ID, catalog.ErrNotFound))
		return
	}
	c.JSON(http.StatusOK, course)
}

func (h *handler) enroll(c *gin.Context) {
	rec, err := h.progress.Enroll(c.Request.Context(), learnerID(c), c.Param("courseId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *handler) enrollmentStatus(c *gin.Context) {
	status, err := h.progress.EnrollmentStatus(c.Request.Context(), learnerID(c), c.Param("courseId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *handler) listProgress(c *gin.Context) {
	all, err := h.progress.GetAllProgress(c.Request.Context(), learnerID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": all})
}

func (h *handler) getProgress(c *gin.Context) {
	rec, err := h.progress.GetProgress(c.Request.Context(), learnerID(c), c.Param("courseId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *handler) unenroll(c *gin.Context) {
	if err := h.progress.Unenroll(c.Request.Context(), learnerID(c), c.Param("courseId")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) updateCurrentChapter(c *gin.Context) {
	var req currentChapterRequest
	if err := bindJSON(c, &req); err != nil {
		abortWithError(c, err)
		return
	}
	rec, err := h.progress.UpdateCurrentChapter(c.Request.Context(), learnerID(c), c.Param("courseId"), req.ChapterID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// submitAnswer serves both the nested route and the id-only route, where
// the chapter comes from the body and the course is looked up.
func (h *handler) submitAnswer(c *gin.Context) {
	var req answerRequest
	if err := bindJSON(c, &req); err != nil {
		abortWithError(c, err)
		return
	}
	chapterID := pathOr(c, "chapterId", req.ChapterID)
	res, err := h.progress.SubmitAnswer(c.Request.Context(), learnerID(c), c.Param("courseId"), chapterID, req.QuestionID, req.Answer)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) submitQuiz(c *gin.Context) {
	var req quizRequest
	if err := bindJSON(c, &req); err != nil {
		abortWithError(c, err)
		return
	}
	chapterID := pathOr(c, "chapterId", req.ChapterID)
	res, err := h.progress.SubmitQuiz(c.Request.Context(), learnerID(c), c.Param("courseId"), chapterID, req.Answers)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) completeChapter(c *gin.Context) {
	var req chapterRequest
	if c.Param("chapterId") == "" {
		if err := bindJSON(c, &req); err != nil {
			abortWithError(c, err)
			return
		}
	}
	chapterID := pathOr(c, "chapterId", req.ChapterID)
	res, err := h.progress.MarkChapterComplete(c.Request.Context(), learnerID(c), c.Param("courseId"), chapterID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) recalculate(c *gin.Context) {
	report, err := h.progress.Recalculate(c.Request.Context(), learnerID(c), c.Query("courseId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *handler) prune(c *gin.Context) {
	report, err := h.progress.Prune(c.Request.Context(), learnerID(c), c.Param("courseId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func pathOr(c *gin.Context, param, fallback string) string {
	if v := c.Param(param); v != "" {
		return v
	}
	return fallback
}
