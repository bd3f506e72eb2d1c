package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/platform/validation"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case validation.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, progress.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, progress.ErrNotEnrolled),
		errors.Is(err, progress.ErrCourseNotPublished),
		errors.Is(err, progress.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, progress.ErrAlreadyEnrolled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the JSON error response for err. Internal errors
// are logged and their details are not returned.
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)

	body := errorBody{Error: err.Error()}
	var ve *validation.Error
	if errors.As(err, &ve) && len(ve.Fields) > 0 {
		body.Fields = make(map[string]string, len(ve.Fields))
		for _, f := range ve.Fields {
			body.Fields[f.Field] = f.Error
		}
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		body = errorBody{Error: "internal server error"}
	}
	c.AbortWithStatusJSON(status, body)
}

// bindJSON decodes the request body into v. gin runs the validate tags
// through structValidator; decode failures are reported on "body".
func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		if validation.IsValidation(err) {
			return err
		}
		return invalidBody(err)
	}
	return nil
}

func invalidBody(err error) error {
	return validation.New(errors.New("invalid request body"), validation.FieldError{Field: "body", Error: err.Error()})
}
