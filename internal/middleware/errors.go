package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kanban-board/internal/services"
	"kanban-board/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrorResponse is the single error body every endpoint returns.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
}

// RespondError writes the uniform error body and aborts the chain.
func RespondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Path:       c.Request.URL.RequestURI(),
	})
}

// ErrorHandler renders the last error a handler attached with c.Error.
// Binding errors become 400; service sentinels map to their status; anything
// else is logged and reported as 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		last := c.Errors.Last()
		status, message := classify(last)
		if status == http.StatusInternalServerError {
			log.WithFields(log.Fields{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
				"error":  last.Err.Error(),
			}).Error("unhandled request error")
		}
		RespondError(c, status, message)
	}
}

func classify(ginErr *gin.Error) (int, string) {
	err := ginErr.Err

	if ginErr.IsType(gin.ErrorTypeBind) {
		return http.StatusBadRequest, bindMessage(err)
	}

	var svcErr *services.Error
	message := ""
	if errors.As(err, &svcErr) {
		message = svcErr.Message
	}

	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, services.ErrInvalidToken):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, orDefault(message, "Forbidden resource")
	case errors.Is(err, services.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, orDefault(message, "Resource not found")
	case errors.Is(err, services.ErrEmailTaken), errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict, "A record with this value already exists"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return http.StatusBadRequest, "Related resource not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func orDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}

func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, validation.Message(fe))
		}
		return strings.Join(parts, "; ")
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return "Malformed JSON body"
	case errors.As(err, &typeErr):
		return fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type)
	}
	return err.Error()
}

// RegisterJSONFieldNames makes validation errors name fields the way clients
// send them.
func RegisterJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(validation.JSONName)
}
