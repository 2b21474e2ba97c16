package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/RichardoC/chatline/internal/conversation"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError is an error with a fixed HTTP status and a client-safe message.
type AppError struct {
	Status  int
	Name    string
	Message string
	Details []FieldError
}

func (e *AppError) Error() string {
	return e.Name + ": " + e.Message
}

func BadRequest(message string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Name: "BadRequestError", Message: message}
}

func Validation(message string, details []FieldError) *AppError {
	return &AppError{Status: http.StatusBadRequest, Name: "ValidationError", Message: message, Details: details}
}

func NotFound(message string) *AppError {
	return &AppError{Status: http.StatusNotFound, Name: "NotFoundError", Message: message}
}

func Unprocessable(message string) *AppError {
	return &AppError{Status: http.StatusUnprocessableEntity, Name: "UnprocessableEntityError", Message: message}
}

func Internal() *AppError {
	return &AppError{Status: http.StatusInternalServerError, Name: "InternalServerError", Message: "Something went wrong"}
}

type errorBody struct {
	Code    int          `json:"code"`
	Name    string       `json:"name"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

func newErrorResponse(e *AppError) errorResponse {
	return errorResponse{
		Error: errorBody{
			Code:    e.Status,
			Name:    e.Name,
			Message: e.Message,
			Details: e.Details,
		},
	}
}

// classify maps any error returned by a handler onto an AppError.
// Unrecognised errors become a generic 500.
func classify(err error) *AppError {
	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, conversation.ErrTitleUnchanged):
		return Unprocessable("New title must differ from the current title")
	case errors.Is(err, conversation.ErrConversationNotFound):
		return NotFound("Conversation not found")
	default:
		return Internal()
	}
}

// errorHandler renders the last error a handler attached with c.Error.
func errorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr := classify(err)
		if appErr.Status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
		}

		c.JSON(appErr.Status, newErrorResponse(appErr))
	}
}

// recovery turns a panic into the internal error envelope.
func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, newErrorResponse(Internal()))
	})
}
