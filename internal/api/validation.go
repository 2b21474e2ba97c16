package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const defaultTitle = "New Conversation"

type createConversationRequest struct {
	Title *string `json:"title" binding:"omitnil,min=1,max=200"`
}

func (r *createConversationRequest) trim() {
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		r.Title = &t
	}
}

type renameConversationRequest struct {
	Title string `json:"title" binding:"required,max=200"`
}

func (r *renameConversationRequest) trim() { r.Title = strings.TrimSpace(r.Title) }

type sendMessageRequest struct {
	Content string `json:"content" binding:"required,max=10000"`
}

func (r *sendMessageRequest) trim() { r.Content = strings.TrimSpace(r.Content) }

type pageQuery struct {
	Offset int `form:"offset,default=0" binding:"min=0"`
	Limit  int `form:"limit,default=20" binding:"min=1,max=100"`
}

type trimmer interface {
	trim()
}

var tagNamesOnce sync.Once

// useWireFieldNames makes validation errors report the JSON or query
// parameter name instead of the Go field name.
func useWireFieldNames() {
	tagNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, key := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(key), ",")
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
	})
}

// bindJSON decodes the body into req, trims it and validates it. An empty
// body is accepted as {} when allowEmpty is set.
func bindJSON(c *gin.Context, req trimmer, allowEmpty bool) error {
	if err := json.NewDecoder(c.Request.Body).Decode(req); err != nil {
		if !allowEmpty || !errors.Is(err, io.EOF) {
			return BadRequest("Request body must be a valid JSON object")
		}
	}
	req.trim()

	if err := binding.Validator.ValidateStruct(req); err != nil {
		return validationError(err)
	}
	return nil
}

func bindPage(c *gin.Context) (pageQuery, error) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return q, validationError(err)
	}
	return q, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return BadRequest("Invalid request parameters")
	}

	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return Validation("Validation failed", details)
}

func fieldMessage(fe validator.FieldError) string {
	text := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if text && fe.Param() == "1" {
			return "must not be empty"
		}
		if text {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if text {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed the %s check", fe.Tag())
	}
}
