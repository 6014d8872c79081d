package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"task-tracker/internal/models"
	"task-tracker/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

// bindJSON decodes the request body into dest and writes a 400 response when the body
// is malformed or fails binding rules. It reports whether the handler should continue.
func bindJSON(c *gin.Context, dest interface{}) bool {
	err := c.ShouldBindJSON(dest)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return false
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": map[string]string{typeErr.Field: typeMessage(typeErr.Type)},
		})
		return false
	}

	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
	return false
}

var dateType = reflect.TypeOf(models.Date{})

func typeMessage(t reflect.Type) string {
	switch {
	case t == nil:
		return "invalid value"
	case t == dateType:
		return "date has wrong format, use YYYY-MM-DD"
	case t.Kind() >= reflect.Uint && t.Kind() <= reflect.Uint64:
		return "expected a positive integer id or null"
	default:
		return fmt.Sprintf("expected %s", t.String())
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return fmt.Sprintf("ensure this field has no more than %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("%q is not a valid choice", fmt.Sprint(fe.Value()))
	default:
		return fmt.Sprintf("failed on the %q rule", fe.Tag())
	}
}

// parseID treats an id that is not a positive integer as a missing resource.
func parseID(c *gin.Context, entity string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": entity + " not found"})
		return 0, false
	}
	return uint(id), true
}

func handleServiceError(c *gin.Context, entity string, err error) {
	var verrs services.ValidationErrors
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": entity + " not found"})
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verrs})
	default:
		log.Printf("❌ %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to process %s request", entity)})
	}
}
