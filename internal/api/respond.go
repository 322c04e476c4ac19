package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookxchange/bookxchange/internal/logger"
	"github.com/bookxchange/bookxchange/pkg/apperr"
)

var log = logger.New("api")

var statusByCode = map[apperr.Code]int{
	apperr.CodeValidation:   http.StatusBadRequest,
	apperr.CodeNotFound:     http.StatusNotFound,
	apperr.CodeConflict:     http.StatusConflict,
	apperr.CodeForbidden:    http.StatusForbidden,
	apperr.CodeUnauthorized: http.StatusUnauthorized,
}

// respondError maps a taxonomy error to its HTTP status. Anything
// uncoded is logged and downgraded to a generic 500 so no internal
// detail leaks.
func respondError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		log.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": apperr.MessageOf(err)})
}
