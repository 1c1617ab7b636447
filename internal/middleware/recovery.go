package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RecoveryWithLog turns a panic into a logged 500 with the uniform error body.
func RecoveryWithLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(log.Fields{
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
					"panic":  fmt.Sprint(r),
					"stack":  string(debug.Stack()),
				}).Error("recovered from panic")

				if !c.Writer.Written() {
					RespondError(c, http.StatusInternalServerError, "Internal server error")
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
