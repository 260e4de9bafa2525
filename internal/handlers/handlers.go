// Package handlers implements the REST endpoints of the interview backend.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextUserID is the gin context key carrying the authenticated user id.
const ContextUserID = "userID"

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

func serverError(c *gin.Context) {
	respondMessage(c, http.StatusInternalServerError, "Server error")
}

// authedUserID pulls the id set by the auth middleware. An empty id means
// the middleware did not run; treat it as an auth failure, not a panic.
func authedUserID(c *gin.Context) (string, bool) {
	id := c.GetString(ContextUserID)
	if id == "" {
		respondMessage(c, http.StatusUnauthorized, "Not authorized, token failed")
		return "", false
	}
	return id, true
}
