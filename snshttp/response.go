package snshttp

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// response is the JSON envelope returned by every route.
type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func successResponse(c *gin.Context, data any) {
	c.JSON(http.StatusOK, response{Success: true, Data: data})
}

func errorResponse(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, response{Error: message})
}
