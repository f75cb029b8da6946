package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope. Error responses never carry
// internal detail beyond the message.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// BadRequest sends 400 with a message and optional validation detail.
func BadRequest(c *gin.Context, msg string, detail ...string) {
	b := Body{Success: false, Message: msg}
	if len(detail) > 0 {
		b.Error = detail[0]
	}
	c.JSON(http.StatusBadRequest, b)
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Message: msg})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Message: msg})
}

// NotFound sends 404.
func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Message: msg})
}

// Conflict sends 409.
func Conflict(c *gin.Context, msg string) {
	c.JSON(http.StatusConflict, Body{Success: false, Message: msg})
}

// Internal sends 500 with a generic message; details stay in server logs.
func Internal(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Message: msg})
}
