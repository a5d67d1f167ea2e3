package common

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// Every endpoint answers through one of these two envelopes.

type successEnvelope struct {
	Response string      `json:"response"`
	Data     interface{} `json:"data"`
}

type errorBody struct {
	Type       string `json:"type"`
	Path       string `json:"path"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

type errorEnvelope struct {
	Response string    `json:"response"`
	Error    errorBody `json:"error"`
}

// RespondData writes the success envelope with the given status.
func RespondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, successEnvelope{Response: "Successful", Data: data})
}

// RespondError writes the error envelope. Only the client-safe message of a
// tagged error reaches the wire; untagged errors render as a generic internal
// failure and the cause is logged here.
func RespondError(c *gin.Context, err error) {
	kind := KindOf(err)
	message := "internal server error"

	var tagged *Error
	if errors.As(err, &tagged) {
		message = tagged.Message
	}

	if kind == KindInternal {
		Log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
	}

	c.AbortWithStatusJSON(kind.Status(), errorEnvelope{
		Response: "Error",
		Error: errorBody{
			Type:       kind.String(),
			Path:       c.Request.URL.Path,
			StatusCode: kind.Status(),
			Message:    message,
		},
	})
}
