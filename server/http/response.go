// Package http wires C6's pipeline, C3's retriever, and C4's standalone
// generator operations onto the HTTP surface spec.md §6 defines. Grounded
// on yungbote-neurobridge-backend's internal/server+internal/handlers
// pattern (gin.Engine, cors.New, one handler struct per resource, a shared
// RespondOK/RespondError envelope) - the teacher's own server/http carries
// an unwired Option/Options pair (see DESIGN.md) so the router shape here
// follows the pack instead.
package http

import (
	"net/http"

	"github.com/chronofact/chronofact/chronoerr"
	"github.com/gin-gonic/gin"
)

// APIError is the error envelope's body.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps every non-2xx JSON response.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes the error envelope with the status the caller passes
// (used for request validation failures, which have no chronoerr sentinel).
// It does not map err to a status; RespondFromErr does that.
func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// RespondFromErr maps err through chronoerr.StatusCode and responds.
func RespondFromErr(c *gin.Context, err error) {
	RespondError(c, chronoerr.StatusCode(err), "", err)
}

// RespondOK writes payload as a 200 JSON body.
func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
