package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/nexusgraph-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
		_ = c.Error(err)
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondErr maps err onto its API status; anything untyped is a 500.
func RespondErr(c *gin.Context, err error) {
	status, code := apierr.StatusOf(err)
	if status >= http.StatusInternalServerError && code == "internal_error" {
		_ = c.Error(err)
		c.JSON(status, ErrorEnvelope{Error: APIError{Message: "internal server error", Code: code}})
		return
	}
	RespondError(c, status, code, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
