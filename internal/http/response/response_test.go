package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/nexusgraph-backend/internal/platform/apierr"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env
}

func TestRespondErrUsesTypedStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	RespondErr(c, apierr.NotFound("job_not_found", errors.New("job not found: x")))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got=%d want=%d", rec.Code, http.StatusNotFound)
	}
	env := decode(t, rec)
	if env.Error.Code != "job_not_found" || env.Error.Message != "job not found: x" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestRespondErrHidesUntypedErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	RespondErr(c, errors.New("pq: password authentication failed"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got=%d", rec.Code)
	}
	if env := decode(t, rec); env.Error.Message != "internal server error" {
		t.Fatalf("leaked message: %q", env.Error.Message)
	}
}
