package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestErrorUsesMatchingHTTPStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[int]int{
		CodeBadRequest: http.StatusBadRequest,
		CodeForbidden:  http.StatusForbidden,
		CodeConflict:   http.StatusConflict,
		CodeInternal:   http.StatusInternalServerError,
		12345:          http.StatusInternalServerError,
	}
	for code, want := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Set("request_id", "rid-1")
		Error(c, code, "boom")
		if w.Code != want {
			t.Fatalf("code %d: expected http %d, got %d", code, want, w.Code)
		}
		var body struct {
			StatusCode int               `json:"status_code"`
			Msg        string            `json:"msg"`
			Data       map[string]string `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if body.StatusCode != code || body.Msg != "boom" || body.Data["request_id"] != "rid-1" {
			t.Fatalf("unexpected body: %+v", body)
		}
	}
}

func TestCreatedEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Created(c, "created", gin.H{"id": 1})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.StatusCode != http.StatusCreated || body.Msg != "created" {
		t.Fatalf("unexpected body: %+v", body)
	}
}
