package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

func TestOKWritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(RequestIDKey, "req-1")

	OK(c, http.StatusCreated, map[string]string{"id": "1"}, "created")

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["statusCode"].(float64) != 201 || body["success"] != true || body["message"] != "created" || body["requestId"] != "req-1" {
		t.Fatalf("body = %v", body)
	}
	if body["data"].(map[string]any)["id"] != "1" {
		t.Fatalf("data = %v", body["data"])
	}
	if _, ok := body["errors"]; ok {
		t.Fatal("errors must be omitted on success")
	}
}

func TestFailAborts(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Fail(c, http.StatusConflict, "user exists", map[string]string{"email": "taken"})

	if !c.IsAborted() || w.Code != http.StatusConflict {
		t.Fatalf("aborted=%v code=%d", c.IsAborted(), w.Code)
	}
	var body APIResponse[any]
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.StatusCode != 409 || body.Data != nil || body.Errors["email"] != "taken" {
		t.Fatalf("body = %+v", body)
	}
}

func TestDefaultStatuses(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if Success(c, 0, 1, "").StatusCode != http.StatusOK {
		t.Fatal("success default must be 200")
	}
	if Error(c, 0, "", nil).StatusCode != http.StatusBadRequest {
		t.Fatal("error default must be 400")
	}
}
