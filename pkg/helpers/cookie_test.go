package helpers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, ck := range rec.Result().Cookies() {
		out[ck.Name] = ck
	}
	return out
}

func TestSetPairAndClear(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewCookie("", true)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	m.SetPair(c, "a", time.Now().Add(time.Hour), "r", time.Now().Add(24*time.Hour))

	got := cookiesByName(rec)
	for name, want := range map[string]string{AccessTokenCookie: "a", RefreshTokenCookie: "r"} {
		ck, ok := got[name]
		if !ok {
			t.Fatalf("cookie %s not set", name)
		}
		if ck.Value != want || !ck.HttpOnly || !ck.Secure {
			t.Fatalf("cookie %s = %+v", name, ck)
		}
	}

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	m.Clear(c)
	got = cookiesByName(rec)
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		ck, ok := got[name]
		if !ok || ck.MaxAge >= 0 || ck.Value != "" {
			t.Fatalf("cookie %s not cleared: %+v", name, ck)
		}
	}
}

func TestMaxAgeNeverNegative(t *testing.T) {
	if got := maxAgeFrom(time.Now().Add(-time.Minute)); got != 0 {
		t.Fatalf("maxAgeFrom(past) = %d", got)
	}
}
