package middlewares

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/sales_recon/utils"
	"github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func echoCorrelation(c *gin.Context) {
	cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
	c.String(http.StatusOK, cid)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCorrelationMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CorrelationMiddleware())
	r.GET("/x", echoCorrelation)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(CorrelationHeader, "abc")
	w := serve(r, req)
	if w.Body.String() != "abc" || w.Header().Get(CorrelationHeader) != "abc" {
		t.Fatalf("body=%q header=%q", w.Body.String(), w.Header().Get(CorrelationHeader))
	}

	w = serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Body.String() == "" || w.Body.String() != w.Header().Get(CorrelationHeader) {
		t.Fatalf("generated id missing: body=%q header=%q", w.Body.String(), w.Header().Get(CorrelationHeader))
	}
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(AuthMiddleware("secret"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	cases := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer wrong", http.StatusUnauthorized},
		{"secret", http.StatusUnauthorized},
		{"Bearer secret", http.StatusNoContent},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if c.header != "" {
			req.Header.Set("Authorization", c.header)
		}
		if w := serve(r, req); w.Code != c.want {
			t.Fatalf("header %q: code=%d want %d", c.header, w.Code, c.want)
		}
	}

	open := gin.New()
	open.Use(AuthMiddleware(""))
	open.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	if w := serve(open, httptest.NewRequest(http.MethodGet, "/x", nil)); w.Code != http.StatusNoContent {
		t.Fatalf("empty token should allow, got %d", w.Code)
	}
}

func TestReadinessMiddleware(t *testing.T) {
	ready := false
	r := gin.New()
	r.Use(ReadinessMiddleware(func() bool { return ready }))
	r.GET(HealthPath, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := serve(r, httptest.NewRequest(http.MethodGet, HealthPath, nil)); w.Code != http.StatusNoContent {
		t.Fatalf("health while starting: %d", w.Code)
	}
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("app route while starting: %d", w.Code)
	}
	ready = true
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)); w.Code != http.StatusOK {
		t.Fatalf("app route when ready: %d", w.Code)
	}
}

func TestErrorLogger(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	var hits int
	logger.AddHook(&countHook{n: &hits})

	r := gin.New()
	r.Use(ErrorLogger(logger))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) {
		_ = c.Error(io.ErrUnexpectedEOF)
		c.Status(http.StatusBadRequest)
	})

	serve(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/bad", nil))
	if hits != 1 {
		t.Fatalf("expected one error log, got %d", hits)
	}
}

type countHook struct{ n *int }

func (h *countHook) Levels() []logrus.Level { return []logrus.Level{logrus.ErrorLevel} }

func (h *countHook) Fire(*logrus.Entry) error {
	*h.n++
	return nil
}
