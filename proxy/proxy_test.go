package proxy

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TIANLI0/DetectKit/config"
	"github.com/TIANLI0/DetectKit/model"
	"github.com/gin-gonic/gin"
)

type seen struct {
	path  string
	query string
	host  string
	fwd   string
}

func newBackend(t *testing.T) (*httptest.Server, chan seen) {
	t.Helper()
	ch := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ch <- seen{
			path:  r.URL.Path,
			query: r.URL.RawQuery,
			host:  r.Host,
			fwd:   r.Header.Get("X-Forwarded-Host"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func TestNew_InvalidTarget(t *testing.T) {
	for _, target := range []string{"", "localhost:5000", "://bad"} {
		if _, err := New(Rule{Prefix: "/api", Target: target}); err == nil {
			t.Errorf("target %q: expected error", target)
		}
	}
}

func TestProxy_ForwardsUnchangedPath(t *testing.T) {
	backend, ch := newBackend(t)

	p, err := New(Rule{Prefix: "/api", Target: backend.URL, ChangeOrigin: true, Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "http://frontend.local/api/detection/model/status?verbose=1", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := <-ch
	if got.path != "/api/detection/model/status" {
		t.Errorf("expected unchanged path, got %q", got.path)
	}
	if got.query != "verbose=1" {
		t.Errorf("expected query forwarded, got %q", got.query)
	}
	if got.host != strings.TrimPrefix(backend.URL, "http://") {
		t.Errorf("expected host rewritten to target, got %q", got.host)
	}
	if got.fwd != "frontend.local" {
		t.Errorf("expected X-Forwarded-Host frontend.local, got %q", got.fwd)
	}
}

func TestProxy_KeepsOriginWhenChangeOriginDisabled(t *testing.T) {
	backend, ch := newBackend(t)

	p, err := New(Rule{Prefix: "/api", Target: backend.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "http://frontend.local/api/x", nil)
	p.ServeHTTP(httptest.NewRecorder(), req)

	if got := <-ch; got.host != "frontend.local" {
		t.Errorf("expected original host, got %q", got.host)
	}
}

func TestProxy_UpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	p, err := New(Rule{Prefix: "/api", Target: target})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/detection/model/status", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var resp model.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success || resp.Error == "" {
		t.Errorf("expected failure envelope with error, got %+v", resp)
	}
}

func TestProxy_WebSocketDisabled(t *testing.T) {
	backend, _ := newBackend(t)
	p, err := New(Rule{Prefix: "/api", Target: backend.URL, WS: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestProxy_WebSocketUpgrade(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			http.Error(w, "expected upgrade", http.StatusBadRequest)
			return
		}
		conn, buf, err := http.NewResponseController(w).Hijack()
		if err != nil {
			return
		}
		defer conn.Close()
		fmt.Fprint(buf, "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n")
		buf.Flush()

		line, err := buf.ReadString('\n')
		if err != nil {
			return
		}
		fmt.Fprint(buf, "echo:"+line)
		buf.Flush()
	}))
	defer backend.Close()

	p, err := New(Rule{Prefix: "/api", Target: backend.URL, WS: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	front := httptest.NewServer(p)
	defer front.Close()

	conn, err := net.Dial("tcp", strings.TrimPrefix(front.URL, "http://"))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	fmt.Fprint(conn, "GET /api/ws HTTP/1.1\r\nHost: frontend\r\nConnection: Upgrade\r\nUpgrade: websocket\r\n\r\n")

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	fmt.Fprint(conn, "ping\n")
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if line != "echo:ping\n" {
		t.Errorf("unexpected echo %q", line)
	}
}

func TestProxy_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	backend, ch := newBackend(t)

	p, err := New(Rule{Prefix: "/api", Target: backend.URL, ChangeOrigin: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r := gin.New()
	r.Use(p.Middleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "home") })

	front := httptest.NewServer(r)
	defer front.Close()

	t.Run("non-matching path is routed locally", func(t *testing.T) {
		resp, err := http.Get(front.URL + "/")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "home" {
			t.Errorf("expected local handler, got %q", body)
		}
	})

	t.Run("matching path is forwarded", func(t *testing.T) {
		resp, err := http.Post(front.URL+"/api/detection/detect", "application/json", strings.NewReader("{}"))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != `{"success":true}` {
			t.Errorf("expected backend body, got %q", body)
		}
		if got := <-ch; got.path != "/api/detection/detect" {
			t.Errorf("unexpected forwarded path %q", got.path)
		}
	})

	t.Run("cancellable request through recorder", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		req := httptest.NewRequest(http.MethodGet, "/api/detection/model/status", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := <-ch; got.path != "/api/detection/model/status" {
			t.Errorf("unexpected forwarded path %q", got.path)
		}
	})
}

func TestRuleFromConfig(t *testing.T) {
	rule := RuleFromConfig(config.ProxyConfig{
		Prefix:       "/api",
		Target:       "http://localhost:5000",
		ChangeOrigin: true,
		WS:           true,
		Timeout:      60 * time.Second,
	})
	if rule.Prefix != "/api" || rule.Target != "http://localhost:5000" || !rule.WS || !rule.ChangeOrigin || rule.Secure {
		t.Errorf("unexpected rule %+v", rule)
	}
	if rule.Timeout != 60*time.Second {
		t.Errorf("expected 60s timeout, got %v", rule.Timeout)
	}
}

func TestNew_DefaultPrefix(t *testing.T) {
	p, err := New(Rule{Target: "http://localhost:5000"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !p.Match("/api/detection/detect") || p.Match("/model-manager") {
		t.Error("default prefix should be /api")
	}
}
