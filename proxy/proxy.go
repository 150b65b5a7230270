// Package proxy 开发模式下把 /api 请求转发到后端
package proxy

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/TIANLI0/DetectKit/config"
	"github.com/TIANLI0/DetectKit/model"
	"github.com/TIANLI0/DetectKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Rule 转发规则
type Rule struct {
	Prefix       string
	Target       string
	ChangeOrigin bool
	Secure       bool
	WS           bool
	Timeout      time.Duration
}

func RuleFromConfig(cfg config.ProxyConfig) Rule {
	return Rule{
		Prefix:       cfg.Prefix,
		Target:       cfg.Target,
		ChangeOrigin: cfg.ChangeOrigin,
		Secure:       cfg.Secure,
		WS:           cfg.WS,
		Timeout:      cfg.Timeout,
	}
}

type Proxy struct {
	rule   Rule
	target *url.URL
	rp     *httputil.ReverseProxy
}

func New(rule Rule) (*Proxy, error) {
	if rule.Prefix == "" {
		rule.Prefix = "/api"
	}
	target, err := url.Parse(rule.Target)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy target: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid proxy target %q", rule.Target)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !rule.Secure}
	if rule.Timeout > 0 {
		transport.ResponseHeaderTimeout = rule.Timeout
	}

	p := &Proxy{rule: rule, target: target}
	p.rp = &httputil.ReverseProxy{
		Rewrite:      p.rewrite,
		Transport:    transport,
		ErrorHandler: p.handleError,
	}
	return p, nil
}

func (p *Proxy) Rule() Rule {
	return p.rule
}

// Match 与开发服务器一致，按前缀匹配
func (p *Proxy) Match(path string) bool {
	return strings.HasPrefix(path, p.rule.Prefix)
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !p.Match(r.URL.Path) {
		writeError(w, http.StatusNotFound, "未匹配的代理路径", r.URL.Path)
		return
	}
	if isWebSocket(r) && !p.rule.WS {
		writeError(w, http.StatusBadRequest, "代理未开启 WebSocket", r.URL.Path)
		return
	}
	p.rp.ServeHTTP(w, r)
}

// Middleware 在路由之前拦截匹配前缀的请求
func (p *Proxy) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !p.Match(c.Request.URL.Path) {
			c.Next()
			return
		}
		p.ServeHTTP(c.Writer, c.Request)
		c.Abort()
	}
}

// rewrite 路径保持不变
func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	pr.SetURL(p.target)
	pr.SetXForwarded()
	if !p.rule.ChangeOrigin {
		pr.Out.Host = pr.In.Host
	}
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	utils.L(r.Context()).Error("proxy error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("target", p.rule.Target),
		zap.Error(err))
	writeError(w, http.StatusBadGateway, "代理请求失败", err.Error())
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.ErrorResponse{
		Success: false,
		Message: message,
		Error:   fmt.Sprintf("%s: %s", message, detail),
	})
}

func isWebSocket(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}
