// Package client 封装访问后端检测服务的 HTTP 客户端。
//
// 所有请求都经过两个拦截步骤：请求拦截附加追踪ID和认证信息，响应拦截解析
// {success, data, error} 结构，把失败统一成 RequestFailedError 或
// NetworkError，并且每次失败恰好发出一条用户提示。
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/TIANLI0/DetectKit/config"
	"github.com/TIANLI0/DetectKit/model"
	"github.com/TIANLI0/DetectKit/utils"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID 后续请求沿用该追踪ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Request 请求描述
type Request struct {
	Method  string
	URL     string
	Body    any
	Form    *FormData
	Headers map[string]string
	Query   url.Values
}

// RequestInterceptor 在请求发出前调用，返回错误会终止本次请求
type RequestInterceptor func(r *resty.Request) error

type Client struct {
	rc           *resty.Client
	token        string
	notifier     Notifier
	interceptors []RequestInterceptor
}

type Option func(*Client)

// UseNotifier 替换默认的日志提示
func UseNotifier(n Notifier) Option {
	return func(c *Client) {
		if n != nil {
			c.notifier = n
		}
	}
}

func UseInterceptor(fn RequestInterceptor) Option {
	return func(c *Client) {
		c.interceptors = append(c.interceptors, fn)
	}
}

func UseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.rc.SetTransport(rt)
	}
}

func New(cfg config.APIConfig, opts ...Option) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultAPIURL
	}

	c := &Client{
		rc:       resty.New(),
		token:    cfg.Token,
		notifier: LogNotifier{},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.rc.SetBaseURL(baseURL)
	if cfg.Timeout > 0 {
		c.rc.SetTimeout(cfg.Timeout)
	}
	c.rc.OnBeforeRequest(c.interceptRequest)
	c.rc.OnAfterResponse(c.interceptResponse)

	return c
}

func (c *Client) BaseURL() string {
	return c.rc.BaseURL
}

// Do 发送请求，成功时返回完整的 envelope
func (c *Client) Do(ctx context.Context, req Request) (*model.Envelope, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	r := c.rc.R().SetContext(ctx)
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Form != nil {
		applyForm(r, req.Form)
	} else if req.Body != nil {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return nil, c.classify(ctx, method, req.URL, err)
	}

	env, ok := resp.Result().(*model.Envelope)
	if !ok || env == nil {
		ne := &NetworkError{Status: resp.StatusCode(), Err: statusError(resp.StatusCode())}
		c.notify(ctx, ne.Error())
		return nil, ne
	}
	return env, nil
}

func applyForm(r *resty.Request, form *FormData) {
	// 空表单也按 multipart 发送
	r.SetMultipartFields()
	if len(form.Fields) > 0 {
		r.SetFormData(form.Fields)
	}
	for _, f := range form.Files {
		if f.ContentType != "" {
			r.SetMultipartField(f.Field, f.Name, f.ContentType, f.Reader)
		} else {
			r.SetFileReader(f.Field, f.Name, f.Reader)
		}
	}
}

// interceptRequest 请求拦截：追踪ID、认证信息以及自定义拦截器
func (c *Client) interceptRequest(_ *resty.Client, r *resty.Request) error {
	if r.Header.Get(HeaderRequestID) == "" {
		id := requestIDFrom(r.Context())
		if id == "" {
			id = utils.NewRequestID()
		}
		r.SetHeader(HeaderRequestID, id)
	}
	if c.token != "" {
		r.SetAuthToken(c.token)
	}
	for _, fn := range c.interceptors {
		if err := fn(r); err != nil {
			return &interceptError{err: err}
		}
	}
	return nil
}

// interceptResponse 响应拦截：解析 envelope，失败时提示用户并返回错误
func (c *Client) interceptResponse(_ *resty.Client, resp *resty.Response) error {
	ctx := resp.Request.Context()

	utils.L(ctx).Debug("response",
		zap.String("method", resp.Request.Method),
		zap.String("url", resp.Request.URL),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("cost", resp.Time()),
		zap.String("request_id", resp.Request.Header.Get(HeaderRequestID)))

	env, isEnvelope := decodeEnvelope(resp.Body())
	if !resp.IsSuccess() && !isEnvelope {
		err := &NetworkError{Status: resp.StatusCode(), Err: statusError(resp.StatusCode())}
		utils.L(ctx).Error("response error",
			zap.String("url", resp.Request.URL),
			zap.Int("status", resp.StatusCode()),
			zap.Error(err))
		c.notify(ctx, err.Error())
		return err
	}

	// 非 2xx 一律失败，即使 envelope 声明 success
	if env.Success && resp.IsSuccess() {
		resp.Request.Result = env
		return nil
	}

	msg := env.Error
	switch {
	case msg != "":
	case !resp.IsSuccess():
		msg = statusError(resp.StatusCode()).Error()
	default:
		msg = FallbackMessage
	}
	utils.L(ctx).Warn("request failed",
		zap.String("url", resp.Request.URL),
		zap.Int("status", resp.StatusCode()),
		zap.String("error", msg))
	c.notify(ctx, msg)

	return &RequestFailedError{
		Status:   resp.StatusCode(),
		Message:  msg,
		Envelope: env,
	}
}

// decodeEnvelope 只有 JSON 对象且带 success 字段才视为 envelope
func decodeEnvelope(body []byte) (*model.Envelope, bool) {
	var probe struct {
		Success *bool `json:"success"`
	}
	env := &model.Envelope{}
	if len(body) == 0 {
		return env, false
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return env, false
	}
	if err := json.Unmarshal(body, env); err != nil {
		return &model.Envelope{}, false
	}
	return env, probe.Success != nil
}

func (c *Client) classify(ctx context.Context, method, rawURL string, err error) error {
	var rf *RequestFailedError
	if errors.As(err, &rf) {
		return rf
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne
	}

	var ie *interceptError
	if errors.As(err, &ie) {
		utils.L(ctx).Error("request error",
			zap.String("method", method),
			zap.String("url", rawURL),
			zap.Error(ie.err))
		c.notify(ctx, messageOf(ie.err))
		return ie.err
	}

	utils.L(ctx).Error("response error",
		zap.String("method", method),
		zap.String("url", rawURL),
		zap.Error(err))
	ne = &NetworkError{Err: err}
	c.notify(ctx, messageOf(err))
	return ne
}

func (c *Client) notify(ctx context.Context, msg string) {
	notifierFrom(ctx, c.notifier).Notify(Notification{Level: "error", Message: msg})
}

func messageOf(err error) string {
	if err == nil || err.Error() == "" {
		return FallbackMessage
	}
	return err.Error()
}
