package client

import (
	"context"
	"sync"

	"github.com/TIANLI0/DetectKit/utils"
	"go.uber.org/zap"
)

// Notification 面向用户的错误提示
type Notification struct {
	Level   string
	Message string
}

type Notifier interface {
	Notify(n Notification)
}

// LogNotifier 把提示写入日志，作为没有界面时的默认实现
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	utils.Logger.Warn("notification",
		zap.String("level", n.Level),
		zap.String("message", n.Message))
}

// Recorder 收集提示，供视图渲染
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// Notifications 返回已收集提示的副本
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type notifierKey struct{}

// WithNotifier 为单次请求指定提示接收者，优先于客户端全局配置
func WithNotifier(ctx context.Context, n Notifier) context.Context {
	return context.WithValue(ctx, notifierKey{}, n)
}

func notifierFrom(ctx context.Context, fallback Notifier) Notifier {
	if ctx != nil {
		if n, ok := ctx.Value(notifierKey{}).(Notifier); ok && n != nil {
			return n
		}
	}
	return fallback
}
