package utils

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 在 InitLogger 之前为空实现，便于测试直接使用各个包
var Logger = zap.NewNop()

type loggerKey struct{}

func InitLogger(mode string) error {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if mode == "release" {
		config = zap.NewProductionConfig()
	}

	logger, err := config.Build(zap.Fields(zap.String("app", "detectkit")))
	if err != nil {
		return err
	}

	Logger = logger
	return nil
}

// WithLogger 把请求级 logger 放进 context
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// L 取 context 中的请求级 logger，没有时返回全局 Logger
func L(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return Logger
}

func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}
