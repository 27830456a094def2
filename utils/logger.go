package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 在 InitLogger 之前为空实现，避免库代码和测试中出现空指针
var Logger = zap.NewNop()

// InitLogger release 模式输出 JSON，其余模式输出带颜色的开发格式
//
// 每条日志带 service 字段，便于与分割模型、机器人环境服务的日志合并检索。
func InitLogger(mode string) error {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if mode == "release" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.InitialFields = map[string]interface{}{"service": "tipguide"}

	logger, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return err
	}

	Logger = logger
	return nil
}

func Sync() {
	_ = Logger.Sync()
}
