package logger

import (
	"context"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Context keys. trace_id 由上游 (网关/调度器) 透传, request_id 由 gin 中间件注入。
const (
	TraceIdKey   = "trace_id"
	RequestIdKey = "request_id"
	CycleIdKey   = "cycle_id"
)

// Log 全局 Logger，未 Init 时为 Nop，方便单元测试直接调用
var Log = zap.NewNop()

// Init 初始化日志组件
// serviceName: 当前服务名称 (例如 "sweeper-service")
// level: 日志级别 (debug, info, warn, error)
func Init(serviceName string, level string) {
	InitWithFile(serviceName, level, "")
}

// InitWithFile 初始化日志组件，logFile 为空时写 logs/{serviceName}.log
func InitWithFile(serviceName string, level string, logFile string) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.MessageKey = "msg"

	writeSyncers := []zapcore.WriteSyncer{
		zapcore.AddSync(os.Stdout),
	}

	if logFile == "" {
		logFile = filepath.Join("logs", serviceName+".log")
	}
	// 文件写不了就只打控制台，不影响启动
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err == nil {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			writeSyncers = append(writeSyncers, zapcore.AddSync(file))
		}
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(writeSyncers...),
		zapLevel,
	)

	// AddCallerSkip(1): 跳过本包的封装函数，行号指向调用方
	Log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).
		With(zap.String("service", serviceName))
}

// WithCycle 把 cycle_id 放进 ctx，本轮所有日志都会带上
func WithCycle(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, CycleIdKey, cycleID)
}

// Info 打印 Info 级别日志
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Info(msg, withContext(ctx, fields)...)
}

// Error 打印 Error 级别日志
func Error(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Error(msg, withContext(ctx, fields)...)
}

// Warn 打印 Warn 级别日志
func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Warn(msg, withContext(ctx, fields)...)
}

// Debug 打印 Debug 级别日志
func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Debug(msg, withContext(ctx, fields)...)
}

// Fatal 打印 Fatal 级别日志 (会调用 os.Exit)
func Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Fatal(msg, withContext(ctx, fields)...)
}

// withContext 从 ctx 中提取 trace/request/cycle id 追加到 fields
func withContext(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}

	traceID, _ := ctx.Value(TraceIdKey).(string)
	if traceID == "" {
		// 没有显式透传时，用 otel span 的 trace id
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
	}
	if traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if rid, ok := ctx.Value(RequestIdKey).(string); ok && rid != "" {
		fields = append(fields, zap.String("request_id", rid))
	}
	if cid, ok := ctx.Value(CycleIdKey).(string); ok && cid != "" {
		fields = append(fields, zap.String("cycle_id", cid))
	}
	return fields
}

// Sync 刷新缓冲区 (建议在 main 函数 defer 中调用)
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
