package safe

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
	"sweepbridge.com/pkg/logger"
)

// PanicError 是被 recover 下来的 panic
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Go 安全启动协程
func Go(fn func()) {
	go func() {
		defer recoverAndLog(context.Background())
		fn()
	}()
}

// GoCtx 安全启动携带 context 的协程，便于在日志中保留请求链路信息。
func GoCtx(ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		defer recoverAndLog(ctx)
		fn(ctx)
	}()
}

// Run 同步执行 fn，panic 会被转换成 *PanicError 返回，调用方可以把它当普通错误处理
func Run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			logger.Error(ctx, "🚨 TASK PANIC RECOVERED",
				zap.Any("panic", r),
				zap.String("stack", stack),
			)
			err = &PanicError{Value: r, Stack: stack}
		}
	}()
	return fn(ctx)
}

func recoverAndLog(ctx context.Context) {
	if r := recover(); r != nil {
		logger.Error(ctx, "🚨 GOROUTINE PANIC RECOVERED",
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())),
		)
	}
}
