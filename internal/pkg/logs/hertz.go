package logs

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

// hlogBridge routes the health server's internal hertz logging into the
// macmate logger.
type hlogBridge struct {
	l Logger
}

var _ hlog.FullLogger = (*hlogBridge)(nil)

func NewHlogLogger(l Logger) hlog.FullLogger {
	return &hlogBridge{l: l}
}

func (b *hlogBridge) Trace(v ...interface{})  { b.l.Debug("[hertz] %s", fmt.Sprint(v...)) }
func (b *hlogBridge) Debug(v ...interface{})  { b.l.Debug("[hertz] %s", fmt.Sprint(v...)) }
func (b *hlogBridge) Info(v ...interface{})   { b.l.Info("[hertz] %s", fmt.Sprint(v...)) }
func (b *hlogBridge) Notice(v ...interface{}) { b.l.Info("[hertz] %s", fmt.Sprint(v...)) }
func (b *hlogBridge) Warn(v ...interface{})   { b.l.Warn("[hertz] %s", fmt.Sprint(v...)) }
func (b *hlogBridge) Error(v ...interface{})  { b.l.Error("[hertz] %s", fmt.Sprint(v...)) }
func (b *hlogBridge) Fatal(v ...interface{})  { b.l.Fatal("[hertz] %s", fmt.Sprint(v...)) }

func (b *hlogBridge) Tracef(format string, v ...interface{})  { b.l.Debug("[hertz] "+format, v...) }
func (b *hlogBridge) Debugf(format string, v ...interface{})  { b.l.Debug("[hertz] "+format, v...) }
func (b *hlogBridge) Infof(format string, v ...interface{})   { b.l.Info("[hertz] "+format, v...) }
func (b *hlogBridge) Noticef(format string, v ...interface{}) { b.l.Info("[hertz] "+format, v...) }
func (b *hlogBridge) Warnf(format string, v ...interface{})   { b.l.Warn("[hertz] "+format, v...) }
func (b *hlogBridge) Errorf(format string, v ...interface{})  { b.l.Error("[hertz] "+format, v...) }
func (b *hlogBridge) Fatalf(format string, v ...interface{})  { b.l.Fatal("[hertz] "+format, v...) }

func (b *hlogBridge) CtxTracef(ctx context.Context, format string, v ...interface{}) {
	b.l.CtxDebug(ctx, "[hertz] "+format, v...)
}

func (b *hlogBridge) CtxDebugf(ctx context.Context, format string, v ...interface{}) {
	b.l.CtxDebug(ctx, "[hertz] "+format, v...)
}

func (b *hlogBridge) CtxInfof(ctx context.Context, format string, v ...interface{}) {
	b.l.CtxInfo(ctx, "[hertz] "+format, v...)
}

func (b *hlogBridge) CtxNoticef(ctx context.Context, format string, v ...interface{}) {
	b.l.CtxInfo(ctx, "[hertz] "+format, v...)
}

func (b *hlogBridge) CtxWarnf(ctx context.Context, format string, v ...interface{}) {
	b.l.CtxWarn(ctx, "[hertz] "+format, v...)
}

func (b *hlogBridge) CtxErrorf(ctx context.Context, format string, v ...interface{}) {
	b.l.CtxError(ctx, "[hertz] "+format, v...)
}

func (b *hlogBridge) CtxFatalf(ctx context.Context, format string, v ...interface{}) {
	b.l.CtxFatal(ctx, "[hertz] "+format, v...)
}

func (b *hlogBridge) SetLevel(level hlog.Level) {
	switch level {
	case hlog.LevelTrace, hlog.LevelDebug:
		b.l.SetLevel(DebugLevel)
	case hlog.LevelInfo, hlog.LevelNotice:
		b.l.SetLevel(InfoLevel)
	case hlog.LevelWarn:
		b.l.SetLevel(WarnLevel)
	case hlog.LevelError:
		b.l.SetLevel(ErrorLevel)
	case hlog.LevelFatal:
		b.l.SetLevel(FatalLevel)
	}
}

// SetOutput is ignored; output follows logs.Options.
func (b *hlogBridge) SetOutput(_ io.Writer) {}
