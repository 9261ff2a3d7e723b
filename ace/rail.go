package ace

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/sirupsen/logrus"
)

const (
	// Trace id key propagated along the Rail's context.
	XTraceId = "x-trace-id"
)

// Rail carries trace information along the execution.
//
// Rail is a small value type, pass it around by value.
type Rail struct {
	ctx context.Context
}

// Create empty Rail with a fresh trace id.
func EmptyRail() Rail {
	return NewRail(context.Background())
}

// Create Rail from context, generating a trace id if the context doesn't carry one.
func NewRail(ctx context.Context) Rail {
	if v, ok := ctx.Value(railKey(XTraceId)).(string); !ok || v == "" {
		ctx = context.WithValue(ctx, railKey(XTraceId), genTraceId())
	}
	return Rail{ctx: ctx}
}

type railKey string

func genTraceId() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

func (r Rail) Context() context.Context {
	return r.ctx
}

func (r Rail) Done() <-chan struct{} {
	return r.ctx.Done()
}

func (r Rail) IsDone() bool {
	return r.ctx.Err() != nil
}

func (r Rail) TraceId() string {
	if v, ok := r.ctx.Value(railKey(XTraceId)).(string); ok {
		return v
	}
	return ""
}

// Create a child Rail that is cancelled by the returned func.
func (r Rail) WithCancel() (Rail, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.ctx)
	return Rail{ctx: ctx}, cancel
}

func (r Rail) entry() *logrus.Entry {
	return logger.WithFields(logrus.Fields{XTraceId: r.TraceId(), callerField: getCallerFn()})
}

func (r Rail) Tracef(format string, args ...interface{}) {
	if !logger.IsLevelEnabled(logrus.TraceLevel) {
		return
	}
	r.entry().Tracef(format, args...)
}

func (r Rail) Debugf(format string, args ...interface{}) {
	if !logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	r.entry().Debugf(format, args...)
}

func (r Rail) Infof(format string, args ...interface{}) {
	if !logger.IsLevelEnabled(logrus.InfoLevel) {
		return
	}
	r.entry().Infof(format, args...)
}

func (r Rail) Warnf(format string, args ...interface{}) {
	r.entry().Warnf(format, args...)
}

func (r Rail) Errorf(format string, args ...interface{}) {
	r.entry().Errorf(format, args...)
}

func (r Rail) Debug(args ...interface{}) {
	if !logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	r.entry().Debug(args...)
}

func (r Rail) Info(args ...interface{}) {
	if !logger.IsLevelEnabled(logrus.InfoLevel) {
		return
	}
	r.entry().Info(args...)
}

func (r Rail) Warn(args ...interface{}) {
	r.entry().Warn(args...)
}

func (r Rail) Error(args ...interface{}) {
	r.entry().Error(args...)
}
