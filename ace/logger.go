package ace

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

const (
	callerField = "caller"

	traceIdWidth = 16
	fnWidth      = 30
	levelWidth   = 5
)

var (
	logger = logrus.New()

	logBufPool = sync.Pool{
		New: func() any {
			return &bytes.Buffer{}
		},
	}
)

func init() {
	logger.SetReportCaller(false) // caller is resolved manually by Rail
	logger.SetFormatter(new(ctFormatter))
	logger.SetOutput(os.Stdout)
}

type ctFormatter struct {
}

func (c *ctFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var fn string
	if caller, ok := entry.Data[callerField].(string); ok {
		fn = caller
	}

	var traceId string
	if v, ok := entry.Data[XTraceId].(string); ok {
		traceId = v
	}

	levelstr := toLevelStr(entry.Level)

	b := logBufPool.Get().(*bytes.Buffer)
	defer putLogBuf(b)

	b.WriteString(entry.Time.Format("2006-01-02 15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(levelstr)
	if len(levelstr) < levelWidth {
		b.WriteString(spaces(levelWidth - len(levelstr)))
	}

	b.WriteString(" [")
	b.WriteString(traceId)
	if len(traceId) < traceIdWidth {
		b.WriteString(spaces(traceIdWidth - len(traceId)))
	}
	b.WriteString("]  ")

	b.WriteString(fn)
	if len(fn) < fnWidth {
		b.WriteString(spaces(fnWidth - len(fn)))
	}

	b.WriteString(" : ")
	b.WriteString(entry.Message)
	b.WriteByte('\n')

	cp := make([]byte, b.Len())
	copy(cp, b.Bytes())
	return cp, nil
}

func putLogBuf(b *bytes.Buffer) {
	b.Reset()
	logBufPool.Put(b)
}

func toLevelStr(level logrus.Level) string {
	switch level {
	case logrus.TraceLevel:
		return "TRACE"
	case logrus.DebugLevel:
		return "DEBUG"
	case logrus.InfoLevel:
		return "INFO"
	case logrus.WarnLevel:
		return "WARN"
	case logrus.ErrorLevel:
		return "ERROR"
	case logrus.FatalLevel:
		return "FATAL"
	case logrus.PanicLevel:
		return "PANIC"
	}
	return "UNKNOWN"
}

func spaces(n int) string {
	return strings.Repeat(" ", n)
}

// Set log level, one of: trace, debug, info, warn, error, fatal, panic.
//
// Unrecognized value defaults to info.
func SetLogLevel(level string) {
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
}

// Redirect log output to a rolling file (lumberjack-backed), as well as stdout.
func ConfigureFileLogging(filename string) {
	rolling := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    100, // megabytes
		MaxAge:     28,  // days
		MaxBackups: 10,
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, rolling))
}

func getCallerFn() string {
	pc, _, line, ok := runtime.Caller(3)
	if !ok {
		return ""
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return ""
	}
	name := fn.Name()
	if i := strings.LastIndexByte(name, '/'); i > -1 {
		name = name[i+1:]
	}
	return fmt.Sprintf("%v:%v", name, line)
}
