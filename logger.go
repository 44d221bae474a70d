package gateway

import (
	"io"
	"os"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

var defLogger Logger = NewLogger(os.Stderr, glog.Info, "console")

func defaultLogger() Logger {
	return defLogger
}

// NewLogger builds a glog logger writing to w. format is one of "json",
// "pretty" or "console", anything else falls back to console. Errors
// logged at error level carry the go-errors attributes.
func NewLogger(w io.Writer, level, format string) *glog.BaseLogger {
	if w == nil {
		w = os.Stderr
	}

	opts := []glog.Option{
		glog.WithWriter(w),
		glog.WithLevel(level),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	}

	switch strings.ToLower(format) {
	case "json":
		opts = append(opts, glog.WithLoggerTypeJSON())
	case "pretty":
		opts = append(opts, glog.WithLoggerTypePretty())
	default:
		opts = append(opts, glog.WithLoggerTypeConsole())
	}

	return glog.NewLogger(opts...)
}
