package loggingx

import (
	"fmt"
	"strings"

	"github.com/dogmatiq/dodeca/logging"
)

// WithPrefix returns a logger that prepends a prefix, such as a component
// name, to each message written to target.
//
// The prefix is built from f and v as per fmt.Sprintf(). If target is nil,
// logging.DefaultLogger is used.
func WithPrefix(target logging.Logger, f string, v ...interface{}) logging.Logger {
	if target == nil {
		target = logging.DefaultLogger
	}

	p := fmt.Sprintf(f, v...)

	return prefixed{
		target:  target,
		literal: p,
		escaped: strings.ReplaceAll(p, "%", "%%"),
	}
}

// prefixed is a logging.Logger that adds a prefix to each message. The prefix
// is escaped before it is combined with a format string.
type prefixed struct {
	target           logging.Logger
	literal, escaped string
}

func (l prefixed) Log(f string, v ...interface{})   { l.target.Log(l.escaped+f, v...) }
func (l prefixed) Debug(f string, v ...interface{}) { l.target.Debug(l.escaped+f, v...) }
func (l prefixed) LogString(s string)               { l.target.LogString(l.literal + s) }
func (l prefixed) DebugString(s string)             { l.target.DebugString(l.literal + s) }
func (l prefixed) IsDebug() bool                    { return l.target.IsDebug() }
