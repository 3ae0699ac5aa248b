package badger

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// loggerAdapter routes badger's printf-style logging to a charm logger.
type loggerAdapter struct {
	l *log.Logger
}

func (a loggerAdapter) Errorf(format string, args ...any) {
	a.l.Error(msg(format, args))
}

func (a loggerAdapter) Warningf(format string, args ...any) {
	a.l.Warn(msg(format, args))
}

func (a loggerAdapter) Infof(format string, args ...any) {
	a.l.Info(msg(format, args))
}

func (a loggerAdapter) Debugf(format string, args ...any) {
	a.l.Debug(msg(format, args))
}

func msg(format string, args []any) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
