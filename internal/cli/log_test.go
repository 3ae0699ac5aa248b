package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{"info at info", log.InfoLevel, func(l *log.Logger) { l.Info("issued") }, true},
		{"debug at info", log.InfoLevel, func(l *log.Logger) { l.Debug("resolved layout") }, false},
		{"debug at debug", log.DebugLevel, func(l *log.Logger) { l.Debug("resolved layout") }, true},
		{"warn at fatal", log.FatalLevel, func(l *log.Logger) { l.Warn("asset degraded") }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.wantLog {
				t.Errorf("logged = %v, want %v", got, tt.wantLog)
			}
		})
	}
}

func TestNamed(t *testing.T) {
	var buf bytes.Buffer
	named(newLogger(&buf, log.InfoLevel), "store").Info("opened", "driver", "sqlite")
	out := buf.String()
	for _, want := range []string{"store", "opened", "driver=sqlite"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}

	if named(nil, "store") != nil {
		t.Error("named(nil) should stay nil")
	}
}

func TestProgressDone(t *testing.T) {
	var buf bytes.Buffer
	newProgress(newLogger(&buf, log.InfoLevel)).done("Generation finished", "number", "GC-000001")
	out := buf.String()
	for _, want := range []string{"Generation finished", "number=GC-000001", "elapsed="} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestLoggerFromContext(t *testing.T) {
	custom := newLogger(&bytes.Buffer{}, log.InfoLevel)
	tests := []struct {
		name string
		ctx  context.Context
		want *log.Logger
	}{
		{"attached", withLogger(context.Background(), custom), custom},
		{"missing", context.Background(), log.Default()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := loggerFromContext(tt.ctx); got != tt.want {
				t.Errorf("loggerFromContext = %p, want %p", got, tt.want)
			}
		})
	}
}
