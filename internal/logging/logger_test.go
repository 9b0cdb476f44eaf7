package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		debug int
		want  logrus.Level
	}{
		{-1, logrus.InfoLevel},
		{0, logrus.InfoLevel},
		{1, logrus.DebugLevel},
		{2, logrus.TraceLevel},
		{5, logrus.TraceLevel},
	}
	for _, tt := range tests {
		if got := Level(tt.debug); got != tt.want {
			t.Errorf("Level(%d) = %v, want %v", tt.debug, got, tt.want)
		}
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livestatus.log")
	logger, closer := New(Options{Debug: 1, File: path})
	logger.WithField("thread", "main").Debug("socket ready")
	logger.Trace("not shown")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "socket ready") || !strings.Contains(content, "thread=main") {
		t.Errorf("unexpected log content: %s", content)
	}
	if strings.Contains(content, "not shown") {
		t.Error("trace message written at debug level 1")
	}
}
