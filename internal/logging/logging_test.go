package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		verbose   bool
		wantDebug bool
		wantInfo  bool
	}{
		{name: "default warn", level: "", wantDebug: false, wantInfo: false},
		{name: "info", level: "info", wantInfo: true},
		{name: "verbose forces debug", level: "error", verbose: true, wantDebug: true, wantInfo: true},
		{name: "bad level falls back", level: "chatty", wantDebug: false, wantInfo: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(&buf, tt.level, tt.verbose)
			log.Debug("d-line")
			log.Info("i-line")
			log.Warn("w-line", "file", "Gemfile")

			out := buf.String()
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("d-line")))
			assert.Equal(t, tt.wantInfo, bytes.Contains(buf.Bytes(), []byte("i-line")))
			assert.Contains(t, out, "level=WARN msg=w-line file=Gemfile")
		})
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error("dropped")
}
