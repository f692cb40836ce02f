package logger

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/alevsk/gwbundle/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer

	saved := log.Logger
	savedLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = saved
		zerolog.SetGlobalLevel(savedLevel)
	})

	tests := []struct {
		name     string
		debug    bool
		logLevel string
		logFunc  func() *zerolog.Event
		message  string
		level    string
		wantLog  bool
	}{
		{
			name:    "debug log with debug mode on",
			debug:   true,
			logFunc: Debug,
			message: "debug message",
			level:   "debug",
			wantLog: true,
		},
		{
			name:    "debug log with debug mode off",
			logFunc: Debug,
			message: "debug message",
			level:   "debug",
			wantLog: false,
		},
		{
			name:     "debug log with debug log level",
			logLevel: "debug",
			logFunc:  Debug,
			message:  "debug message",
			level:    "debug",
			wantLog:  true,
		},
		{
			name:    "info log",
			logFunc: Info,
			message: "info message",
			level:   "info",
			wantLog: true,
		},
		{
			name:     "info log with warn log level",
			logLevel: "warn",
			logFunc:  Info,
			message:  "info message",
			level:    "info",
			wantLog:  false,
		},
		{
			name:     "warn log with unknown log level",
			logLevel: "chatty",
			logFunc:  Warn,
			message:  "warn message",
			level:    "warn",
			wantLog:  true,
		},
		{
			name:    "error log",
			logFunc: Error,
			message: "error message",
			level:   "error",
			wantLog: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			log.Logger = zerolog.New(&buf)

			cfg := &config.Config{Debug: tt.debug}
			cfg.Server.LogLevel = tt.logLevel
			Init(cfg)

			tt.logFunc().Msg(tt.message)

			output := strings.TrimSpace(buf.String())
			if !tt.wantLog {
				assert.Empty(t, output)
				return
			}
			assert.Contains(t, output, fmt.Sprintf(`"level":"%s"`, tt.level))
			assert.Contains(t, output, fmt.Sprintf(`"message":"%s"`, tt.message))
		})
	}
}
