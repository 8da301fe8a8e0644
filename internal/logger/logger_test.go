package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewFallsBackToInfo(t *testing.T) {
	log := New("nonsense", false, &bytes.Buffer{})
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level, got %s", log.GetLevel())
	}
}

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New("debug", false, &buf), "health")
	log.Info().Msg("probe")

	out := buf.String()
	if !strings.Contains(out, `"component":"health"`) {
		t.Errorf("expected component field in %s", out)
	}
	if !strings.Contains(out, `"message":"probe"`) {
		t.Errorf("expected message in %s", out)
	}
}
