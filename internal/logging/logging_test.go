package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetupLevelAndFormat(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	Setup(&buf, "warn", false)
	log.Info().Str("module", "test").Msg("hidden")
	log.Warn().Str("module", "test").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(out, `"module":"test"`) || !strings.Contains(out, "shown") {
		t.Errorf("json output = %q", out)
	}

	Setup(&buf, "bogus", false)
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info fallback", zerolog.GlobalLevel())
	}
}
