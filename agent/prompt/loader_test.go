package prompt

import (
	"strings"
	"testing"
)

func TestLoadPromptSet(t *testing.T) {
	t.Parallel()

	set := LoadPromptSet()
	prompts := map[string]string{
		"supervisor": set.Supervisor,
		"research":   set.Research,
		"kpi":        set.KPI,
		"interview":  set.Interview,
		"feedback":   set.Feedback,
	}

	for name, p := range prompts {
		if strings.TrimSpace(p) == "" {
			t.Fatalf("%s prompt is empty", name)
		}
		if p != strings.TrimSpace(p) {
			t.Fatalf("%s prompt is not trimmed", name)
		}
	}

	// Every agent speaks JSON; the prompts must say so.
	for name, p := range prompts {
		if !strings.Contains(strings.ToLower(p), "json") {
			t.Fatalf("%s prompt does not constrain output to JSON", name)
		}
	}
}
