package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/supervisor.txt
	supervisorRaw string

	//go:embed template/research.txt
	researchRaw string

	//go:embed template/kpi.txt
	kpiRaw string

	//go:embed template/interview.txt
	interviewRaw string

	//go:embed template/feedback.txt
	feedbackRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Supervisor string
	Research   string
	KPI        string
	Interview  string
	Feedback   string
}

// LoadPromptSet returns the embedded prompts, trimmed. The templates are
// rendered as FString system messages, so literal braces inside them are
// doubled ({{ and }}).
func LoadPromptSet() PromptSet {
	return PromptSet{
		Supervisor: strings.TrimSpace(supervisorRaw),
		Research:   strings.TrimSpace(researchRaw),
		KPI:        strings.TrimSpace(kpiRaw),
		Interview:  strings.TrimSpace(interviewRaw),
		Feedback:   strings.TrimSpace(feedbackRaw),
	}
}
