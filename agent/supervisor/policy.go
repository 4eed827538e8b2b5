package supervisor

import "strings"

var closureSignals = []string{
	"thanks",
	"thank you",
	"that's all",
	"that is all",
	"bye",
	"goodbye",
	"we're done",
	"i'm done",
}

var finishSignals = []string{
	"finish the interview",
	"wrap up",
	"end the interview",
	"stop the interview",
	"i'm done answering",
}

// isClosureMessage reports whether the user's latest message signals
// satisfaction/closure of the whole session.
func isClosureMessage(text string) bool {
	return containsAny(text, closureSignals)
}

// wantsToFinish reports whether the user asked to end the questioning phase.
func wantsToFinish(text string) bool {
	return containsAny(text, finishSignals)
}

func containsAny(text string, signals []string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	for _, s := range signals {
		if strings.Contains(t, s) {
			return true
		}
	}
	return false
}
