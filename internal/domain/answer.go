package domain

// StrategyFailed is the strategy reported when no rung satisfied the oracle.
const StrategyFailed = "failed"

// FailureAnswer is returned verbatim when a session ends without an answer.
const FailureAnswer = "I'm sorry, I couldn't find enough reliable information to answer that question. " +
	"Try rephrasing it or asking about a more specific topic."

// Answer is the outcome of one question session.
type Answer struct {
	SessionID   string `json:"session_id"`
	Text        string `json:"answer"`
	Strategy    string `json:"strategy"`
	TokensUsed  int    `json:"tokens_used"`
	Attempts    int    `json:"attempts"`
	Enrichments int    `json:"enrichments"`
}

// Failed reports whether the session ended in the terminal failure state.
func (a *Answer) Failed() bool {
	return a.Strategy == StrategyFailed
}
