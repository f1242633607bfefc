package game

import "fmt"

// Result statuses understood by nodes and the UI.
const (
	StatusOK    = "ok"
	StatusError = "error"
	StatusRetry = "retry"
)

// ReasonWrongMode tags results of operations invoked outside their game mode.
const ReasonWrongMode = "wrong_mode"

// Result is the structured outcome of a coordinator operation. Expected
// failures (wrong mode, rejected config, self-healed reports) are results,
// not errors.
type Result struct {
	Status string         `json:"status"`
	Msg    string         `json:"msg,omitempty"`
	Reason string         `json:"reason,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

func okResult(msg string) Result {
	return Result{Status: StatusOK, Msg: msg}
}

func errorResult(msg string) Result {
	return Result{Status: StatusError, Msg: msg}
}

func retryResult(msg string) Result {
	return Result{Status: StatusRetry, Msg: msg}
}

func wrongMode(want Mode) Result {
	return Result{
		Status: StatusError,
		Reason: ReasonWrongMode,
		Msg:    fmt.Sprintf("expected %s mode", want),
	}
}
