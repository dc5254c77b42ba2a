package apimanager

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultDebugMessage is the body delivered by DebugSuccessful("").
const DefaultDebugMessage = `{"result":"0000","message":"success"}`

// DebugResult is an outcome injected into a debug call instead of a network
// exchange.
type DebugResult struct {
	outcome Outcome
	body    string
	message string
}

// DebugSuccessful delivers Successful with msg decoded as the response body.
func DebugSuccessful(msg string) DebugResult {
	if msg == "" {
		msg = DefaultDebugMessage
	}
	return DebugResult{outcome: OutcomeSuccessful, body: msg}
}

// DebugFail delivers Fail with a {"result":code,"message":message} body.
func DebugFail(code, message string) DebugResult {
	if code == "" {
		code = "0000"
	}
	body, _ := json.Marshal(struct {
		Result  string `json:"result"`
		Message string `json:"message"`
	}{Result: code, Message: message})
	return DebugResult{outcome: OutcomeFail, body: string(body)}
}

// DebugNetworkError delivers NetworkError.
func DebugNetworkError() DebugResult {
	return DebugResult{outcome: OutcomeNetworkError}
}

// DebugOtherError delivers OtherError with message.
func DebugOtherError(message string) DebugResult {
	return DebugResult{outcome: OutcomeOtherError, message: message}
}

// Outcome returns the outcome the result delivers.
func (d DebugResult) Outcome() Outcome {
	if d.outcome == OutcomeNone {
		return OutcomeSuccessful
	}
	return d.outcome
}

// Body returns the response body text, if any.
func (d DebugResult) Body() string {
	if d.outcome == OutcomeNone {
		return DefaultDebugMessage
	}
	return d.body
}

func (d DebugResult) String() string {
	switch d.Outcome() {
	case OutcomeSuccessful, OutcomeFail:
		return fmt.Sprintf("%s(%s)", d.Outcome(), d.Body())
	case OutcomeOtherError:
		return fmt.Sprintf("%s(%s)", d.Outcome(), d.message)
	default:
		return d.Outcome().String()
	}
}

// errDebugNetwork is handed to NetworkError by debug calls.
var errDebugNetwork = errors.New("apimanager: injected network error")
