// Package heartbeat builds the system-authored messages that re-enter the
// step engine without a human turn: heartbeats, token-limit warnings, login
// events, and the packaged envelopes for user input, tool returns, and
// compaction summaries. Every payload is a JSON object carrying a "time"
// field so the model can reason about when events happened.
package heartbeat

import (
	"encoding/json"
	"strconv"
	"time"
)

// NonUserMessagePrefix marks system-authored user-role messages so the model
// knows they did not come from the human.
const NonUserMessagePrefix = "[This is an automated system message hidden from the user] "

const (
	// RequestHeartbeatReason is the reason attached to a heartbeat chained
	// because the tool asked for one via request_heartbeat=true.
	RequestHeartbeatReason = NonUserMessagePrefix + "Function called using request_heartbeat=true, returning control"

	// FunctionFailedReason is the reason attached to a heartbeat chained
	// because the tool call failed.
	FunctionFailedReason = NonUserMessagePrefix + "Function call failed, returning control"

	// AutomatedTimerReason is the reason attached to scheduler-driven
	// heartbeats.
	AutomatedTimerReason = "Automated timer"
)

// TokenLimitWarningText is the body of the one-shot memory-pressure alert
// delivered when a step's token usage first crosses the warning fraction of
// the context window.
const TokenLimitWarningText = NonUserMessagePrefix +
	"The conversation history will soon reach its maximum length and be trimmed. " +
	"Do NOT tell the user about this system alert, they should not know that the history is reaching max length. " +
	"If there is any important new information or general memories about you or the user that you would like to save, " +
	"you should save that information immediately by calling function core_memory_append, core_memory_replace, or archival_memory_insert."

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// PackageUserMessage wraps raw user input in the typed envelope the prompt
// format expects. Name is included only when non-empty.
func PackageUserMessage(text, name string, at time.Time) string {
	payload := map[string]string{
		"type":    "user_message",
		"message": text,
		"time":    timestamp(at),
	}
	if name != "" {
		payload["name"] = name
	}
	return mustJSON(payload)
}

// LoginEvent is the first user-role message of a fresh agent, letting the
// model know the user just connected.
func LoginEvent(lastLogin string, at time.Time) string {
	if lastLogin == "" {
		lastLogin = "Never (first login)"
	}
	return mustJSON(map[string]string{
		"type":       "login",
		"last_login": lastLogin,
		"time":       timestamp(at),
	})
}

// Heartbeat builds the user-role payload that re-enters the step engine to
// continue a chain.
func Heartbeat(reason string, at time.Time) string {
	return mustJSON(map[string]string{
		"type":   "heartbeat",
		"reason": reason,
		"time":   timestamp(at),
	})
}

// TokenLimitWarning builds the one-shot memory-pressure alert payload.
func TokenLimitWarning(at time.Time) string {
	return SystemAlert(TokenLimitWarningText, at)
}

// SystemAlert wraps host-injected system text in the alert envelope the
// model reads from user-role messages.
func SystemAlert(message string, at time.Time) string {
	return mustJSON(map[string]string{
		"type":    "system_alert",
		"message": message,
		"time":    timestamp(at),
	})
}

// PackageFunctionResponse wraps a tool's return (or error text) in the
// {status, message, time} envelope appended to the log as the tool-role
// message body.
func PackageFunctionResponse(ok bool, response string, at time.Time) string {
	status := "OK"
	if !ok {
		status = "Failed"
	}
	payload := map[string]any{
		"status":  status,
		"message": response,
		"time":    timestamp(at),
	}
	if response == "" {
		payload["message"] = nil
	}
	return mustJSON(payload)
}

// PackageSummarizeMessage builds the synthetic user-role message prepended to
// the log after compaction, carrying the summary and counts of what was
// hidden.
func PackageSummarizeMessage(summary string, summaryCount, hiddenCount, totalCount int, at time.Time) string {
	context := "Note: prior messages (" + strconv.Itoa(hiddenCount) + " of " + strconv.Itoa(totalCount) +
		" total messages) have been hidden from view due to conversation memory constraints.\n" +
		"The following is a summary of the previous " + strconv.Itoa(summaryCount) + " messages:\n " + summary
	return mustJSON(map[string]string{
		"type":    "system_alert",
		"message": context,
		"time":    timestamp(at),
	})
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// All payloads above are maps of strings; marshal cannot fail.
		panic(err)
	}
	return string(b)
}
