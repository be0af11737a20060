// Package jsonrepair parses the JSON payload an LLM attaches to a tool call,
// tolerating the malformed shapes models actually produce: truncated braces,
// trailing commas, raw newlines inside string literals, string fields broken
// up across several unquoted fragments, and escaped underscores. A strict
// decode is tried first; each repair strategy below is tried in order only
// if the previous ones failed, and the first successful decode wins.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoStrategyMatched is returned when every repair strategy failed to
// produce a valid JSON object.
var ErrNoStrategyMatched = errors.New("jsonrepair: no strategy could parse the input")

// Strategy attempts to turn raw into a decoded JSON object. It returns an
// error if this particular approach doesn't apply.
type Strategy func(raw string) (map[string]any, error)

// Repair tries each strategy in order against raw and returns the first
// successful decode.
func Repair(raw string) (map[string]any, error) {
	for _, strategy := range strategies {
		if v, err := strategy(raw); err == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoStrategyMatched, raw)
}

var strategies = []Strategy{
	strictParse,
	appendAndParse("}"),
	appendAndParse("}}"),
	appendAndParse(`"}}`),
	trimTrailingCommaAndParse("}"),
	trimTrailingCommaAndParse("}}"),
	trimTrailingCommaAndParse(`"}}`),
	func(raw string) (map[string]any, error) { return strictParse(EscapeNewlinesInStrings(raw)) },
	func(raw string) (map[string]any, error) { return strictParse(ConsolidateBrokenMessageField(raw)) },
	func(raw string) (map[string]any, error) { return ExtractFirstJSON(raw + "}}") },
	CleanAndInterpretSendMessage,
	func(raw string) (map[string]any, error) { return strictParse(NormalizeEscapedUnderscores(raw)) },
	func(raw string) (map[string]any, error) {
		return ExtractFirstJSON(NormalizeEscapedUnderscores(raw) + "}}")
	},
}

func strictParse(raw string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func appendAndParse(suffix string) Strategy {
	return func(raw string) (map[string]any, error) {
		return strictParse(raw + suffix)
	}
}

func trimTrailingCommaAndParse(suffix string) Strategy {
	return func(raw string) (map[string]any, error) {
		trimmed := strings.TrimRight(strings.TrimSpace(raw), ",")
		return strictParse(trimmed + suffix)
	}
}

// EscapeNewlinesInStrings replaces raw line feeds that occur inside a JSON
// string literal with the escaped "\n" sequence, leaving structural
// whitespace untouched.
func EscapeNewlinesInStrings(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	inString := false
	escape := false

	for _, ch := range raw {
		if ch == '"' && !escape {
			inString = !inString
		}
		if ch == '\\' && !escape {
			escape = true
		} else {
			escape = false
		}
		if ch == '\n' && inString {
			b.WriteString(`\n`)
		} else {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// ConsolidateBrokenMessageField handles a "message" field whose value was
// split across multiple bare, unquoted fragments by the model, by collapsing
// everything between the "message": marker and the object's closing braces
// into a single quoted string.
func ConsolidateBrokenMessageField(raw string) string {
	var out strings.Builder
	var messageContent strings.Builder
	inMessage := false
	inString := false
	escape := false
	tail := make([]byte, 0, 10)

	pushTail := func(ch byte) {
		tail = append(tail, ch)
		if len(tail) > 10 {
			tail = tail[len(tail)-10:]
		}
	}

	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case ch == '"' && !escape:
			inString = !inString
			if !inMessage {
				out.WriteByte(ch)
				pushTail(ch)
			}
		case ch == '\\' && !escape:
			escape = true
			out.WriteByte(ch)
			pushTail(ch)
		default:
			if escape {
				escape = false
			}
			if inMessage {
				if ch == '}' {
					out.WriteByte('"')
					out.WriteString(strings.ReplaceAll(messageContent.String(), "\n", " "))
					out.WriteByte('"')
					out.WriteByte(ch)
					inMessage = false
				} else if inString || isAlnumSpaceOrPunct(ch) {
					messageContent.WriteByte(ch)
				}
			} else {
				out.WriteByte(ch)
				pushTail(ch)
				if strings.Contains(string(tail), `"message":`) {
					inMessage = true
					messageContent.Reset()
				}
			}
		}
	}
	return out.String()
}

func isAlnumSpaceOrPunct(ch byte) bool {
	switch {
	case ch >= '0' && ch <= '9', ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z':
		return true
	case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
		return true
	case strings.ContainsRune(".',;:!", rune(ch)):
		return true
	}
	return false
}

// ExtractFirstJSON scans raw for the first balanced-brace `{...}` substring
// and decodes it, handling the case of two JSON objects emitted back to
// back.
func ExtractFirstJSON(raw string) (map[string]any, error) {
	depth := 0
	start := -1
	for i, ch := range raw {
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				return strictParse(raw[start : i+1])
			}
		}
	}
	return nil, errors.New("jsonrepair: no balanced JSON object found")
}

// NormalizeEscapedUnderscores undoes a model's habit of escaping underscores
// in field/function names, e.g. send\_message -> send_message.
func NormalizeEscapedUnderscores(raw string) string {
	return strings.ReplaceAll(raw, `\_`, "_")
}

var (
	sendMessageFunctionRe = regexp.MustCompile(`"function":\s*"send_message"`)
	innerThoughtsRe       = regexp.MustCompile(`"inner_thoughts":\s*"([^"]+)"`)
	sendMessageContentRe  = regexp.MustCompile(`"message":\s*"([^"]+)"`)
	nonASCIIRe            = regexp.MustCompile(`[^\x00-\x7F]+`)
)

// PermissiveDecode is the secondary decoder applied to raw tool-argument
// strings after the ordered strategies fail. It tolerates single-quoted
// strings, bare control characters inside literals, and trailing garbage
// after the first complete object.
func PermissiveDecode(raw string) (map[string]any, error) {
	normalized := normalizeQuotes(raw)
	normalized = EscapeNewlinesInStrings(normalized)

	dec := json.NewDecoder(strings.NewReader(normalized))
	var out map[string]any
	if err := dec.Decode(&out); err == nil {
		return out, nil
	}
	if v, err := ExtractFirstJSON(normalized); err == nil {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoStrategyMatched, raw)
}

// normalizeQuotes rewrites single-quoted JSON strings to double-quoted ones,
// leaving apostrophes inside double-quoted strings alone.
func normalizeQuotes(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	inDouble := false
	inSingle := false
	escape := false

	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case escape:
			escape = false
			b.WriteByte(ch)
		case ch == '\\':
			escape = true
			b.WriteByte(ch)
		case ch == '"' && !inSingle:
			inDouble = !inDouble
			b.WriteByte(ch)
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
			b.WriteByte('"')
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// CleanAndInterpretSendMessage is the last-resort strategy: it strips
// non-ASCII characters and regex-matches the send_message shape directly out
// of otherwise unparseable output.
func CleanAndInterpretSendMessage(raw string) (map[string]any, error) {
	cleaned := nonASCIIRe.ReplaceAllString(raw, "")

	if !sendMessageFunctionRe.MatchString(cleaned) {
		return nil, errors.New("jsonrepair: no send_message function marker found")
	}
	inner := innerThoughtsRe.FindStringSubmatch(cleaned)
	msg := sendMessageContentRe.FindStringSubmatch(cleaned)
	if inner == nil || msg == nil {
		return nil, errors.New("jsonrepair: couldn't extract send_message pattern")
	}

	return map[string]any{
		"function": "send_message",
		"params": map[string]any{
			"inner_thoughts": inner[1],
			"message":        msg[1],
		},
	}, nil
}
