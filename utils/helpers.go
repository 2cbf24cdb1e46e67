package utils

import (
	"strings"

	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"
)

const UnknownCaller = "unknown"

func ExtractCallerPhone(headers []sip.Header) string {
	for _, header := range headers {
		if header.Name() == "From" {
			return callerFromValue(header.Value())
		}
	}
	return UnknownCaller
}

// callerFromValue pulls the user part out of a From header value such as
// `"Alice" <sip:+15550100@pbx.local>;tag=abc`.
func callerFromValue(from string) string {
	start := strings.Index(from, "<")
	end := strings.LastIndex(from, ">")
	if start >= 0 && end > start {
		from = from[start+1 : end]
	}
	after, ok := strings.CutPrefix(from, "sip:")
	if !ok {
		after, ok = strings.CutPrefix(from, "sips:")
	}
	if !ok {
		return UnknownCaller
	}
	user, _, _ := strings.Cut(after, "@")
	user, _, _ = strings.Cut(user, ";")
	if user == "" {
		return UnknownCaller
	}
	return user
}

func GenerateCallID() string {
	return "call_" + uuid.NewString()
}

// MaskNumber hides all but the last four characters of a caller identifier.
func MaskNumber(number string) string {
	if len(number) <= 4 {
		return strings.Repeat("*", len(number))
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}

// CallerLabel returns the caller ID as it may appear in logs.
func CallerLabel(callerID string, logNumbers bool) string {
	if logNumbers || callerID == UnknownCaller {
		return callerID
	}
	return MaskNumber(callerID)
}
