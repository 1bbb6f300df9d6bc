package tgui

import (
	"strings"
)

// Data formats callback data as "scope:action[:payload]".
func Data(scope, action, payload string) string {
	scope = strings.TrimSpace(scope)
	action = strings.TrimSpace(action)
	s := scope + ":" + action
	if payload != "" {
		s += ":" + payload
	}
	if len(s) > MaxCallbackDataLen {
		return s[:MaxCallbackDataLen]
	}
	return s
}

// ParseData splits callback data produced by Data. Telebot may prefix data
// with "\f" for unique buttons; that prefix is stripped.
func ParseData(data string) (scope, action, payload string, ok bool) {
	data = strings.TrimPrefix(strings.TrimSpace(data), "\f")
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	if len(parts) == 3 {
		payload = parts[2]
	}
	return parts[0], parts[1], payload, true
}
