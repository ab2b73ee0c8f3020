package store

import (
	"fmt"
	"strings"
)

// ValidMethods is the HTTP method allow-list enforced on every persist.
var ValidMethods = map[string]bool{
	"GET":     true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"PATCH":   true,
	"HEAD":    true,
	"OPTIONS": true,
}

// NormalizeMethod upper-cases and checks the method against the allow-list.
func NormalizeMethod(method string) (string, error) {
	if method == "" {
		method = "GET"
	}
	m := strings.ToUpper(strings.TrimSpace(method))
	if !ValidMethods[m] {
		return "", &ValidationError{Msg: fmt.Sprintf("Invalid HTTP method: %s", method)}
	}
	return m, nil
}

// ValidateURL enforces the http/https scheme constraint.
func ValidateURL(field, raw string) error {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return &ValidationError{Msg: fmt.Sprintf("%s must start with http:// or https://", field)}
	}
	return nil
}

// ValidateTask checks a task draft before insertion: method allow-list and
// URL schemes. Cron syntax is validated separately by the registry.
func ValidateTask(t *RequestTask) error {
	m, err := NormalizeMethod(t.Method)
	if err != nil {
		return err
	}
	t.Method = m

	if t.RequestURL == "" {
		return &ValidationError{Msg: "request_url is required"}
	}
	if err := ValidateURL("request_url", t.RequestURL); err != nil {
		return err
	}
	if t.CallbackURL != "" {
		if err := ValidateURL("callback_url", t.CallbackURL); err != nil {
			return err
		}
	}
	return nil
}
