package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"unicode/utf8"

	"postapp/internal/models"
)

// ErrMalformedBody is returned when a request body is not a JSON object.
var ErrMalformedBody = errors.New("request body must be a JSON object")

// Payload is a raw JSON object keyed by field name. Keeping values raw lets the
// rules tell an absent field from an explicit null.
type Payload map[string]json.RawMessage

// ParsePayload decodes body into a Payload. An empty body is an empty object.
func ParsePayload(body []byte) (Payload, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Payload{}, nil
	}
	if body[0] != '{' {
		return nil, ErrMalformedBody
	}
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, ErrMalformedBody
	}
	if p == nil {
		p = Payload{}
	}
	return p, nil
}

func (p Payload) has(field string) bool {
	_, ok := p[field]
	return ok
}

func (p Payload) isNull(field string) bool {
	raw, ok := p[field]
	return ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (p Payload) str(field string) (string, bool) {
	raw, ok := p[field]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (p Payload) boolean(field string) (bool, bool) {
	raw, ok := p[field]
	if !ok {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, false
	}
	return b, true
}

// violations accumulates field errors in the order rules run.
type violations []models.FieldError

func (v *violations) add(field, message string) {
	*v = append(*v, models.FieldError{Field: field, Message: message})
}

// Err returns nil when no rule failed.
func (v violations) Err() error {
	if len(v) == 0 {
		return nil
	}
	return models.NewValidationError("", v...)
}

// ValidURL reports whether raw is an absolute http(s) URL with a host.
func ValidURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
