// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/usersapi/usersapi/internal/model"
)

// ErrMalformedBody is returned when the request body cannot be bound at all.
var ErrMalformedBody = errors.New("malformed JSON body")

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Field error messages.
const (
	MsgRequired     = "is required"
	MsgMustBeString = "must be a string"
	MsgMustBeInt    = "must be an integer"
	MsgUnknown      = "unknown field"
)

var requiredFields = []string{"firstName", "lastName", "state"}

// DecodeUser binds a body the lenient way: unknown fields are ignored and
// absent fields keep their zero value. Only bodies that cannot be bound
// to a user fail.
func DecodeUser(body io.Reader) (*model.User, error) {
	var user model.User
	if err := json.NewDecoder(body).Decode(&user); err != nil {
		return nil, wrapDecodeError(err)
	}
	return &user, nil
}

// DecodeValidatedUser binds and validates a body. The returned error is
// non-nil only when the body is not a single JSON object. Otherwise a
// non-nil FieldErrors lists every rejected field.
func DecodeValidatedUser(body io.Reader) (*model.User, model.FieldErrors, error) {
	dec := json.NewDecoder(body)

	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, wrapDecodeError(err)
	}
	if raw == nil {
		return nil, nil, fmt.Errorf("%w: body must be a JSON object", ErrMalformedBody)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%w: trailing data after object", ErrMalformedBody)
	}

	user := &model.User{}
	errs := model.FieldErrors{}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		switch key {
		case "id":
			if isNull(value) {
				continue
			}
			if err := json.Unmarshal(value, &user.ID); err != nil {
				errs[key] = MsgMustBeInt
			}
		case "firstName":
			bindString(errs, key, value, &user.FirstName)
		case "lastName":
			bindString(errs, key, value, &user.LastName)
		case "state":
			bindString(errs, key, value, &user.State)
		default:
			errs[key] = MsgUnknown
		}
	}

	for _, field := range requiredFields {
		if _, ok := raw[field]; !ok {
			errs[field] = MsgRequired
		}
	}

	for field, msg := range user.Validate() {
		if _, seen := errs[field]; !seen {
			errs[field] = msg
		}
	}

	if len(errs) > 0 {
		return nil, errs, nil
	}
	return user, nil, nil
}

func bindString(errs model.FieldErrors, key string, value json.RawMessage, dst *string) {
	if isNull(value) {
		errs[key] = MsgRequired
		return
	}
	if err := json.Unmarshal(value, dst); err != nil {
		errs[key] = MsgMustBeString
	}
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

// wrapDecodeError keeps body-size errors intact so callers can map them
// to 413.
func wrapDecodeError(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedBody, err)
}
