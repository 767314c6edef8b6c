// Package model defines domain entities for the application.
package model

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxFieldLength is the longest accepted value for any user attribute.
const MaxFieldLength = 255

// User is the single entity served by the API.
// ID is assigned by the store on first insert and never changes afterwards.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	State     string `json:"state"`
}

// Clone returns a copy that does not share memory with u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Equal reports whether both users carry the same id and attributes.
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	return *u == *other
}

// FieldErrors maps a JSON field name to the reason it was rejected.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, fe[k]))
	}
	return "invalid user: " + strings.Join(parts, "; ")
}

// Validate checks the attributes a client must supply. It returns nil when
// the user is acceptable. The id is not checked.
func (u *User) Validate() FieldErrors {
	errs := FieldErrors{}
	checkField(errs, "firstName", u.FirstName)
	checkField(errs, "lastName", u.LastName)
	checkField(errs, "state", u.State)
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func checkField(errs FieldErrors, name, value string) {
	switch {
	case strings.TrimSpace(value) == "":
		errs[name] = "must not be blank"
	case utf8.RuneCountInString(value) > MaxFieldLength:
		errs[name] = fmt.Sprintf("must be at most %d characters", MaxFieldLength)
	}
}
