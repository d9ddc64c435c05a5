package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"reqdash/internal/service"
)

// RequestRef represents a parsed request reference.
type RequestRef struct {
	Num int    // 1-based position in the full list, 0 if ID is set
	ID  string // request id or a unique prefix of one
}

// ErrRequestRefRequired indicates no request reference was provided.
var ErrRequestRefRequired = errors.New("request reference required")

// ParseRequestRef parses a request reference.
//
// An all-digit reference is a number as printed by list. Anything else is
// an id or id prefix; ids only contain letters, digits, '-' and '_'.
func ParseRequestRef(s string) (RequestRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RequestRef{}, ErrRequestRefRequired
	}

	if isAllDigits(s) {
		num, err := strconv.Atoi(s)
		if err != nil {
			return RequestRef{}, fmt.Errorf("invalid request reference: %s", s)
		}
		return RequestRef{Num: num}, nil
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return RequestRef{}, fmt.Errorf("invalid request reference: %s", s)
		}
	}
	return RequestRef{ID: s}, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Resolve finds the request ref points to in rows, which must be the full
// list in display order.
func (ref RequestRef) Resolve(rows []service.Request) (service.Request, error) {
	if ref.ID == "" {
		if ref.Num < 1 || ref.Num > len(rows) {
			return service.Request{}, fmt.Errorf("request number out of range: %d", ref.Num)
		}
		return rows[ref.Num-1], nil
	}

	var matches []service.Request
	for _, r := range rows {
		if r.ID == ref.ID {
			return r, nil
		}
		if strings.HasPrefix(r.ID, ref.ID) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return service.Request{}, fmt.Errorf("request not found: %s", ref.ID)
	case 1:
		return matches[0], nil
	default:
		return service.Request{}, fmt.Errorf("ambiguous request id: %s", ref.ID)
	}
}
