// Package sid parses and formats Windows Security Identifiers in their
// string form ("S-1-5-32-544").
//
// The host authentication provider uses it to let allowed_groups name a
// group either by account name or by SID, and to give names to well-known
// SIDs whose account lookup fails.
package sid

import (
	"fmt"
	"strconv"
	"strings"
)

// SID is a parsed Windows Security Identifier.
type SID struct {
	Revision            uint8
	IdentifierAuthority uint64 // 48-bit
	SubAuthorities      []uint32
}

// Parse parses a SID string. The "S-" prefix is case-insensitive.
func Parse(s string) (*SID, error) {
	if len(s) < 2 || !strings.EqualFold(s[:2], "S-") {
		return nil, fmt.Errorf("invalid SID format: must start with S-")
	}

	parts := strings.Split(s[2:], "-")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid SID format: need at least revision and authority")
	}

	revision, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("invalid SID revision: %w", err)
	}
	authority, err := strconv.ParseUint(parts[1], 10, 48)
	if err != nil {
		return nil, fmt.Errorf("invalid SID authority: %w", err)
	}
	if len(parts)-2 > 15 {
		return nil, fmt.Errorf("invalid SID: %d sub-authorities exceeds 15", len(parts)-2)
	}

	out := &SID{
		Revision:            uint8(revision),
		IdentifierAuthority: authority,
		SubAuthorities:      make([]uint32, 0, len(parts)-2),
	}
	for i, p := range parts[2:] {
		val, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid SID sub-authority %d: %w", i, err)
		}
		out.SubAuthorities = append(out.SubAuthorities, uint32(val))
	}
	return out, nil
}

// MustParse parses a SID string and panics on error. Used for well-known SIDs.
func MustParse(s string) *SID {
	v, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("invalid well-known SID %q: %v", s, err))
	}
	return v
}

// IsSID reports whether s is a syntactically valid SID string.
func IsSID(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// String formats the SID in "S-1-5-21-..." form.
func (s *SID) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "S-%d-%d", s.Revision, s.IdentifierAuthority)
	for _, sa := range s.SubAuthorities {
		fmt.Fprintf(&b, "-%d", sa)
	}
	return b.String()
}

// Equal reports whether two SIDs are identical.
func (s *SID) Equal(other *SID) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil {
		return false
	}
	if s.Revision != other.Revision || s.IdentifierAuthority != other.IdentifierAuthority {
		return false
	}
	if len(s.SubAuthorities) != len(other.SubAuthorities) {
		return false
	}
	for i := range s.SubAuthorities {
		if s.SubAuthorities[i] != other.SubAuthorities[i] {
			return false
		}
	}
	return true
}

// EqualString compares two SID strings by value, so "s-1-5-32-544" equals
// "S-1-5-32-544". Unparseable input never matches.
func EqualString(a, b string) bool {
	sa, err := Parse(a)
	if err != nil {
		return false
	}
	sb, err := Parse(b)
	if err != nil {
		return false
	}
	return sa.Equal(sb)
}
