// Package token defines the two control sentinels a Unit may return in place
// of an ordinary value: SKIP and IGNORE. Both are singletons so callers can
// compare by identity (==) as well as by the Is helpers below.
package token

// Token is a control sentinel. The zero value is not a valid Token; the only
// instances that exist are the package-level SKIP and IGNORE singletons.
type Token struct {
	tag string
}

var (
	// SKIP marks a node's output (and, transitively, everything that depends
	// on it) as not having produced usable data. A node that receives SKIP in
	// its inputs does not invoke its Unit; it propagates SKIP onward instead.
	SKIP = &Token{tag: "SKIP_EVENT"}

	// IGNORE marks a single positional input as absent. IGNORE values are
	// filtered out of the argument list before the Unit is invoked. If there
	// were at least two inputs and every one was IGNORE, the Unit is not
	// called and the node's output is IGNORE; a lone IGNORE input still
	// invokes the Unit, with no positional arguments from that source.
	IGNORE = &Token{tag: "IGNORE_EVENT"}
)

// String returns the token's stable tag text.
func (t *Token) String() string {
	if t == nil {
		return ""
	}
	return t.tag
}

// MarshalText implements encoding.TextMarshaler, giving SKIP/IGNORE a stable
// wire identity across process boundaries.
func (t *Token) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It is only meaningful
// when called against one of the two package singletons (decoding into a
// fresh *Token is a programmer error since Token carries no exported
// constructor); callers should decode via Parse instead.
func (t *Token) UnmarshalText(text []byte) error {
	parsed, ok := Parse(string(text))
	if !ok {
		return &ErrUnknownTag{Tag: string(text)}
	}
	*t = *parsed
	return nil
}

// Parse resolves a wire tag back to the corresponding singleton, preserving
// identity: Parse(SKIP.String()) == SKIP.
func Parse(tag string) (*Token, bool) {
	switch tag {
	case SKIP.tag:
		return SKIP, true
	case IGNORE.tag:
		return IGNORE, true
	default:
		return nil, false
	}
}

// ErrUnknownTag reports a wire tag that does not correspond to any token.
type ErrUnknownTag struct{ Tag string }

func (e *ErrUnknownTag) Error() string { return "token: unknown tag " + e.Tag }

// Is reports whether v is the given singleton token.
func Is(v any, want *Token) bool {
	t, ok := v.(*Token)
	return ok && t == want
}

// IsSkip reports whether v is the SKIP sentinel.
func IsSkip(v any) bool { return Is(v, SKIP) }

// IsIgnore reports whether v is the IGNORE sentinel.
func IsIgnore(v any) bool { return Is(v, IGNORE) }

// ContainsSkip reports whether any element of args is SKIP.
func ContainsSkip(args []any) bool {
	for _, a := range args {
		if IsSkip(a) {
			return true
		}
	}
	return false
}

// FilterIgnore returns a copy of args with every IGNORE element removed.
func FilterIgnore(args []any) []any {
	out := make([]any, 0, len(args))
	for _, a := range args {
		if IsIgnore(a) {
			continue
		}
		out = append(out, a)
	}
	return out
}
