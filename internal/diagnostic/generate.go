package diagnostic

import "strings"

// TokenKind is the tag of a generate token.
type TokenKind int

const (
	// TokenAll enables every diagnostic, or those of one core or category.
	TokenAll TokenKind = iota
	// TokenNo disables a diagnostic, core or category.
	TokenNo
	// TokenName enables one diagnostic by name.
	TokenName
)

func (k TokenKind) String() string {
	switch k {
	case TokenAll:
		return "all"
	case TokenNo:
		return "no"
	default:
		return "name"
	}
}

// Token is one parsed element of the generate list.
type Token struct {
	Kind TokenKind
	// Scope is the suffix after "all_" or "no_", or the diagnostic name.
	Scope string
	// Scoped is false for a bare "all".
	Scoped bool
}

// ParseToken splits a generate element on its first underscore: "all" and
// "all_<core|category>", "no_<name|core|category>", anything else a name.
func ParseToken(s string) Token {
	s = strings.TrimSpace(s)
	prefix, suffix, scoped := strings.Cut(s, "_")
	switch prefix {
	case "all":
		return Token{Kind: TokenAll, Scope: suffix, Scoped: scoped}
	case "no":
		return Token{Kind: TokenNo, Scope: suffix, Scoped: scoped}
	}
	return Token{Kind: TokenName, Scope: s, Scoped: true}
}

// ParseTokens parses every element in order.
func ParseTokens(elements []string) []Token {
	out := make([]Token, 0, len(elements))
	for _, e := range elements {
		out = append(out, ParseToken(e))
	}
	return out
}

// ShouldGenerate evaluates tokens left to right for d; later tokens win.
func ShouldGenerate(tokens []Token, d Diagnostic) bool {
	generate := false
	for _, t := range tokens {
		switch t.Kind {
		case TokenAll:
			if !t.Scoped || t.Scope == d.Core() || t.Scope == d.Category() {
				generate = true
			}
		case TokenNo:
			if t.Scoped && (t.Scope == d.Name() || t.Scope == d.Core() || t.Scope == d.Category()) {
				generate = false
			}
		case TokenName:
			if t.Scope == d.Name() {
				generate = true
			}
		}
	}
	return generate
}
