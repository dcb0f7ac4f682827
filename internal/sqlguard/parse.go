package sqlguard

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenWord TokenKind = iota
	TokenNumber
	TokenString
	TokenQuotedIdent
	TokenComment
	TokenPunct
)

// Token is one lexical unit of a statement. Whitespace is dropped.
type Token struct {
	Kind  TokenKind
	Text  string
	Depth int // parenthesis depth at which the token appears
}

// literalLimit finds "limit", a whitespace run and digits inside opaque text.
var literalLimit = regexp.MustCompile(`(?i)limit\s+(\d+)`)

// LimitClause is the row cap recovered from generated SQL:
//
//	statement := token* [ "LIMIT" digits ] token*
//
// The first "limit" followed by whitespace and a digit run wins, at any
// parenthesis depth. String literals, quoted identifiers and comments are
// searched as text with the same rule. A count such as 5.5 yields its leading
// digits. "LIMIT ALL" and "LIMIT $1" carry no count and the search goes on.
type LimitClause struct {
	All   bool
	Count int
	Depth int
	// Quoted is set when the match came from a literal or comment.
	Quoted bool
}

// Statement is a tokenized SQL statement with its recovered LIMIT, if any.
type Statement struct {
	Tokens      []Token
	LimitClause *LimitClause
}

// Limit returns the recovered row cap. LIMIT ALL, a missing LIMIT or a count
// that overflows int all report no cap.
func (s Statement) Limit() (int, bool) {
	if s.LimitClause == nil || s.LimitClause.All {
		return 0, false
	}
	return s.LimitClause.Count, true
}

// Parse tokenizes sql and locates its first LIMIT count.
func Parse(sql string) Statement {
	tokens := Lex(sql)
	stmt := Statement{Tokens: tokens}

	for i, tok := range tokens {
		var clause *LimitClause
		switch tok.Kind {
		case TokenString, TokenQuotedIdent, TokenComment:
			if m := literalLimit.FindStringSubmatch(tok.Text); m != nil {
				clause = countClause(m[1])
				clause.Quoted = true
			}
		case TokenWord:
			if !strings.EqualFold(tok.Text, "limit") || i+1 >= len(tokens) {
				continue
			}
			next := tokens[i+1]
			switch {
			case next.Kind == TokenNumber:
				clause = countClause(leadingDigits(next.Text))
			case next.Kind == TokenWord && strings.EqualFold(next.Text, "all") && stmt.LimitClause == nil:
				stmt.LimitClause = &LimitClause{All: true, Depth: tok.Depth}
			}
		}
		if clause != nil {
			clause.Depth = tok.Depth
			stmt.LimitClause = clause
			break
		}
	}
	return stmt
}

// countClause converts a digit run. Counts too large for int mean no cap.
func countClause(digits string) *LimitClause {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return &LimitClause{All: true}
	}
	return &LimitClause{Count: n}
}

func leadingDigits(s string) string {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}

// Lex splits sql into tokens.
func Lex(sql string) []Token {
	var tokens []Token
	runes := []rune(sql)
	depth := 0

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++

		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			start := i
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenComment, Text: string(runes[start:i]), Depth: depth})

		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			start := i
			i += 2
			for i < len(runes) && !(runes[i] == '*' && i+1 < len(runes) && runes[i+1] == '/') {
				i++
			}
			i = min(i+2, len(runes))
			tokens = append(tokens, Token{Kind: TokenComment, Text: string(runes[start:i]), Depth: depth})

		case r == '\'' || r == '"':
			start := i
			i = scanQuoted(runes, i, r)
			kind := TokenString
			if r == '"' {
				kind = TokenQuotedIdent
			}
			tokens = append(tokens, Token{Kind: kind, Text: string(runes[start:min(i, len(runes))]), Depth: depth})

		case unicode.IsDigit(r):
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenNumber, Text: string(runes[start:i]), Depth: depth})

		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(runes) && (runes[i] == '_' || runes[i] == '$' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenWord, Text: string(runes[start:i]), Depth: depth})

		default:
			if r == ')' && depth > 0 {
				depth--
			}
			tokens = append(tokens, Token{Kind: TokenPunct, Text: string(r), Depth: depth})
			if r == '(' {
				depth++
			}
			i++
		}
	}
	return tokens
}

// scanQuoted returns the index just past the closing quote. A doubled quote
// is an escaped quote. Unterminated literals run to the end of input.
func scanQuoted(runes []rune, i int, quote rune) int {
	i++
	for i < len(runes) {
		if runes[i] == quote {
			if i+1 < len(runes) && runes[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}
