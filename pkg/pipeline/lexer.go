package pipeline

import "strings"

type tokenKind int

const (
	tokSpace tokenKind = iota
	tokWord
	tokNumber
	tokString
	tokQuoted // [..], "..", `..` delimited identifier
	tokComment
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

// lexSQL splits a statement into tokens whose texts concatenate back to the input exactly.
// Unterminated literals, identifiers and comments run to the end of the input.
func lexSQL(s string) []token {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		start := i
		switch {
		case isSpace(c):
			for i < len(s) && isSpace(s[i]) {
				i++
			}
			toks = append(toks, token{tokSpace, s[start:i]})
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			toks = append(toks, token{tokComment, s[start:i]})
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)
			} else {
				i += 2 + end + 2
			}
			toks = append(toks, token{tokComment, s[start:i]})
		case c == '\'':
			i = scanDelimited(s, i, '\'')
			toks = append(toks, token{tokString, s[start:i]})
		case c == '[':
			i = scanDelimited(s, i, ']')
			toks = append(toks, token{tokQuoted, s[start:i]})
		case c == '"' || c == '`':
			i = scanDelimited(s, i, c)
			toks = append(toks, token{tokQuoted, s[start:i]})
		case isWordStart(c):
			for i < len(s) && isWordPart(s[i]) {
				i++
			}
			toks = append(toks, token{tokWord, s[start:i]})
		case isDigit(c):
			for i < len(s) && (isDigit(s[i]) || s[i] == '.' || s[i] == 'e' || s[i] == 'E') {
				i++
			}
			toks = append(toks, token{tokNumber, s[start:i]})
		default:
			i++
			toks = append(toks, token{tokPunct, s[start:i]})
		}
	}
	return toks
}

// scanDelimited returns the index just past the closing delimiter of the literal or identifier
// opened at s[i]. A doubled closing delimiter is an escape.
func scanDelimited(s string, i int, closing byte) int {
	i++
	for i < len(s) {
		if s[i] == closing {
			if i+1 < len(s) && s[i+1] == closing {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(s)
}

func joinTokens(toks []token) string {
	var sb strings.Builder
	for _, t := range toks {
		sb.WriteString(t.text)
	}
	return sb.String()
}

// nextSignificant returns the index of the first token after i that is not space or comment, or -1.
func nextSignificant(toks []token, i int) int {
	for j := i + 1; j < len(toks); j++ {
		if toks[j].kind != tokSpace && toks[j].kind != tokComment {
			return j
		}
	}
	return -1
}

// prevSignificant returns the index of the last token before i that is not space or comment, or -1.
func prevSignificant(toks []token, i int) int {
	for j := i - 1; j >= 0; j-- {
		if toks[j].kind != tokSpace && toks[j].kind != tokComment {
			return j
		}
	}
	return -1
}

// unquoteIdent strips identifier delimiters and collapses escaped closing delimiters.
func unquoteIdent(text string) string {
	if len(text) < 2 {
		return text
	}
	open, last := text[0], text[len(text)-1]
	var closing byte
	switch open {
	case '[':
		closing = ']'
	case '"', '`':
		closing = open
	default:
		return text
	}
	if last != closing {
		return text[1:]
	}
	inner := text[1 : len(text)-1]
	return strings.ReplaceAll(inner, string([]byte{closing, closing}), string(closing))
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordStart(c byte) bool {
	return c == '_' || c == '@' || c == '#' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isWordPart(c byte) bool {
	return isWordStart(c) || isDigit(c) || c == '$'
}
