package lexer

import (
	"math"
	"strconv"
	"strings"
)

// Line is one prepared source line: comment-stripped, trimmed and non-empty.
type Line struct {
	Number int
	Text   string
}

var keywords = map[string]Kind{
	"class":       KindClass,
	"field":       KindField,
	"func":        KindFunc,
	"constructor": KindConstructor,
	"end":         KindEnd,
	"public":      KindPublic,
	"private":     KindPrivate,
	"abstract":    KindAbstract,
	"override":    KindOverride,
	">":           KindGreater,
}

// Prepare splits a compilation unit into logical lines. Comments start at a
// ';' outside a string literal and run to the end of the line.
func Prepare(src string) []Line {
	var lines []Line
	for i, raw := range strings.Split(src, "\n") {
		text := strings.TrimSpace(stripComment(raw))
		if text == "" {
			continue
		}
		lines = append(lines, Line{Number: i + 1, Text: text})
	}
	return lines
}

func stripComment(line string) string {
	inStr := false
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case inStr && c == '\\':
			i++
		case c == '"':
			inStr = !inStr
		case !inStr && c == ';':
			return line[:i]
		}
	}
	return line
}

// Scan prepares src and tokenizes every line, one token row per line.
func Scan(src string) [][]Token {
	lines := Prepare(src)
	rows := make([][]Token, 0, len(lines))
	for _, l := range lines {
		row := Tokenize(l.Text)
		for i := range row {
			row[i].Line = l.Number
		}
		rows = append(rows, row)
	}
	return rows
}

// Tokenize splits one prepared line into typed tokens. It never fails: text
// that is not a keyword, punctuation or number becomes an identifier.
func Tokenize(line string) []Token {
	var (
		toks []Token
		word strings.Builder
	)
	flush := func() {
		if word.Len() > 0 {
			toks = append(toks, classify(word.String()))
			word.Reset()
		}
	}

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch ch {
		case ' ', '\t', '\r':
			flush()
		case '"':
			flush()
			str, next := scanString(line, i+1)
			toks = append(toks, Token{Kind: KindString, Value: str})
			i = next
		case '=':
			flush()
			toks = append(toks, Token{Kind: KindAssign, Value: "="})
		case ':':
			flush()
			toks = append(toks, Token{Kind: KindColon, Value: ":"})
		case '(':
			flush()
			toks = append(toks, Token{Kind: KindLParen, Value: "("})
		case ')':
			flush()
			toks = append(toks, Token{Kind: KindRParen, Value: ")"})
		default:
			word.WriteByte(ch)
		}
	}
	flush()
	return toks
}

// scanString reads a literal body starting after the opening quote and
// returns the unescaped text and the index of the closing quote. An
// unterminated literal runs to the end of the line.
func scanString(line string, start int) (string, int) {
	var sb strings.Builder
	i := start
	for ; i < len(line); i++ {
		ch := line[i]
		if ch == '"' {
			return sb.String(), i
		}
		if ch == '\\' && i+1 < len(line) {
			i++
			switch line[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '"', '\\':
				sb.WriteByte(line[i])
			default:
				sb.WriteByte('\\')
				sb.WriteByte(line[i])
			}
			continue
		}
		sb.WriteByte(ch)
	}
	return sb.String(), i
}

func classify(word string) Token {
	if kind, ok := keywords[word]; ok {
		return Token{Kind: kind, Value: word}
	}
	if tok, ok := scanNumber(word); ok {
		return tok
	}
	return Token{Kind: KindIdentifier, Value: word}
}

// scanNumber accepts plain decimal literals with an optional sign and an
// optional '.' or ',' separator. Whole values are integers, even "3.0".
func scanNumber(word string) (Token, bool) {
	if !isDecimal(word) {
		return Token{}, false
	}
	norm := strings.Replace(word, ",", ".", 1)
	if !strings.Contains(norm, ".") {
		if i, err := strconv.ParseInt(norm, 10, 64); err == nil {
			return Token{Kind: KindInt, Value: word, Int: i}, true
		}
	}
	f, err := strconv.ParseFloat(norm, 64)
	if err != nil {
		return Token{}, false
	}
	if f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		return Token{Kind: KindInt, Value: word, Int: int64(f)}, true
	}
	return Token{Kind: KindFloat, Value: word, Float: f}, true
}

func isDecimal(word string) bool {
	if word == "" {
		return false
	}
	if word[0] == '+' || word[0] == '-' {
		word = word[1:]
	}
	digits, seps := 0, 0
	for i := 0; i < len(word); i++ {
		switch ch := word[i]; {
		case ch >= '0' && ch <= '9':
			digits++
		case ch == '.' || ch == ',':
			seps++
		default:
			return false
		}
	}
	return digits > 0 && seps <= 1
}
