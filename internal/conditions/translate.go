package conditions

import "strings"

var literalReplacements = map[string]string{
	"True":  "true",
	"False": "false",
	"None":  "null",
}

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenSpace
	tokenWord
	tokenString
	tokenGroup
)

type token struct {
	kind   tokenKind
	text   string  // source text; for groups, the opening bracket
	close  string  // closing bracket of a group, empty when unterminated
	inner  []token // group contents
	member bool    // word follows '.', so it is never a keyword
}

func (t token) isKeyword(word string) bool {
	return t.kind == tokenWord && !t.member && t.text == word
}

// translateKeywords rewrites a Python-style condition into HCL. Strings are
// re-quoted as HCL strings with their contents kept.
func translateKeywords(src string) string {
	tokens, _, _ := tokenize(src, 0, 0)
	return rewrite(tokens)
}

var closers = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// tokenize reads tokens from src[i:] until the closing bracket want (0 for
// end of input). It returns the tokens, the index after the closer and
// whether the closer was found.
func tokenize(src string, i int, want byte) ([]token, int, bool) {
	var tokens []token
	prevDot := false
	for i < len(src) {
		c := src[i]
		switch {
		case want != 0 && c == want:
			return tokens, i + 1, true
		case c == '(' || c == '[' || c == '{':
			inner, next, closed := tokenize(src, i+1, closers[c])
			group := token{kind: tokenGroup, text: string(c), inner: inner}
			if closed {
				group.close = string(closers[c])
			}
			tokens = append(tokens, group)
			i = next
			prevDot = false
		case c == '"' || c == '\'':
			j := skipString(src, i, c)
			tokens = append(tokens, token{kind: tokenString, text: requote(src[i:j], c)})
			i = j
			prevDot = false
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			j := i + 1
			for j < len(src) && strings.IndexByte(" \t\n\r", src[j]) >= 0 {
				j++
			}
			tokens = append(tokens, token{kind: tokenSpace, text: src[i:j]})
			i = j
		case isIdentStart(c):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			tokens = append(tokens, token{kind: tokenWord, text: src[i:j], member: prevDot})
			i = j
			prevDot = false
		default:
			tokens = append(tokens, token{kind: tokenText, text: string(c)})
			prevDot = c == '.'
			i++
		}
	}
	return tokens, len(src), false
}

// rewrite renders one bracket level. Operands are split at and, or and
// commas so that not and in apply to the whole operand.
func rewrite(tokens []token) string {
	var out strings.Builder
	start := 0
	for i, t := range tokens {
		sep := ""
		switch {
		case t.isKeyword("and"):
			sep = "&&"
		case t.isKeyword("or"):
			sep = "||"
		case t.kind == tokenText && t.text == ",":
			sep = ","
		default:
			continue
		}
		out.WriteString(rewriteOperand(tokens[start:i]))
		out.WriteString(sep)
		start = i + 1
	}
	out.WriteString(rewriteOperand(tokens[start:]))
	return out.String()
}

// rewriteOperand renders an operand between boolean operators, keeping its
// surrounding whitespace.
func rewriteOperand(tokens []token) string {
	lead, body, trail := trimSpace(tokens)
	var out strings.Builder
	out.WriteString(lead)

	switch {
	case len(body) > 0 && body[0].isKeyword("not"):
		_, rest, _ := trimSpace(body[1:])
		out.WriteString("!(")
		out.WriteString(rewriteOperand(rest))
		out.WriteString(")")
	default:
		if at := indexKeyword(body, "in"); at >= 0 {
			left, negated := body[:at], false
			if _, l, _ := trimSpace(left); len(l) > 0 && l[len(l)-1].isKeyword("not") {
				left, negated = l[:len(l)-1], true
			}
			if negated {
				out.WriteString("!")
			}
			out.WriteString("contains(")
			out.WriteString(strings.TrimSpace(rewriteOperand(body[at+1:])))
			out.WriteString(", ")
			out.WriteString(strings.TrimSpace(rewriteOperand(left)))
			out.WriteString(")")
		} else {
			for _, t := range body {
				out.WriteString(render(t))
			}
		}
	}

	out.WriteString(trail)
	return out.String()
}

func render(t token) string {
	switch t.kind {
	case tokenGroup:
		return t.text + rewrite(t.inner) + t.close
	case tokenWord:
		if repl, ok := literalReplacements[t.text]; ok && !t.member {
			return repl
		}
	}
	return t.text
}

func indexKeyword(tokens []token, word string) int {
	for i, t := range tokens {
		if t.isKeyword(word) {
			return i
		}
	}
	return -1
}

func trimSpace(tokens []token) (lead string, body []token, trail string) {
	start, end := 0, len(tokens)
	for start < end && tokens[start].kind == tokenSpace {
		lead += tokens[start].text
		start++
	}
	for end > start && tokens[end-1].kind == tokenSpace {
		end--
	}
	for _, t := range tokens[end:] {
		trail += t.text
	}
	return lead, tokens[start:end], trail
}

// requote turns a Python string literal into an HCL one. quote is the
// literal's delimiter.
func requote(lit string, quote byte) string {
	body := lit[1:]
	if strings.HasSuffix(body, string(quote)) && len(lit) > 1 {
		body = body[:len(body)-1]
	}

	var out strings.Builder
	out.WriteByte('"')
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body):
			next := body[i+1]
			if next == '\'' {
				out.WriteByte('\'')
			} else {
				out.WriteByte(c)
				out.WriteByte(next)
			}
			i++
		case c == '"':
			out.WriteString(`\"`)
		case (c == '$' || c == '%') && i+1 < len(body) && body[i+1] == '{':
			out.WriteByte(c)
			out.WriteByte(c)
		default:
			out.WriteByte(c)
		}
	}
	out.WriteByte('"')
	return out.String()
}

// skipString returns the index just past the closing quote of the string
// starting at src[start]. Unterminated strings run to the end.
func skipString(src string, start int, quote byte) int {
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		}
	}
	return len(src)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}
