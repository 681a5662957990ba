package docsource

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// ContentStreamText interprets the text operators of a decoded PDF content
// stream. Shown strings on the same baseline are joined; a change of
// baseline starts a new line. String bytes are decoded as WinAnsi
// (Windows-1252), the encoding of the standard fonts.
func ContentStreamText(stream []byte) string {
	t := textState{dec: charmap.Windows1252.NewDecoder()}
	lx := &lexer{src: stream}
	var operands []token

	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}
		t.apply(tok.text, operands)
		operands = operands[:0]
	}
	return t.String()
}

type textState struct {
	dec     *encoding.Decoder
	out     strings.Builder
	x, y    float64 // start of the current text line
	leading float64
	lastY   float64
	wrote   bool
	moved   bool
}

func (t *textState) apply(op string, args []token) {
	switch op {
	case "BT":
		t.x, t.y = 0, 0
		t.moved = true
	case "Td":
		if len(args) >= 2 {
			t.x += args[len(args)-2].num()
			t.y += args[len(args)-1].num()
		}
		t.moved = true
	case "TD":
		if len(args) >= 2 {
			ty := args[len(args)-1].num()
			t.x += args[len(args)-2].num()
			t.y += ty
			t.leading = -ty
		}
		t.moved = true
	case "Tm":
		if len(args) >= 6 {
			t.x = args[len(args)-2].num()
			t.y = args[len(args)-1].num()
		}
		t.moved = true
	case "TL":
		if len(args) >= 1 {
			t.leading = args[len(args)-1].num()
		}
	case "T*":
		t.nextLine()
	case "Tj":
		if len(args) >= 1 {
			t.show(args[len(args)-1].text)
		}
	case "'":
		t.nextLine()
		if len(args) >= 1 {
			t.show(args[len(args)-1].text)
		}
	case "\"":
		t.nextLine()
		if len(args) >= 1 {
			t.show(args[len(args)-1].text)
		}
	case "TJ":
		var b strings.Builder
		for _, a := range args {
			switch a.kind {
			case tokString:
				b.WriteString(a.text)
			case tokNumber:
				// Large negative kerning is a word gap.
				if a.num() < -250 {
					b.WriteByte(' ')
				}
			}
		}
		t.show(b.String())
	}
}

func (t *textState) nextLine() {
	t.y -= t.leading
	if t.leading == 0 {
		t.y -= 1
	}
	t.moved = true
}

func (t *textState) show(s string) {
	if s == "" {
		return
	}
	if t.wrote && t.moved {
		if math.Abs(t.y-t.lastY) > 0.5 {
			t.out.WriteByte('\n')
		} else {
			t.out.WriteByte(' ')
		}
	}
	t.out.WriteString(t.decode(s))
	t.lastY = t.y
	t.wrote = true
	t.moved = false
}

func (t *textState) decode(s string) string {
	u, err := t.dec.String(s)
	if err != nil {
		return strings.ToValidUTF8(s, "\uFFFD")
	}
	return u
}

func (t *textState) String() string {
	return t.out.String()
}

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokNumber
	tokString
	tokName
	tokArrayStart
	tokArrayEnd
	tokOther
)

type token struct {
	kind tokenKind
	text string
}

func (t token) num() float64 {
	if t.kind != tokNumber {
		return 0
	}
	f, _ := strconv.ParseFloat(t.text, 64)
	return f
}

type lexer struct {
	src []byte
	pos int
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) next() (token, bool) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isSpace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' && l.src[l.pos] != '\r' {
				l.pos++
			}
		case c == '(':
			l.pos++
			return token{kind: tokString, text: l.literal()}, true
		case c == '<':
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '<' {
				l.pos += 2
				return token{kind: tokOther, text: "<<"}, true
			}
			l.pos++
			return token{kind: tokString, text: l.hex()}, true
		case c == '>':
			l.pos++
			if l.pos < len(l.src) && l.src[l.pos] == '>' {
				l.pos++
			}
			return token{kind: tokOther, text: ">>"}, true
		case c == '[':
			l.pos++
			return token{kind: tokArrayStart, text: "["}, true
		case c == ']':
			l.pos++
			return token{kind: tokArrayEnd, text: "]"}, true
		case c == '/':
			l.pos++
			return token{kind: tokName, text: l.word()}, true
		case c == '{' || c == '}' || c == ')':
			l.pos++
		default:
			w := l.word()
			if w == "" {
				l.pos++
				continue
			}
			if _, err := strconv.ParseFloat(w, 64); err == nil {
				return token{kind: tokNumber, text: w}, true
			}
			if w == "true" || w == "false" || w == "null" {
				return token{kind: tokOther, text: w}, true
			}
			return token{kind: tokOperator, text: w}, true
		}
	}
	return token{}, false
}

func (l *lexer) word() string {
	start := l.pos
	for l.pos < len(l.src) && !isSpace(l.src[l.pos]) && !isDelim(l.src[l.pos]) {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

// literal reads a (string) body after the opening parenthesis.
func (l *lexer) literal() string {
	var b strings.Builder
	depth := 1
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			b.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return b.String()
			}
			b.WriteByte(c)
		case '\\':
			l.escape(&b)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func (l *lexer) escape(b *strings.Builder) {
	if l.pos >= len(l.src) {
		return
	}
	c := l.src[l.pos]
	l.pos++
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case '\r':
		if l.pos < len(l.src) && l.src[l.pos] == '\n' {
			l.pos++
		}
	case '\n':
	default:
		if c >= '0' && c <= '7' {
			v := int(c - '0')
			for i := 0; i < 2 && l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '7'; i++ {
				v = v*8 + int(l.src[l.pos]-'0')
				l.pos++
			}
			b.WriteByte(byte(v))
			return
		}
		b.WriteByte(c)
	}
}

// hex reads a <hex> string body after the opening angle bracket.
func (l *lexer) hex() string {
	var digits []byte
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		if c == '>' {
			break
		}
		if isSpace(c) {
			continue
		}
		digits = append(digits, c)
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return string(out)
}
