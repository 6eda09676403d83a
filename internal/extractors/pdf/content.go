package pdf

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
)

// TJ offsets are in thousandths of a text-space unit; anything wider than a
// quarter em is treated as a word gap.
const tjGapThreshold = -250

type operandKind int

const (
	operandOther operandKind = iota
	operandNumber
	operandString
	operandArray
)

type operand struct {
	kind operandKind
	num  float64
	str  []byte
	arr  []operand
}

// ContentText decodes the text-showing operators of a page content stream.
// Strings shown by Tj, TJ, ' and " are emitted in stream order; positioning
// operators and the end of a text object become spaces.
func ContentText(data []byte) string {
	s := &contentScanner{data: data}
	var (
		out    strings.Builder
		stack  []operand
		arrays [][]operand
	)

	push := func(o operand) {
		if len(arrays) > 0 {
			arrays[len(arrays)-1] = append(arrays[len(arrays)-1], o)
			return
		}
		stack = append(stack, o)
	}
	space := func() {
		if out.Len() == 0 {
			return
		}
		str := out.String()
		if str[len(str)-1] != ' ' {
			out.WriteByte(' ')
		}
	}
	lastString := func() []byte {
		if len(stack) == 0 {
			return nil
		}
		if top := stack[len(stack)-1]; top.kind == operandString {
			return top.str
		}
		return nil
	}

	for {
		s.skipSpace()
		if s.eof() {
			break
		}
		c := s.data[s.pos]
		switch {
		case c == '(':
			push(operand{kind: operandString, str: s.literalString()})
		case c == '<' && s.peek(1) == '<':
			s.pos += 2
		case c == '>' && s.peek(1) == '>':
			s.pos += 2
		case c == '<':
			push(operand{kind: operandString, str: s.hexString()})
		case c == '[':
			s.pos++
			arrays = append(arrays, nil)
		case c == ']':
			s.pos++
			if len(arrays) > 0 {
				arr := arrays[len(arrays)-1]
				arrays = arrays[:len(arrays)-1]
				push(operand{kind: operandArray, arr: arr})
			}
		case c == '/':
			s.pos++
			s.token()
			push(operand{kind: operandOther})
		case isNumberStart(c):
			tok := s.token()
			if n, err := strconv.ParseFloat(string(tok), 64); err == nil {
				push(operand{kind: operandNumber, num: n})
			} else {
				push(operand{kind: operandOther})
			}
		default:
			op := s.token()
			if len(op) == 0 {
				// stray delimiter
				s.pos++
				continue
			}
			switch string(op) {
			case "Tj":
				out.WriteString(decodeTextString(lastString()))
			case "'", `"`:
				space()
				out.WriteString(decodeTextString(lastString()))
			case "TJ":
				if len(stack) > 0 && stack[len(stack)-1].kind == operandArray {
					for _, el := range stack[len(stack)-1].arr {
						switch el.kind {
						case operandString:
							out.WriteString(decodeTextString(el.str))
						case operandNumber:
							if el.num < tjGapThreshold {
								space()
							}
						}
					}
				}
			case "Td", "TD", "T*", "Tm", "ET":
				space()
			case "ID":
				s.skipInlineImage()
			}
			stack = stack[:0]
			arrays = arrays[:0]
		}
	}

	return cleanPDFText(out.String())
}

type contentScanner struct {
	data []byte
	pos  int
}

func (s *contentScanner) eof() bool { return s.pos >= len(s.data) }

func (s *contentScanner) peek(off int) byte {
	if s.pos+off < len(s.data) {
		return s.data[s.pos+off]
	}
	return 0
}

func (s *contentScanner) skipSpace() {
	for !s.eof() {
		c := s.data[s.pos]
		if c == '%' {
			for !s.eof() && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
			continue
		}
		if !isPDFSpace(c) {
			return
		}
		s.pos++
	}
}

// token reads a run of regular characters.
func (s *contentScanner) token() []byte {
	start := s.pos
	for !s.eof() && !isPDFSpace(s.data[s.pos]) && !isPDFDelimiter(s.data[s.pos]) {
		s.pos++
	}
	return s.data[start:s.pos]
}

func (s *contentScanner) literalString() []byte {
	s.pos++ // (
	var out []byte
	depth := 1
	for !s.eof() {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		case '\\':
			if s.eof() {
				return out
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				// line continuation
				if s.peek(0) == '\n' {
					s.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && !s.eof() && s.data[s.pos] >= '0' && s.data[s.pos] <= '7'; i++ {
						v = v*8 + int(s.data[s.pos]-'0')
						s.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		case '\r':
			if s.peek(0) == '\n' {
				s.pos++
			}
			out = append(out, '\n')
		default:
			out = append(out, c)
		}
	}
	return out
}

func (s *contentScanner) hexString() []byte {
	s.pos++ // <
	var out []byte
	var hi byte
	half := false
	for !s.eof() {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			break
		}
		v, ok := hexValue(c)
		if !ok {
			continue
		}
		if half {
			out = append(out, hi<<4|v)
			half = false
		} else {
			hi = v
			half = true
		}
	}
	if half {
		out = append(out, hi<<4)
	}
	return out
}

// skipInlineImage moves past the binary data of an inline image, which
// runs from after ID to the next whitespace-delimited EI.
func (s *contentScanner) skipInlineImage() {
	if !s.eof() && isPDFSpace(s.data[s.pos]) {
		s.pos++
	}
	for i := s.pos; i+1 < len(s.data); i++ {
		if s.data[i] != 'E' || s.data[i+1] != 'I' {
			continue
		}
		if i > 0 && !isPDFSpace(s.data[i-1]) {
			continue
		}
		if i+2 < len(s.data) && !isPDFSpace(s.data[i+2]) && !isPDFDelimiter(s.data[i+2]) {
			continue
		}
		s.pos = i + 2
		return
	}
	s.pos = len(s.data)
}

// decodeTextString maps a PDF text string to UTF-8. UTF-16BE strings carry a
// byte order mark; everything else is read as single-byte Latin-1.
func decodeTextString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		b = b[2:]
		u := make([]uint16, 0, len(b)/2)
		for i := 0; i+1 < len(b); i += 2 {
			u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(u))
	}
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}

// cleanPDFText normalises whitespace in extracted PDF text.
func cleanPDFText(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		} else if unicode.IsPrint(r) {
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}

func isPDFSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isNumberStart(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
