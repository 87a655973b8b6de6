package pdf

import (
	"bytes"
	"strconv"
)

// lexer is a recursive-descent parser over a byte slice. PDF object syntax
// fits in a handful of productions; the only lookahead needed is for
// distinguishing "3 0 R" references and "3 0 obj" headers from plain numbers.
type lexer struct {
	data []byte
	pos  int

	// resolve, when set, resolves indirect references encountered where a
	// direct value is needed (a stream's /Length). May be nil.
	resolve func(Ref) Object
}

func newLexer(data []byte, pos int) *lexer {
	return &lexer{data: data, pos: pos}
}

func isWhitespace(b byte) bool {
	switch b {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(b byte) bool {
	return !isWhitespace(b) && !isDelimiter(b)
}

// skipSpace advances past whitespace and %-comments.
func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if isWhitespace(b) {
			l.pos++
			continue
		}
		if b == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

func (l *lexer) peek() (byte, bool) {
	if l.pos >= len(l.data) {
		return 0, false
	}
	return l.data[l.pos], true
}

// keyword reads a run of regular characters.
func (l *lexer) keyword() string {
	start := l.pos
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// match consumes kw if it appears at the current position (after whitespace).
func (l *lexer) match(kw string) bool {
	l.skipSpace()
	save := l.pos
	if l.keyword() == kw {
		return true
	}
	l.pos = save
	return false
}

// parseObject parses one object at the current position.
func (l *lexer) parseObject() (Object, error) {
	l.skipSpace()
	b, ok := l.peek()
	if !ok {
		return nil, parseErrf(KindMalformed, "unexpected end of data at offset %d", l.pos)
	}

	switch {
	case b == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			return l.parseDictOrStream()
		}
		return l.parseHexString()
	case b == '[':
		return l.parseArray()
	case b == '(':
		return l.parseLiteralString()
	case b == '/':
		return l.parseName()
	case b == '+' || b == '-' || b == '.' || (b >= '0' && b <= '9'):
		return l.parseNumberOrRef()
	default:
		switch kw := l.keyword(); kw {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		case "null":
			return Null{}, nil
		case "":
			return nil, parseErrf(KindMalformed, "unexpected byte %q at offset %d", b, l.pos)
		default:
			return nil, parseErrf(KindMalformed, "unexpected keyword %q at offset %d", kw, l.pos)
		}
	}
}

func (l *lexer) parseName() (Object, error) {
	l.pos++ // consume '/'
	var out []byte
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		b := l.data[l.pos]
		if b == '#' && l.pos+2 < len(l.data) {
			hi := unhex(l.data[l.pos+1])
			lo := unhex(l.data[l.pos+2])
			if hi >= 0 && lo >= 0 {
				out = append(out, byte(hi<<4|lo))
				l.pos += 3
				continue
			}
		}
		out = append(out, b)
		l.pos++
	}
	return Name(out), nil
}

func unhex(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10
	}
	return -1
}

func (l *lexer) parseNumberOrRef() (Object, error) {
	first, err := l.parseNumber()
	if err != nil {
		return nil, err
	}
	num, isInt := first.(Integer)
	if !isInt || num < 0 {
		return first, nil
	}

	// Lookahead for "<gen> R".
	save := l.pos
	l.skipSpace()
	genStart := l.pos
	for l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '9' {
		l.pos++
	}
	if l.pos > genStart {
		gen, err := strconv.Atoi(string(l.data[genStart:l.pos]))
		if err == nil {
			afterGen := l.pos
			l.skipSpace()
			if kw := l.keyword(); kw == "R" {
				return Ref{Num: int(num), Gen: gen}, nil
			}
			l.pos = afterGen
		}
	}
	l.pos = save
	return first, nil
}

func (l *lexer) parseNumber() (Object, error) {
	start := l.pos
	if b, ok := l.peek(); ok && (b == '+' || b == '-') {
		l.pos++
	}
	isReal := false
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if b >= '0' && b <= '9' {
			l.pos++
			continue
		}
		if b == '.' {
			isReal = true
			l.pos++
			continue
		}
		break
	}
	tok := string(l.data[start:l.pos])
	if isReal {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, parseErrf(KindMalformed, "bad real %q at offset %d", tok, start)
		}
		return Real(v), nil
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return nil, parseErrf(KindMalformed, "bad integer %q at offset %d", tok, start)
	}
	return Integer(v), nil
}

func (l *lexer) parseLiteralString() (Object, error) {
	l.pos++ // consume '('
	var out []byte
	depth := 1
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		l.pos++
		switch b {
		case '\\':
			if l.pos >= len(l.data) {
				return nil, parseErrf(KindMalformed, "unterminated string escape at offset %d", l.pos)
			}
			e := l.data[l.pos]
			l.pos++
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
			case '(', ')', '\\':
				out = append(out, e)
			case '\r':
				// Line continuation; swallow an LF after CR.
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
				// Line continuation.
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.data); i++ {
						d := l.data[l.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v*8 + int(d-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		case '(':
			depth++
			out = append(out, b)
		case ')':
			depth--
			if depth == 0 {
				return String(out), nil
			}
			out = append(out, b)
		default:
			out = append(out, b)
		}
	}
	return nil, parseErrf(KindMalformed, "unterminated literal string")
}

func (l *lexer) parseHexString() (Object, error) {
	l.pos++ // consume '<'
	var out []byte
	hi := -1
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		l.pos++
		if b == '>' {
			if hi >= 0 {
				out = append(out, byte(hi<<4))
			}
			return String(out), nil
		}
		v := unhex(b)
		if v < 0 {
			continue
		}
		if hi < 0 {
			hi = v
		} else {
			out = append(out, byte(hi<<4|v))
			hi = -1
		}
	}
	return nil, parseErrf(KindMalformed, "unterminated hex string")
}

func (l *lexer) parseArray() (Object, error) {
	l.pos++ // consume '['
	arr := Array{}
	for {
		l.skipSpace()
		b, ok := l.peek()
		if !ok {
			return nil, parseErrf(KindMalformed, "unterminated array")
		}
		if b == ']' {
			l.pos++
			return arr, nil
		}
		el, err := l.parseObject()
		if err != nil {
			return nil, err
		}
		arr = append(arr, el)
	}
}

func (l *lexer) parseDictOrStream() (Object, error) {
	l.pos += 2 // consume '<<'
	dict := NewDict()
	for {
		l.skipSpace()
		b, ok := l.peek()
		if !ok {
			return nil, parseErrf(KindMalformed, "unterminated dictionary")
		}
		if b == '>' {
			if l.pos+1 >= len(l.data) || l.data[l.pos+1] != '>' {
				return nil, parseErrf(KindMalformed, "bad dictionary close at offset %d", l.pos)
			}
			l.pos += 2
			break
		}
		if b != '/' {
			return nil, parseErrf(KindMalformed, "dictionary key is not a name at offset %d", l.pos)
		}
		keyObj, err := l.parseName()
		if err != nil {
			return nil, err
		}
		val, err := l.parseObject()
		if err != nil {
			return nil, err
		}
		dict.Set(keyObj.(Name), val)
	}

	// A "stream" keyword immediately after the dictionary turns it into a
	// stream object.
	save := l.pos
	if !l.match("stream") {
		l.pos = save
		return dict, nil
	}
	// Keyword must be followed by CRLF or LF.
	if l.pos < len(l.data) && l.data[l.pos] == '\r' {
		l.pos++
	}
	if l.pos < len(l.data) && l.data[l.pos] == '\n' {
		l.pos++
	}
	data, err := l.readStreamData(dict)
	if err != nil {
		return nil, err
	}
	return &Stream{Dict: dict, Data: data}, nil
}

// readStreamData extracts the raw stream payload. The declared /Length is
// trusted when it lines up with an endstream keyword; otherwise the data is
// delimited by scanning for endstream, which tolerates the broken lengths
// seen in real-world files.
func (l *lexer) readStreamData(dict *Dict) ([]byte, error) {
	length, ok := l.streamLength(dict)
	if ok && l.pos+int(length) <= len(l.data) {
		end := l.pos + int(length)
		tail := l.data[end:]
		// Allow EOL before the endstream keyword.
		trimmed := 0
		for trimmed < 2 && trimmed < len(tail) && (tail[trimmed] == '\r' || tail[trimmed] == '\n') {
			trimmed++
		}
		if bytes.HasPrefix(tail[trimmed:], []byte("endstream")) {
			data := l.data[l.pos:end]
			l.pos = end + trimmed + len("endstream")
			return data, nil
		}
	}

	idx := bytes.Index(l.data[l.pos:], []byte("endstream"))
	if idx < 0 {
		return nil, parseErrf(KindMalformed, "stream without endstream at offset %d", l.pos)
	}
	end := l.pos + idx
	data := l.data[l.pos:end]
	// Strip the EOL that belongs to the endstream keyword, not the data.
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}
	if len(data) > 0 && data[len(data)-1] == '\r' {
		data = data[:len(data)-1]
	}
	l.pos = end + len("endstream")
	return data, nil
}

func (l *lexer) streamLength(dict *Dict) (int64, bool) {
	obj := dict.Get("Length")
	if ref, isRef := obj.(Ref); isRef && l.resolve != nil {
		obj = l.resolve(ref)
	}
	n, ok := Int(obj)
	if !ok || n < 0 {
		return 0, false
	}
	return n, true
}
