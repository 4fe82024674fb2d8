package optimize

import "bytes"

// StripJSComments removes /* */ comments from JavaScript source. Nothing
// else is touched: line comments, whitespace and line breaks stay, so code
// relying on automatic semicolon insertion keeps working. A removed comment
// that spanned a line break becomes "\n", any other becomes " ". Comments
// starting with "/*!" or carrying @license / @preserve are kept.
//
// The scanner understands string, template and regular-expression literals
// well enough not to mistake their contents for comments. On input it cannot
// follow (an unterminated comment) it emits the remainder verbatim.
func StripJSComments(src []byte) []byte {
	s := &jsScanner{src: src, out: make([]byte, 0, len(src))}
	s.run()
	return s.out
}

type jsScanner struct {
	src []byte
	out []byte
	pos int

	// depth counts open braces in code; templates records the depth at
	// which each open "${" expression returns to its template literal.
	depth     int
	templates []int
}

func (s *jsScanner) run() {
	n := len(s.src)
	for s.pos < n {
		c := s.src[s.pos]
		switch {
		case c == '/' && s.peek(1) == '*':
			if !s.blockComment() {
				s.out = append(s.out, s.src[s.pos:]...)
				return
			}
		case c == '/' && s.peek(1) == '/':
			end := indexLineEnd(s.src[s.pos:])
			s.emit(end)
		case c == '\'' || c == '"':
			s.emit(stringLen(s.src[s.pos:], c))
		case c == '`':
			s.template(1)
		case c == '/' && regexAllowed(s.out):
			s.emit(regexLen(s.src[s.pos:]))
		case c == '{':
			s.depth++
			s.emit(1)
		case c == '}':
			if k := len(s.templates); k > 0 && s.templates[k-1] == s.depth {
				s.templates = s.templates[:k-1]
				s.template(1)
				continue
			}
			s.depth--
			s.emit(1)
		default:
			s.emit(1)
		}
	}
}

func (s *jsScanner) peek(off int) byte {
	if i := s.pos + off; i < len(s.src) {
		return s.src[i]
	}
	return 0
}

func (s *jsScanner) emit(n int) {
	s.out = append(s.out, s.src[s.pos:s.pos+n]...)
	s.pos += n
}

// blockComment consumes the comment at pos. It returns false when the
// comment is unterminated.
func (s *jsScanner) blockComment() bool {
	end := bytes.Index(s.src[s.pos+2:], []byte("*/"))
	if end < 0 {
		return false
	}
	body := s.src[s.pos : s.pos+2+end+2]
	switch {
	case keepComment(body):
		s.out = append(s.out, body...)
	case hasLineBreak(body):
		s.out = append(s.out, '\n')
	default:
		s.out = append(s.out, ' ')
	}
	s.pos += len(body)
	return true
}

// template emits template literal text starting skip bytes after pos (past
// the opening backtick or closing brace) up to and including the closing
// backtick or the next "${".
func (s *jsScanner) template(skip int) {
	i := s.pos + skip
	n := len(s.src)
	for i < n {
		switch s.src[i] {
		case '\\':
			i += 2
			continue
		case '`':
			s.emit(i + 1 - s.pos)
			return
		case '$':
			if i+1 < n && s.src[i+1] == '{' {
				s.emit(i + 2 - s.pos)
				s.templates = append(s.templates, s.depth)
				return
			}
		}
		i++
	}
	if i > n {
		i = n
	}
	s.emit(i - s.pos)
}

func keepComment(body []byte) bool {
	return bytes.HasPrefix(body, []byte("/*!")) ||
		bytes.Contains(body, []byte("@license")) ||
		bytes.Contains(body, []byte("@preserve"))
}

func hasLineBreak(b []byte) bool {
	return bytes.ContainsAny(b, "\n\r\u2028\u2029")
}

func indexLineEnd(b []byte) int {
	if i := bytes.IndexAny(b, "\n\r"); i >= 0 {
		return i
	}
	return len(b)
}

// stringLen returns the length of the quoted string at the start of b,
// stopping early at an unescaped line break.
func stringLen(b []byte, quote byte) int {
	for i := 1; i < len(b); i++ {
		switch b[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		case '\n', '\r':
			return i
		}
	}
	return len(b)
}

// regexLen returns the length of the regular expression literal at the
// start of b including flags, or 1 when b does not hold a complete one on
// a single line (so the slash is treated as division).
func regexLen(b []byte) int {
	inClass := false
	for i := 1; i < len(b); i++ {
		switch b[i] {
		case '\\':
			i++
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '\n', '\r':
			return 1
		case '/':
			if inClass {
				continue
			}
			j := i + 1
			for j < len(b) && isIdentByte(b[j]) {
				j++
			}
			return j
		}
	}
	return 1
}

var regexKeywords = map[string]struct{}{
	"return": {}, "typeof": {}, "instanceof": {}, "in": {}, "of": {}, "new": {},
	"delete": {}, "void": {}, "throw": {}, "case": {}, "do": {}, "else": {},
	"yield": {}, "await": {},
}

// regexAllowed decides from the already emitted code whether a slash starts
// a regular expression rather than a division.
func regexAllowed(out []byte) bool {
	i := len(out) - 1
	for i >= 0 && isSpaceByte(out[i]) {
		i--
	}
	if i < 0 {
		return true
	}
	c := out[i]
	if isIdentByte(c) {
		end := i + 1
		for i >= 0 && isIdentByte(out[i]) {
			i--
		}
		_, ok := regexKeywords[string(out[i+1:end])]
		return ok
	}
	switch c {
	case ')', ']', '"', '\'', '`':
		return false
	}
	return true
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
