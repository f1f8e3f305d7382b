// Package tokenizer scans T-SQL source text into tokens.
//
// The scanner never fails: unterminated strings, quoted identifiers and block
// comments run to the end of the input and are flagged as Unterminated, and
// bytes that are not valid UTF-8 are emitted as single-byte symbols. Callers
// that rewrite SQL text rely on the byte offsets to tell code apart from
// literal and comment text.
package tokenizer

import (
	"iter"
	"unicode"
	"unicode/utf8"
)

const eofRune = -1

// Scan tokenizes src and returns the full token stream, terminated by a
// KindEOF token.
func Scan(src string) []Token {
	tokens := make([]Token, 0, len(src)/4+1)
	for tok := range ScanSeq(src) {
		tokens = append(tokens, tok)
	}
	return tokens
}

// ScanSeq returns an iterator over tokens in src. The final token yielded is
// always KindEOF unless the consumer stops early.
//
// Example:
//
//	for tok := range tokenizer.ScanSeq(sql) {
//	    if tok.IsSymbol(";") {
//	        ...
//	    }
//	}
func ScanSeq(src string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		s := &scanner{src: src, line: 1, column: 1}
		for {
			tok := s.next()
			if !yield(tok) || tok.Kind == KindEOF {
				return
			}
		}
	}
}

type scanner struct {
	src    string
	index  int
	line   int
	column int

	// start of the token being scanned
	start     int
	startLine int
	startCol  int
}

func (s *scanner) next() Token {
	for {
		r := s.peek()
		switch {
		case r == eofRune:
			return Token{Kind: KindEOF, Offset: len(s.src), End: len(s.src), Line: s.line, Column: s.column}
		case unicode.IsSpace(r):
			s.advance()
			continue
		}

		s.mark()
		switch {
		case r == '-' && s.peekNext() == '-':
			return s.lineComment()
		case r == '/' && s.peekNext() == '*':
			return s.blockComment()
		case r == '\'':
			return s.stringLiteral()
		case (r == 'N' || r == 'n') && s.peekNext() == '\'':
			s.advance() // N prefix
			return s.stringLiteral()
		case r == '"':
			return s.quotedIdentifier('"')
		case r == '[':
			return s.quotedIdentifier(']')
		case r == '@' && (isIdentifierPart(s.peekNext()) || s.peekNext() == '@'):
			return s.variable()
		case isIdentifierStart(r):
			return s.identifier()
		case isDigit(r):
			return s.number()
		default:
			return s.symbol()
		}
	}
}

func (s *scanner) mark() {
	s.start = s.index
	s.startLine = s.line
	s.startCol = s.column
}

func (s *scanner) emit(kind Kind) Token {
	return Token{
		Kind:   kind,
		Text:   s.src[s.start:s.index],
		Offset: s.start,
		End:    s.index,
		Line:   s.startLine,
		Column: s.startCol,
	}
}

func (s *scanner) unterminated(kind Kind) Token {
	tok := s.emit(kind)
	tok.Unterminated = true
	return tok
}

func (s *scanner) lineComment() Token {
	for {
		r := s.peek()
		if r == eofRune || r == '\n' {
			return s.emit(KindComment)
		}
		s.advance()
	}
}

// blockComment consumes a /* */ comment. T-SQL block comments nest.
func (s *scanner) blockComment() Token {
	s.advance() // '/'
	s.advance() // '*'
	depth := 1
	for {
		r := s.peek()
		switch {
		case r == eofRune:
			return s.unterminated(KindComment)
		case r == '/' && s.peekNext() == '*':
			s.advance()
			s.advance()
			depth++
		case r == '*' && s.peekNext() == '/':
			s.advance()
			s.advance()
			depth--
			if depth == 0 {
				return s.emit(KindComment)
			}
		default:
			s.advance()
		}
	}
}

func (s *scanner) stringLiteral() Token {
	s.advance() // opening quote
	for {
		r := s.peek()
		if r == eofRune {
			return s.unterminated(KindString)
		}
		s.advance()
		if r == '\'' {
			if s.peek() == '\'' {
				s.advance()
				continue
			}
			return s.emit(KindString)
		}
	}
}

func (s *scanner) quotedIdentifier(closing rune) Token {
	s.advance() // opening quote or bracket
	for {
		r := s.peek()
		if r == eofRune {
			return s.unterminated(KindQuotedIdentifier)
		}
		s.advance()
		if r == closing {
			if s.peek() == closing {
				s.advance()
				continue
			}
			return s.emit(KindQuotedIdentifier)
		}
	}
}

func (s *scanner) variable() Token {
	s.advance() // '@'
	if s.peek() == '@' {
		s.advance()
	}
	for isIdentifierPart(s.peek()) {
		s.advance()
	}
	return s.emit(KindVariable)
}

func (s *scanner) identifier() Token {
	s.advance()
	for isIdentifierPart(s.peek()) {
		s.advance()
	}
	tok := s.emit(KindIdentifier)
	if IsKeyword(tok.Text) {
		tok.Kind = KindKeyword
	}
	return tok
}

func (s *scanner) number() Token {
	s.advanceDigits()
	if s.peek() == '.' {
		s.advance()
		s.advanceDigits()
	}
	if next := s.peek(); (next == 'e' || next == 'E') && (isDigit(s.peekNext()) || s.peekNext() == '+' || s.peekNext() == '-') {
		s.advance()
		if sign := s.peek(); sign == '+' || sign == '-' {
			s.advance()
		}
		s.advanceDigits()
	}
	return s.emit(KindNumber)
}

func (s *scanner) symbol() Token {
	first := s.peek()
	s.advance()
	switch first {
	case '<':
		if next := s.peek(); next == '=' || next == '>' {
			s.advance()
		}
	case '>', '=':
		if s.peek() == '=' {
			s.advance()
		}
	case '!':
		if next := s.peek(); next == '=' || next == '<' || next == '>' {
			s.advance()
		}
	case ':':
		if s.peek() == ':' {
			s.advance()
		}
	}
	return s.emit(KindSymbol)
}

func (s *scanner) advanceDigits() {
	for isDigit(s.peek()) {
		s.advance()
	}
}

func (s *scanner) peek() rune {
	if s.index >= len(s.src) {
		return eofRune
	}
	r, _ := utf8.DecodeRuneInString(s.src[s.index:])
	return r
}

func (s *scanner) peekNext() rune {
	if s.index >= len(s.src) {
		return eofRune
	}
	_, size := utf8.DecodeRuneInString(s.src[s.index:])
	idx := s.index + size
	if idx >= len(s.src) {
		return eofRune
	}
	r, _ := utf8.DecodeRuneInString(s.src[idx:])
	return r
}

func (s *scanner) advance() {
	if s.index >= len(s.src) {
		return
	}
	r, size := utf8.DecodeRuneInString(s.src[s.index:])
	s.index += size
	if r == '\n' {
		s.line++
		s.column = 1
		return
	}
	s.column++
}

func isIdentifierStart(r rune) bool {
	return r == '_' || r == '#' || unicode.IsLetter(r)
}

func isIdentifierPart(r rune) bool {
	return isIdentifierStart(r) || r == '$' || r == '@' || unicode.IsDigit(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
