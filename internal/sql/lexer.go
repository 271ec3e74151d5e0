/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package sql contains the Lexer component for SQL tokenization.

Lexer Overview:
===============

The Lexer is the first stage of the query pipeline. It turns a statement
string into a stream of tokens for the Parser. Tokens are produced lazily,
one per NextToken call.

	Input: "SELECT name FROM t WHERE id = 1"

	Output Tokens:
	  1. {TokenKeyword, "SELECT", 0}
	  2. {TokenIdent,   "name",   7}
	  3. {TokenKeyword, "FROM",   12}
	  4. {TokenIdent,   "t",      17}
	  5. {TokenKeyword, "WHERE",  19}
	  6. {TokenIdent,   "id",     25}
	  7. {TokenEqual,   "=",      28}
	  8. {TokenNumber,  "1",      30}
	  9. {TokenEOF,     "",       31}

Every token carries the byte offset where it starts, which ends up in
LexError and ParseError messages.

String Literals:
================

Strings may be enclosed in single or double quotes. A quote character is
escaped by doubling it:

	'it''s'    → it's
	"say ""hi"""  → say "hi"

Errors:
=======

The lexer never skips input it does not understand. An unrecognized
character, or a string with no closing quote, is a LexError carrying the
position of the offending byte.
*/
package sql

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	lerrors "logdb/internal/errors"
)

// TokenType represents the type of a lexical token.
type TokenType int

// Token type constants.
const (
	TokenEOF          TokenType = iota // End of input
	TokenIdent                         // Identifier (table name, column name)
	TokenString                        // String literal ('hello' or "hello")
	TokenNumber                        // Numeric literal (123, -4.5)
	TokenKeyword                       // SQL keyword (SELECT, FROM, etc.)
	TokenComma                         // ,
	TokenLParen                        // (
	TokenRParen                        // )
	TokenSemicolon                     // ;
	TokenStar                          // *
	TokenEqual                         // =
	TokenNotEqual                      // != or <>
	TokenLessThan                      // <
	TokenLessEqual                     // <=
	TokenGreaterThan                   // >
	TokenGreaterEqual                  // >=
)

var tokenNames = map[TokenType]string{
	TokenEOF:          "end of input",
	TokenIdent:        "identifier",
	TokenString:       "string",
	TokenNumber:       "number",
	TokenKeyword:      "keyword",
	TokenComma:        "','",
	TokenLParen:       "'('",
	TokenRParen:       "')'",
	TokenSemicolon:    "';'",
	TokenStar:         "'*'",
	TokenEqual:        "'='",
	TokenNotEqual:     "'!='",
	TokenLessThan:     "'<'",
	TokenLessEqual:    "'<='",
	TokenGreaterThan:  "'>'",
	TokenGreaterEqual: "'>='",
}

// String returns a description of the token type for error messages.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// keywords lists the reserved words. Matching is case-insensitive.
var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true,
	"INSERT": true, "INTO": true, "VALUES": true,
	"UPDATE": true, "SET": true, "DELETE": true,
	"CREATE": true, "TABLE": true,
	"BEGIN": true, "TRANSACTION": true, "COMMIT": true, "ROLLBACK": true,
	"NULL": true, "AND": true, "OR": true, "NOT": true,
	"INT": true, "INTEGER": true, "FLOAT": true, "TEXT": true, "VARCHAR": true,
}

// Token represents a single lexical unit from the input.
type Token struct {
	Type  TokenType
	Value string
	Pos   int // byte offset of the first character
}

// String renders the token the way it appears in error messages.
func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenString:
		return fmt.Sprintf("string %q", t.Value)
	case TokenIdent:
		return fmt.Sprintf("identifier %q", t.Value)
	default:
		return t.Value
	}
}

// Lexer transforms an input string into a stream of tokens.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new Lexer for the given input string.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize lexes the whole input. The last token is always TokenEOF.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

// NextToken advances the lexer and returns the next token. After the end of
// input it keeps returning TokenEOF.
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: len(l.input)}, nil
	}

	start := l.pos
	ch := l.input[l.pos]

	switch {
	case isIdentStart(ch):
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos++
		}
		lit := l.input[start:l.pos]
		if upper := strings.ToUpper(lit); keywords[upper] {
			return Token{Type: TokenKeyword, Value: upper, Pos: start}, nil
		}
		return Token{Type: TokenIdent, Value: lit, Pos: start}, nil

	case isDigit(ch), ch == '-' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]):
		return l.readNumber(), nil

	case ch == '\'' || ch == '"':
		return l.readString(ch)
	}

	l.pos++
	switch ch {
	case ',':
		return Token{Type: TokenComma, Value: ",", Pos: start}, nil
	case '(':
		return Token{Type: TokenLParen, Value: "(", Pos: start}, nil
	case ')':
		return Token{Type: TokenRParen, Value: ")", Pos: start}, nil
	case ';':
		return Token{Type: TokenSemicolon, Value: ";", Pos: start}, nil
	case '*':
		return Token{Type: TokenStar, Value: "*", Pos: start}, nil
	case '=':
		return Token{Type: TokenEqual, Value: "=", Pos: start}, nil
	case '!':
		if l.match('=') {
			return Token{Type: TokenNotEqual, Value: "!=", Pos: start}, nil
		}
	case '<':
		if l.match('=') {
			return Token{Type: TokenLessEqual, Value: "<=", Pos: start}, nil
		}
		if l.match('>') {
			return Token{Type: TokenNotEqual, Value: "<>", Pos: start}, nil
		}
		return Token{Type: TokenLessThan, Value: "<", Pos: start}, nil
	case '>':
		if l.match('=') {
			return Token{Type: TokenGreaterEqual, Value: ">=", Pos: start}, nil
		}
		return Token{Type: TokenGreaterThan, Value: ">", Pos: start}, nil
	}

	r, _ := utf8.DecodeRuneInString(l.input[start:])
	l.pos = start
	return Token{}, lerrors.LexError(start, fmt.Sprintf("unexpected character %q", r))
}

func (l *Lexer) match(next byte) bool {
	if l.pos < len(l.input) && l.input[l.pos] == next {
		l.pos++
		return true
	}
	return false
}

// readNumber consumes an optional minus sign, digits and an optional
// fractional part.
func (l *Lexer) readNumber() Token {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos+1 < len(l.input) && l.input[l.pos] == '.' && isDigit(l.input[l.pos+1]) {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	return Token{Type: TokenNumber, Value: l.input[start:l.pos], Pos: start}
}

// readString consumes a quoted literal. A doubled quote is an escaped quote.
func (l *Lexer) readString(quote byte) (Token, error) {
	start := l.pos
	l.pos++

	var b strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == quote {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == quote {
				b.WriteByte(quote)
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Type: TokenString, Value: b.String(), Pos: start}, nil
		}
		b.WriteByte(ch)
		l.pos++
	}

	l.pos = start
	return Token{}, lerrors.UnclosedString(start)
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += size
	}
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
