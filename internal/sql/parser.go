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
Package sql contains the Parser component for SQL statement parsing.

Parser Overview:
================

The Parser is the second stage of the query pipeline. It consumes tokens
from the Lexer and builds an AST. It is a recursive descent parser with one
token of lookahead: each grammar rule is a method, and the parser keeps the
current token (cur) and the next one (peek).

Grammar:
========

	statement := (select | insert | update | delete | create
	             | begin | commit | rollback) [";"]
	select    := SELECT ("*" | ident ("," ident)*) FROM ident [WHERE expr]
	insert    := INSERT INTO ident ["(" ident ("," ident)* ")"]
	             VALUES "(" literal ("," literal)* ")"
	update    := UPDATE ident SET ident "=" literal ("," ident "=" literal)*
	             [WHERE expr]
	delete    := DELETE FROM ident WHERE expr
	create    := CREATE TABLE ident "(" ident type ("," ident type)* ")"
	type      := INT | INTEGER | FLOAT | TEXT | VARCHAR ["(" number ")"]
	begin     := BEGIN [TRANSACTION]
	commit    := COMMIT [TRANSACTION]
	rollback  := ROLLBACK [TRANSACTION]
	expr      := operand cmp operand
	operand   := ident | literal
	literal   := number | string | NULL
	cmp       := "=" | "!=" | "<>" | "<" | "<=" | ">" | ">="

A WHERE clause holds exactly one comparison. AND and OR are rejected with a
ParseError rather than being half-understood.

Error Handling:
===============

The first mismatch stops parsing with a ParseError naming what was expected,
what was found and the byte position of the offending token. Lexer errors
are passed through unchanged.
*/
package sql

import (
	"strconv"

	lerrors "logdb/internal/errors"
)

// Parser builds an AST from a token stream.
type Parser struct {
	lexer *Lexer
	cur   Token
	peek  Token
	err   error // first lexer error
}

// NewParser creates a Parser reading from lexer.
func NewParser(lexer *Lexer) *Parser {
	p := &Parser{lexer: lexer}
	p.nextToken()
	p.nextToken()
	return p
}

// ParseStatement parses exactly one statement from input.
func ParseStatement(input string) (Statement, error) {
	return NewParser(NewLexer(input)).Parse()
}

func (p *Parser) nextToken() {
	p.cur = p.peek
	if p.err != nil {
		return
	}
	tok, err := p.lexer.NextToken()
	if err != nil {
		p.err = err
		p.peek = Token{Type: TokenEOF, Pos: len(p.lexer.input)}
		return
	}
	p.peek = tok
}

// Parse parses one statement and requires that nothing but an optional
// semicolon follows it.
func (p *Parser) Parse() (Statement, error) {
	if p.err != nil && p.cur.Type == TokenEOF {
		return nil, p.err
	}

	var stmt Statement
	var err error

	switch {
	case p.curIsKeyword("SELECT"):
		stmt, err = p.parseSelect()
	case p.curIsKeyword("INSERT"):
		stmt, err = p.parseInsert()
	case p.curIsKeyword("UPDATE"):
		stmt, err = p.parseUpdate()
	case p.curIsKeyword("DELETE"):
		stmt, err = p.parseDelete()
	case p.curIsKeyword("CREATE"):
		stmt, err = p.parseCreate()
	case p.curIsKeyword("BEGIN"):
		p.nextToken()
		p.skipKeyword("TRANSACTION")
		stmt = &BeginStmt{}
	case p.curIsKeyword("COMMIT"):
		p.nextToken()
		p.skipKeyword("TRANSACTION")
		stmt = &CommitStmt{}
	case p.curIsKeyword("ROLLBACK"):
		p.nextToken()
		p.skipKeyword("TRANSACTION")
		stmt = &RollbackStmt{}
	default:
		return nil, p.unexpected("SELECT, INSERT, UPDATE, DELETE, CREATE, BEGIN, COMMIT or ROLLBACK")
	}
	if err != nil {
		return nil, err
	}

	if p.cur.Type == TokenSemicolon {
		p.nextToken()
	}
	if p.cur.Type != TokenEOF {
		e := p.unexpected("end of statement")
		if p.curIsKeyword("AND") || p.curIsKeyword("OR") {
			if de, ok := e.(*lerrors.DBError); ok {
				de.WithHint("WHERE supports a single comparison; AND and OR are not supported")
			}
		}
		return nil, e
	}
	if p.err != nil {
		return nil, p.err
	}
	return stmt, nil
}

// unexpected reports a mismatch at the current token. A pending lexer
// error wins, since it explains why the token stream ended early.
func (p *Parser) unexpected(expected string) error {
	if p.err != nil {
		return p.err
	}
	return lerrors.ParseError(expected, p.cur.String(), p.cur.Pos)
}

func (p *Parser) curIsKeyword(kw string) bool {
	return p.cur.Type == TokenKeyword && p.cur.Value == kw
}

func (p *Parser) skipKeyword(kw string) {
	if p.curIsKeyword(kw) {
		p.nextToken()
	}
}

// expectKeyword consumes the keyword kw.
func (p *Parser) expectKeyword(kw string) error {
	if !p.curIsKeyword(kw) {
		return p.unexpected(kw)
	}
	p.nextToken()
	return nil
}

// expect consumes a token of type t.
func (p *Parser) expect(t TokenType) (Token, error) {
	if p.cur.Type != t {
		return Token{}, p.unexpected(t.String())
	}
	tok := p.cur
	p.nextToken()
	return tok, nil
}

// expectPeek advances if the next token has type t.
func (p *Parser) expectPeek(t TokenType) bool {
	if p.peek.Type == t {
		p.nextToken()
		return true
	}
	return false
}

func (p *Parser) parseIdent(what string) (string, error) {
	if p.cur.Type != TokenIdent {
		return "", p.unexpected(what)
	}
	name := p.cur.Value
	p.nextToken()
	return name, nil
}

// parseIdentList parses ident ("," ident)*.
func (p *Parser) parseIdentList(what string) ([]string, error) {
	var names []string
	for {
		name, err := p.parseIdent(what)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if p.cur.Type != TokenComma {
			return names, nil
		}
		p.nextToken()
	}
}

// parseSelect parses SELECT <cols> FROM <table> [WHERE <expr>].
func (p *Parser) parseSelect() (*SelectStmt, error) {
	p.nextToken()
	stmt := &SelectStmt{}

	if p.cur.Type == TokenStar {
		p.nextToken()
	} else {
		cols, err := p.parseIdentList("column name or '*'")
		if err != nil {
			return nil, err
		}
		stmt.Columns = cols
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent("table name")
	if err != nil {
		return nil, err
	}
	stmt.Table = table

	if p.curIsKeyword("WHERE") {
		where, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

// parseInsert parses INSERT INTO <table> [(cols)] VALUES (<literals>).
func (p *Parser) parseInsert() (*InsertStmt, error) {
	p.nextToken()
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent("table name")
	if err != nil {
		return nil, err
	}
	stmt := &InsertStmt{Table: table}

	if p.cur.Type == TokenLParen {
		p.nextToken()
		cols, err := p.parseIdentList("column name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		stmt.Columns = cols
	}

	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	for {
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Values = append(stmt.Values, v)
		if p.cur.Type != TokenComma {
			break
		}
		p.nextToken()
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseUpdate parses UPDATE <table> SET col = literal, ... [WHERE <expr>].
func (p *Parser) parseUpdate() (*UpdateStmt, error) {
	p.nextToken()
	table, err := p.parseIdent("table name")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}

	stmt := &UpdateStmt{Table: table}
	for {
		col, err := p.parseIdent("column name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenEqual); err != nil {
			return nil, err
		}
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Set = append(stmt.Set, Assignment{Column: col, Value: v})
		if p.cur.Type != TokenComma {
			break
		}
		p.nextToken()
	}

	if p.curIsKeyword("WHERE") {
		where, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

// parseDelete parses DELETE FROM <table> WHERE <expr>. The WHERE clause is
// mandatory so that a typo cannot empty a table.
func (p *Parser) parseDelete() (*DeleteStmt, error) {
	p.nextToken()
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent("table name")
	if err != nil {
		return nil, err
	}
	if !p.curIsKeyword("WHERE") {
		return nil, p.unexpected("WHERE")
	}
	where, err := p.parseWhere()
	if err != nil {
		return nil, err
	}
	return &DeleteStmt{Table: table, Where: where}, nil
}

// parseCreate parses CREATE TABLE <table> (<col> <type>, ...).
func (p *Parser) parseCreate() (*CreateTableStmt, error) {
	p.nextToken()
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent("table name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}

	stmt := &CreateTableStmt{Table: table}
	for {
		name, err := p.parseIdent("column name")
		if err != nil {
			return nil, err
		}
		if p.cur.Type != TokenKeyword {
			return nil, p.unexpected("column type")
		}
		typ, ok := ParseColumnType(p.cur.Value)
		if !ok {
			return nil, p.unexpected("column type")
		}
		// VARCHAR(n): the length is accepted and not enforced.
		if p.cur.Value == "VARCHAR" && p.expectPeek(TokenLParen) {
			p.nextToken()
			if _, err := p.expect(TokenNumber); err != nil {
				return nil, err
			}
			if p.cur.Type != TokenRParen {
				return nil, p.unexpected("')'")
			}
		}
		p.nextToken()

		stmt.Columns = append(stmt.Columns, ColumnDef{Name: name, Type: typ})
		if p.cur.Type != TokenComma {
			break
		}
		p.nextToken()
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseWhere parses WHERE operand cmp operand.
func (p *Parser) parseWhere() (*BinaryExpr, error) {
	p.nextToken()

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	var op CompareOp
	switch p.cur.Type {
	case TokenEqual:
		op = OpEq
	case TokenNotEqual:
		op = OpNe
	case TokenLessThan:
		op = OpLt
	case TokenLessEqual:
		op = OpLe
	case TokenGreaterThan:
		op = OpGt
	case TokenGreaterEqual:
		op = OpGe
	default:
		return nil, p.unexpected("comparison operator")
	}
	p.nextToken()

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Left: left, Op: op, Right: right}, nil
}

func (p *Parser) parseOperand() (Expr, error) {
	if p.cur.Type == TokenIdent {
		name := p.cur.Value
		p.nextToken()
		return &ColumnRef{Name: name}, nil
	}
	v, err := p.parseLiteral()
	if err != nil {
		return nil, p.unexpected("column name or literal")
	}
	return &Literal{Value: v}, nil
}

// parseLiteral parses a number, string or NULL.
func (p *Parser) parseLiteral() (Value, error) {
	tok := p.cur
	switch {
	case tok.Type == TokenNumber:
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return Null, lerrors.ParseError("number", tok.String(), tok.Pos)
		}
		p.nextToken()
		return Number(f), nil
	case tok.Type == TokenString:
		p.nextToken()
		return String(tok.Value), nil
	case p.curIsKeyword("NULL"):
		p.nextToken()
		return Null, nil
	}
	return Null, p.unexpected("literal")
}
