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
Package sql contains the Abstract Syntax Tree (AST) definitions.

AST Design Pattern:
===================

Statements and expressions are closed sets of node types:

  1. All statement types implement the Statement interface
  2. The statementNode() and exprNode() methods are unexported markers,
     so no type outside this package can join the set
  3. The Executor and Planner use type switches to handle each variant

AST Node Hierarchy:
===================

	Statement (interface)
	├── SelectStmt
	├── InsertStmt
	├── UpdateStmt
	├── DeleteStmt
	├── CreateTableStmt
	├── BeginStmt
	├── CommitStmt
	└── RollbackStmt

	Expr (interface)
	├── BinaryExpr   (a single comparison)
	├── ColumnRef
	└── Literal

Example AST:
============

For the statement: SELECT name FROM users WHERE id = 1

	&SelectStmt{
	    Columns: []string{"name"},
	    Table:   "users",
	    Where: &BinaryExpr{
	        Left:  &ColumnRef{Name: "id"},
	        Op:    OpEq,
	        Right: &Literal{Value: Number(1)},
	    },
	}
*/
package sql

import (
	"fmt"
	"strings"
)

// Statement is a parsed SQL statement.
type Statement interface {
	statementNode()
	String() string
}

// Expr is an expression node.
type Expr interface {
	exprNode()
	String() string
}

// CompareOp is a comparison operator.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// String returns the operator symbol.
func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	default:
		return "?"
	}
}

// ColumnRef names a column of the current row.
type ColumnRef struct {
	Name string
}

func (*ColumnRef) exprNode() {}

func (c *ColumnRef) String() string { return c.Name }

// Literal is a constant value.
type Literal struct {
	Value Value
}

func (*Literal) exprNode() {}

func (l *Literal) String() string {
	if l.Value.Type == ValueString {
		return "'" + strings.ReplaceAll(l.Value.Str, "'", "''") + "'"
	}
	return l.Value.String()
}

// BinaryExpr compares two operands.
type BinaryExpr struct {
	Left  Expr
	Op    CompareOp
	Right Expr
}

func (*BinaryExpr) exprNode() {}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("%s %s %s", b.Left, b.Op, b.Right)
}

// SelectStmt represents SELECT <cols> FROM <table> [WHERE <expr>].
// Columns is nil for SELECT *.
type SelectStmt struct {
	Columns []string
	Table   string
	Where   *BinaryExpr
}

func (*SelectStmt) statementNode() {}

func (s *SelectStmt) String() string {
	cols := "*"
	if s.Columns != nil {
		cols = strings.Join(s.Columns, ", ")
	}
	return fmt.Sprintf("SELECT %s FROM %s%s", cols, s.Table, whereString(s.Where))
}

// InsertStmt represents INSERT INTO <table> [(cols)] VALUES (...).
// Columns is nil when no column list was given.
type InsertStmt struct {
	Table   string
	Columns []string
	Values  []Value
}

func (*InsertStmt) statementNode() {}

func (s *InsertStmt) String() string {
	vals := make([]string, len(s.Values))
	for i, v := range s.Values {
		vals[i] = (&Literal{Value: v}).String()
	}
	cols := ""
	if s.Columns != nil {
		cols = " (" + strings.Join(s.Columns, ", ") + ")"
	}
	return fmt.Sprintf("INSERT INTO %s%s VALUES (%s)", s.Table, cols, strings.Join(vals, ", "))
}

// Assignment is one "column = literal" in an UPDATE.
type Assignment struct {
	Column string
	Value  Value
}

// UpdateStmt represents UPDATE <table> SET ... [WHERE <expr>].
type UpdateStmt struct {
	Table string
	Set   []Assignment
	Where *BinaryExpr
}

func (*UpdateStmt) statementNode() {}

func (s *UpdateStmt) String() string {
	parts := make([]string, len(s.Set))
	for i, a := range s.Set {
		parts[i] = fmt.Sprintf("%s = %s", a.Column, (&Literal{Value: a.Value}).String())
	}
	return fmt.Sprintf("UPDATE %s SET %s%s", s.Table, strings.Join(parts, ", "), whereString(s.Where))
}

// DeleteStmt represents DELETE FROM <table> WHERE <expr>.
type DeleteStmt struct {
	Table string
	Where *BinaryExpr
}

func (*DeleteStmt) statementNode() {}

func (s *DeleteStmt) String() string {
	return fmt.Sprintf("DELETE FROM %s%s", s.Table, whereString(s.Where))
}

// ColumnDef is one column of a CREATE TABLE.
type ColumnDef struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// CreateTableStmt represents CREATE TABLE <table> (<col> <type>, ...).
// The first column is the primary key.
type CreateTableStmt struct {
	Table   string
	Columns []ColumnDef
}

func (*CreateTableStmt) statementNode() {}

func (s *CreateTableStmt) String() string {
	cols := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = c.Name + " " + string(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", s.Table, strings.Join(cols, ", "))
}

// BeginStmt represents BEGIN [TRANSACTION].
type BeginStmt struct{}

func (*BeginStmt) statementNode() {}
func (*BeginStmt) String() string { return "BEGIN" }

// CommitStmt represents COMMIT.
type CommitStmt struct{}

func (*CommitStmt) statementNode() {}
func (*CommitStmt) String() string { return "COMMIT" }

// RollbackStmt represents ROLLBACK.
type RollbackStmt struct{}

func (*RollbackStmt) statementNode() {}
func (*RollbackStmt) String() string { return "ROLLBACK" }

func whereString(w *BinaryExpr) string {
	if w == nil {
		return ""
	}
	return " WHERE " + w.String()
}
