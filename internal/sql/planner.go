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
Package sql contains the query Planner.

Planner Overview:
=================

The Planner turns a SELECT into a tree of operators:

	Project(columns)          omitted for SELECT *
	  └── Filter(predicate)   omitted without WHERE
	        └── TableScan(table)

Every operator owns at most one child and TableScan is the only leaf. A plan
is built for one execution and then discarded.

Point Lookups:
==============

When the WHERE clause compares the primary key for equality with a literal
of the key's type, the TableScan is given that key and reads one row with a
single Get instead of enumerating the table. A TEXT key is only rewritten
under binary collation: nocase and unicode equality can match keys whose
bytes differ from the literal, and those rows live under other store keys.
The Filter stays in the tree, so the result is the same with or without the
rewrite.

UPDATE and DELETE reuse the same Filter(TableScan) shape to find the rows
they change.
*/
package sql

import (
	"fmt"
	"strings"

	lerrors "logdb/internal/errors"
)

// Operator is a node of a physical plan.
type Operator interface {
	operatorNode()
}

// TableScan reads the rows of one table in byte-wise order of their store
// keys, so numeric keys sort as text (10 before 2). With a PointKey it reads
// at most the one row stored under that key.
type TableScan struct {
	Table    string
	Schema   TableSchema
	PointKey *Value
}

// Filter passes through the rows for which Predicate is true.
type Filter struct {
	Input     Operator
	Predicate *BinaryExpr
}

// Project narrows each row to Columns.
type Project struct {
	Input   Operator
	Columns []string
}

func (*TableScan) operatorNode() {}
func (*Filter) operatorNode()    {}
func (*Project) operatorNode()   {}

// PlanSelect builds the operator tree for a SELECT on the table described
// by schema. collator is the one the plan's Filter will compare strings
// with; nil means binary.
func PlanSelect(stmt *SelectStmt, schema TableSchema, collator Collator) (Operator, error) {
	for _, col := range stmt.Columns {
		if _, ok := schema.Column(col); !ok {
			return nil, lerrors.ColumnNotFound(col, schema.Name)
		}
	}

	op, err := planScan(schema, stmt.Where, collator)
	if err != nil {
		return nil, err
	}
	if stmt.Columns != nil {
		op = &Project{Input: op, Columns: stmt.Columns}
	}
	return op, nil
}

// planScan builds TableScan, wrapped in a Filter when where is set.
func planScan(schema TableSchema, where *BinaryExpr, collator Collator) (Operator, error) {
	scan := &TableScan{Table: schema.Name, Schema: schema}
	if where == nil {
		return scan, nil
	}
	if err := checkColumns(where, schema); err != nil {
		return nil, err
	}
	scan.PointKey = pointKey(where, schema, collator)
	return &Filter{Input: scan, Predicate: where}, nil
}

func checkColumns(where *BinaryExpr, schema TableSchema) error {
	for _, side := range []Expr{where.Left, where.Right} {
		if ref, ok := side.(*ColumnRef); ok {
			if _, found := schema.Column(ref.Name); !found {
				return lerrors.ColumnNotFound(ref.Name, schema.Name)
			}
		}
	}
	return nil
}

// pointKey returns the primary key value when where is "pk = literal" (in
// either order), the literal has the key column's type, and equality on
// that type is byte equality under collator.
func pointKey(where *BinaryExpr, schema TableSchema, collator Collator) *Value {
	if where.Op != OpEq {
		return nil
	}

	ref, lit := asColumnLiteral(where.Left, where.Right)
	if ref == nil {
		ref, lit = asColumnLiteral(where.Right, where.Left)
	}
	if ref == nil {
		return nil
	}

	pk := schema.PrimaryKey()
	if ref.Name != pk.Name {
		return nil
	}
	switch {
	case lit.Value.Type == ValueNumber && (pk.Type == TypeINT || pk.Type == TypeFLOAT):
	case lit.Value.Type == ValueString && pk.Type == TypeTEXT && isBinary(collator):
	default:
		return nil
	}
	v := lit.Value
	return &v
}

func isBinary(c Collator) bool {
	if c == nil {
		return true
	}
	_, ok := c.(BinaryCollator)
	return ok
}

func asColumnLiteral(a, b Expr) (*ColumnRef, *Literal) {
	ref, ok := a.(*ColumnRef)
	if !ok {
		return nil, nil
	}
	lit, ok := b.(*Literal)
	if !ok {
		return nil, nil
	}
	return ref, lit
}

// Explain renders the operator tree, one operator per line, children
// indented below their parent.
func Explain(op Operator) string {
	var b strings.Builder
	explain(&b, op, 0)
	return strings.TrimRight(b.String(), "\n")
}

func explain(b *strings.Builder, op Operator, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n := op.(type) {
	case *Project:
		fmt.Fprintf(b, "%sProject [%s]\n", indent, strings.Join(n.Columns, ", "))
		explain(b, n.Input, depth+1)
	case *Filter:
		fmt.Fprintf(b, "%sFilter %s\n", indent, n.Predicate)
		explain(b, n.Input, depth+1)
	case *TableScan:
		if n.PointKey != nil {
			fmt.Fprintf(b, "%sTableScan %s (key %s)\n", indent, n.Table, (&Literal{Value: *n.PointKey}).String())
		} else {
			fmt.Fprintf(b, "%sTableScan %s\n", indent, n.Table)
		}
	}
}
