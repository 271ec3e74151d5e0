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
Package sql contains the Executor component for SQL statement execution.

Executor Overview:
==================

The Executor runs parsed statements against a storage engine:

  - SELECT builds a plan and pulls rows through it
  - INSERT, UPDATE and DELETE validate against the schema and then write
    rows with Put and Delete
  - CREATE TABLE registers a schema in the Catalog
  - BEGIN, COMMIT and ROLLBACK drive the engine transaction

Execution Flow:
===============

	SQL String → Lexer → Parser → AST → Planner → Executor → QueryResult
	                                                  ↓
	                                            Storage Engine

Row Iteration:
==============

Operators are executed pull-style. Each operator becomes a RowIterator
whose Next returns the next row, false at the end, or an error. A TableScan
reads a row from the engine only when asked for it.

Atomic Changes:
===============

An UPDATE or DELETE that touches more than one row runs inside an engine
transaction, so a failure part way leaves no row changed. When the caller
already opened a transaction with BEGIN the statement joins it.

Storage Key Conventions:
========================

	schema:<table>     - Table schema (managed by Catalog)
	row:<table>:<pk>   - Table row data (JSON)
*/
package sql

import (
	"encoding/json"
	"errors"
	"fmt"

	lerrors "logdb/internal/errors"
	"logdb/internal/logging"
	"logdb/internal/metrics"
	"logdb/internal/storage"
)

// RowIterator produces rows one at a time.
type RowIterator interface {
	// Next returns the next row. ok is false once the rows are exhausted.
	Next() (row Row, ok bool, err error)
}

// Executor executes SQL statements against the storage engine.
type Executor struct {
	store    storage.TxEngine
	catalog  *Catalog
	collator Collator
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewExecutor creates an Executor over store with binary collation.
func NewExecutor(store storage.TxEngine) *Executor {
	return &Executor{
		store:    store,
		catalog:  NewCatalog(store),
		collator: BinaryCollator{},
		logger:   logging.NewLogger("sql"),
		metrics:  metrics.New(),
	}
}

// SetCollator sets the collation used for string comparisons.
func (e *Executor) SetCollator(c Collator) {
	if c == nil {
		c = BinaryCollator{}
	}
	e.collator = c
}

// Collator returns the collation used for string comparisons.
func (e *Executor) Collator() Collator {
	return e.collator
}

// Catalog returns the executor's schema catalog.
func (e *Executor) Catalog() *Catalog {
	return e.catalog
}

// Metrics returns the executor's statement counters.
func (e *Executor) Metrics() *metrics.Metrics {
	return e.metrics
}

// Execute runs a single statement against engine with default settings.
func Execute(engine storage.TxEngine, statement string) (*QueryResult, error) {
	return NewExecutor(engine).Execute(statement)
}

// Execute parses and runs one statement.
func (e *Executor) Execute(statement string) (*QueryResult, error) {
	stmt, err := ParseStatement(statement)
	if err != nil {
		e.logger.Debug("Statement rejected", "error", err)
		e.metrics.RecordError()
		return nil, err
	}
	return e.ExecuteStatement(stmt)
}

// ExecuteStatement runs an already parsed statement.
func (e *Executor) ExecuteStatement(stmt Statement) (*QueryResult, error) {
	trace := logging.StartStatement(statementKind(stmt))

	var res *QueryResult
	var err error
	switch s := stmt.(type) {
	case *SelectStmt:
		res, err = e.executeSelect(s)
	case *InsertStmt:
		res, err = e.executeInsert(s)
	case *UpdateStmt:
		res, err = e.executeUpdate(s)
	case *DeleteStmt:
		res, err = e.executeDelete(s)
	case *CreateTableStmt:
		res, err = e.executeCreate(s)
	case *BeginStmt:
		err = e.store.Begin()
		res = &QueryResult{Message: "BEGIN"}
	case *CommitStmt:
		err = e.store.Commit()
		res = &QueryResult{Message: "COMMIT"}
	case *RollbackStmt:
		err = e.store.Rollback()
		res = &QueryResult{Message: "ROLLBACK"}
	default:
		err = lerrors.NewExecutionError(fmt.Sprintf("unsupported statement %T", stmt))
	}

	if err != nil {
		trace.LogError(e.logger, err)
		e.metrics.RecordError()
		return nil, err
	}
	trace.LogComplete(e.logger, res.RowsAffected+len(res.Rows))
	e.metrics.RecordStatement(trace.Kind, trace.Duration())
	return res, nil
}

func statementKind(stmt Statement) string {
	switch stmt.(type) {
	case *SelectStmt:
		return "SELECT"
	case *InsertStmt:
		return "INSERT"
	case *UpdateStmt:
		return "UPDATE"
	case *DeleteStmt:
		return "DELETE"
	case *CreateTableStmt:
		return "CREATE TABLE"
	case *BeginStmt:
		return "BEGIN"
	case *CommitStmt:
		return "COMMIT"
	case *RollbackStmt:
		return "ROLLBACK"
	default:
		return "UNKNOWN"
	}
}

// ============================================================================
// SELECT
// ============================================================================

func (e *Executor) executeSelect(stmt *SelectStmt) (*QueryResult, error) {
	schema, err := e.catalog.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	plan, err := PlanSelect(stmt, schema, e.collator)
	if err != nil {
		return nil, err
	}

	columns := stmt.Columns
	if columns == nil {
		columns = schema.ColumnNames()
	}

	rows, err := e.collect(plan)
	if err != nil {
		return nil, err
	}
	return &QueryResult{
		Columns: columns,
		Rows:    rows,
		Message: fmt.Sprintf("SELECT %d", len(rows)),
	}, nil
}

// collect drains the iterator built for plan.
func (e *Executor) collect(plan Operator) ([]Row, error) {
	it, err := e.open(plan)
	if err != nil {
		return nil, err
	}
	rows := []Row{}
	for {
		row, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, row)
	}
}

// open turns an operator tree into an iterator tree.
func (e *Executor) open(op Operator) (RowIterator, error) {
	switch n := op.(type) {
	case *TableScan:
		return e.openScan(n)
	case *Filter:
		input, err := e.open(n.Input)
		if err != nil {
			return nil, err
		}
		return &filterIter{input: input, pred: n.Predicate, collator: e.collator}, nil
	case *Project:
		input, err := e.open(n.Input)
		if err != nil {
			return nil, err
		}
		return &projectIter{input: input, columns: n.Columns}, nil
	default:
		return nil, lerrors.NewExecutionError(fmt.Sprintf("unknown operator %T", op))
	}
}

func (e *Executor) openScan(scan *TableScan) (RowIterator, error) {
	it := &scanIter{store: e.store, schema: scan.Schema}
	if scan.PointKey != nil {
		it.keys = []string{rowKey(scan.Table, *scan.PointKey)}
		return it, nil
	}
	keys, err := e.store.Keys(rowPrefix(scan.Table))
	if err != nil {
		return nil, err
	}
	it.keys = keys
	return it, nil
}

// scanIter reads rows by key, one per Next call. Keys that vanished since
// the scan started are skipped.
type scanIter struct {
	store  storage.Engine
	schema TableSchema
	keys   []string
	pos    int
}

func (it *scanIter) Next() (Row, bool, error) {
	for it.pos < len(it.keys) {
		key := it.keys[it.pos]
		it.pos++

		data, err := it.store.Get(key)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		row, err := decodeRow(data, it.schema)
		if err != nil {
			return nil, false, err
		}
		return row, true, nil
	}
	return nil, false, nil
}

type filterIter struct {
	input    RowIterator
	pred     *BinaryExpr
	collator Collator
}

func (it *filterIter) Next() (Row, bool, error) {
	for {
		row, ok, err := it.input.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		match, err := evalPredicate(it.pred, row, it.collator)
		if err != nil {
			return nil, false, err
		}
		if match {
			return row, true, nil
		}
	}
}

type projectIter struct {
	input   RowIterator
	columns []string
}

func (it *projectIter) Next() (Row, bool, error) {
	row, ok, err := it.input.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	out := make(Row, len(it.columns))
	for _, c := range it.columns {
		out[c] = row[c]
	}
	return out, true, nil
}

// ============================================================================
// Expression evaluation
// ============================================================================

func evalOperand(expr Expr, row Row) Value {
	switch x := expr.(type) {
	case *ColumnRef:
		if v, ok := row[x.Name]; ok {
			return v
		}
		return Null
	case *Literal:
		return x.Value
	default:
		return Null
	}
}

// evalPredicate evaluates a comparison against row. Comparisons involving
// NULL are false. Comparing a number with a string is an error.
func evalPredicate(pred *BinaryExpr, row Row, collator Collator) (bool, error) {
	left := evalOperand(pred.Left, row)
	right := evalOperand(pred.Right, row)
	if left.IsNull() || right.IsNull() {
		return false, nil
	}
	if left.Type != right.Type {
		return false, lerrors.TypeMismatch(left.Type.String(), right.Type.String(), "WHERE "+pred.String())
	}

	var cmp int
	if left.Type == ValueNumber {
		switch {
		case left.Num < right.Num:
			cmp = -1
		case left.Num > right.Num:
			cmp = 1
		}
	} else {
		cmp = collator.Compare(left.Str, right.Str)
	}

	switch pred.Op {
	case OpEq:
		return cmp == 0, nil
	case OpNe:
		return cmp != 0, nil
	case OpLt:
		return cmp < 0, nil
	case OpLe:
		return cmp <= 0, nil
	case OpGt:
		return cmp > 0, nil
	case OpGe:
		return cmp >= 0, nil
	default:
		return false, lerrors.NewExecutionError("unknown operator " + pred.Op.String())
	}
}

// ============================================================================
// Row encoding
// ============================================================================

// decodeRow parses a stored row. Columns missing from the stored object are
// NULL.
func decodeRow(data []byte, schema TableSchema) (Row, error) {
	stored := Row{}
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, lerrors.NewExecutionError("unreadable row in table " + schema.Name).WithCause(err)
	}
	row := make(Row, len(schema.Columns))
	for _, c := range schema.Columns {
		if v, ok := stored[c.Name]; ok {
			row[c.Name] = v
		} else {
			row[c.Name] = Null
		}
	}
	return row, nil
}

func encodeRow(row Row) ([]byte, error) {
	return json.Marshal(row)
}

// ============================================================================
// Mutations
// ============================================================================

func (e *Executor) executeCreate(stmt *CreateTableStmt) (*QueryResult, error) {
	if _, err := e.catalog.CreateTable(stmt); err != nil {
		return nil, err
	}
	return &QueryResult{Message: "CREATE TABLE"}, nil
}

func (e *Executor) executeInsert(stmt *InsertStmt) (*QueryResult, error) {
	schema, err := e.catalog.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	columns := stmt.Columns
	if columns == nil {
		columns = schema.ColumnNames()
	}
	if len(columns) != len(stmt.Values) {
		return nil, lerrors.InvalidValue("VALUES",
			fmt.Sprintf("%d values for %d columns", len(stmt.Values), len(columns)))
	}

	row := make(Row, len(schema.Columns))
	for _, c := range schema.Columns {
		row[c.Name] = Null
	}
	seen := make(map[string]bool, len(columns))
	for i, name := range columns {
		col, ok := schema.Column(name)
		if !ok {
			return nil, lerrors.ColumnNotFound(name, schema.Name)
		}
		if seen[name] {
			return nil, lerrors.InvalidValue("INSERT", "column "+name+" listed twice")
		}
		seen[name] = true

		v, err := Coerce(stmt.Values[i], col.Type, name)
		if err != nil {
			return nil, err
		}
		row[name] = v
	}

	pk := row[schema.PrimaryKey().Name]
	if pk.IsNull() {
		return nil, lerrors.InvalidValue(schema.PrimaryKey().Name, "primary key must not be NULL")
	}

	key := rowKey(schema.Name, pk)
	if err := e.checkAbsent(key, schema.Name); err != nil {
		return nil, err
	}
	if err := e.putRow(key, row); err != nil {
		return nil, err
	}
	return &QueryResult{RowsAffected: 1, Message: "INSERT 1"}, nil
}

func (e *Executor) checkAbsent(key, table string) error {
	_, err := e.store.Get(key)
	if err == nil {
		return lerrors.DuplicateKey(key, table)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

func (e *Executor) putRow(key string, row Row) error {
	data, err := encodeRow(row)
	if err != nil {
		return err
	}
	return e.store.Put(key, data)
}

// matchRows returns the rows of schema's table selected by where.
func (e *Executor) matchRows(schema TableSchema, where *BinaryExpr) ([]Row, error) {
	plan, err := planScan(schema, where, e.collator)
	if err != nil {
		return nil, err
	}
	return e.collect(plan)
}

func (e *Executor) executeUpdate(stmt *UpdateStmt) (*QueryResult, error) {
	schema, err := e.catalog.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	pkName := schema.PrimaryKey().Name
	set := make([]Assignment, len(stmt.Set))
	for i, a := range stmt.Set {
		col, ok := schema.Column(a.Column)
		if !ok {
			return nil, lerrors.ColumnNotFound(a.Column, schema.Name)
		}
		v, err := Coerce(a.Value, col.Type, a.Column)
		if err != nil {
			return nil, err
		}
		if a.Column == pkName && v.IsNull() {
			return nil, lerrors.InvalidValue(pkName, "primary key must not be NULL")
		}
		set[i] = Assignment{Column: a.Column, Value: v}
	}

	rows, err := e.matchRows(schema, stmt.Where)
	if err != nil {
		return nil, err
	}

	err = e.atomically(len(rows), func() error {
		for _, row := range rows {
			oldKey := rowKey(schema.Name, row[pkName])
			for _, a := range set {
				row[a.Column] = a.Value
			}
			newKey := rowKey(schema.Name, row[pkName])

			if newKey != oldKey {
				if err := e.checkAbsent(newKey, schema.Name); err != nil {
					return err
				}
				if _, err := e.store.Delete(oldKey); err != nil {
					return err
				}
			}
			if err := e.putRow(newKey, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &QueryResult{RowsAffected: len(rows), Message: fmt.Sprintf("UPDATE %d", len(rows))}, nil
}

func (e *Executor) executeDelete(stmt *DeleteStmt) (*QueryResult, error) {
	schema, err := e.catalog.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	rows, err := e.matchRows(schema, stmt.Where)
	if err != nil {
		return nil, err
	}

	pkName := schema.PrimaryKey().Name
	err = e.atomically(len(rows), func() error {
		for _, row := range rows {
			if _, err := e.store.Delete(rowKey(schema.Name, row[pkName])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &QueryResult{RowsAffected: len(rows), Message: fmt.Sprintf("DELETE %d", len(rows))}, nil
}

// atomically runs fn inside an engine transaction when it changes more than
// one row and no transaction is open yet.
func (e *Executor) atomically(rows int, fn func() error) error {
	if rows <= 1 || e.store.InTransaction() {
		return fn()
	}

	if err := e.store.Begin(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if rbErr := e.store.Rollback(); rbErr != nil {
			e.logger.Error("Rollback after failed statement failed", "error", rbErr)
		}
		return err
	}
	return e.store.Commit()
}
