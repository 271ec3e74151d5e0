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
Package sql contains the Catalog component for schema management.

Catalog Overview:
=================

The Catalog is logdb's schema registry. It records the column list of every
table so that INSERT without a column list, SELECT * and WHERE can resolve
column names.

Storage Strategy:
=================

Table schemas are stored in the same engine as row data, under a reserved
key prefix:

	Key:   schema:<table_name>
	Value: JSON-encoded TableSchema

Example:

	Key:   schema:users
	Value: {"name":"users","columns":[{"name":"id","type":"INT"},{"name":"name","type":"TEXT"}]}

Schemas are read through the engine on every lookup instead of being cached.
A CREATE TABLE inside a transaction is therefore visible to later statements
of that transaction and disappears again on ROLLBACK.

Primary Key:
============

The first column of a table is its primary key. Rows are stored under
row:<table>:<primary key literal>.
*/
package sql

import (
	"encoding/json"
	"errors"
	"strings"

	lerrors "logdb/internal/errors"
	"logdb/internal/storage"
)

const (
	schemaKeyPrefix = "schema:"
	rowKeyPrefix    = "row:"
)

// TableSchema defines the structure of a table.
type TableSchema struct {
	Name    string      `json:"name"`
	Columns []ColumnDef `json:"columns"`
}

// PrimaryKey returns the primary key column.
func (s TableSchema) PrimaryKey() ColumnDef {
	return s.Columns[0]
}

// Column looks up a column by name.
func (s TableSchema) Column(name string) (ColumnDef, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// ColumnNames returns the column names in declaration order.
func (s TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// rowPrefix returns the key prefix shared by all rows of table.
func rowPrefix(table string) string {
	return rowKeyPrefix + table + ":"
}

// rowKey returns the storage key of the row whose primary key is pk.
func rowKey(table string, pk Value) string {
	if pk.Type == ValueNumber && pk.Num == 0 {
		pk.Num = 0
	}
	return rowPrefix(table) + pk.String()
}

// Catalog manages table schemas.
type Catalog struct {
	store storage.TxEngine
}

// NewCatalog creates a catalog backed by store.
func NewCatalog(store storage.TxEngine) *Catalog {
	return &Catalog{store: store}
}

// CreateTable validates and persists a new table schema.
func (c *Catalog) CreateTable(stmt *CreateTableStmt) (TableSchema, error) {
	if len(stmt.Columns) == 0 {
		return TableSchema{}, lerrors.InvalidValue("CREATE TABLE", "a table needs at least one column")
	}
	seen := make(map[string]bool, len(stmt.Columns))
	for _, col := range stmt.Columns {
		if seen[col.Name] {
			return TableSchema{}, lerrors.InvalidValue("CREATE TABLE", "duplicate column "+col.Name)
		}
		seen[col.Name] = true
	}

	if _, err := c.GetTable(stmt.Table); err == nil {
		return TableSchema{}, lerrors.TableExists(stmt.Table)
	} else if !errors.Is(err, lerrors.ErrTableNotFound) {
		return TableSchema{}, err
	}

	schema := TableSchema{Name: stmt.Table, Columns: stmt.Columns}
	data, err := json.Marshal(schema)
	if err != nil {
		return TableSchema{}, err
	}
	if err := c.store.Put(schemaKeyPrefix+stmt.Table, data); err != nil {
		return TableSchema{}, err
	}
	return schema, nil
}

// GetTable returns the schema of table.
func (c *Catalog) GetTable(table string) (TableSchema, error) {
	data, err := c.store.Get(schemaKeyPrefix + table)
	if errors.Is(err, storage.ErrNotFound) {
		return TableSchema{}, lerrors.TableNotFound(table)
	}
	if err != nil {
		return TableSchema{}, err
	}

	var schema TableSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return TableSchema{}, lerrors.NewExecutionError("unreadable schema for table " + table).WithCause(err)
	}
	if len(schema.Columns) == 0 {
		return TableSchema{}, lerrors.NewExecutionError("schema for table " + table + " has no columns")
	}
	return schema, nil
}

// ListTables returns the table names in sorted order.
func (c *Catalog) ListTables() ([]string, error) {
	keys, err := c.store.Keys(schemaKeyPrefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = strings.TrimPrefix(k, schemaKeyPrefix)
	}
	return names, nil
}
