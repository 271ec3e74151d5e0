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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"logdb/internal/sql"
)

// splitStatements splits input at semicolons outside string literals.
// Empty statements are dropped. A trailing statement without a semicolon is
// kept.
func splitStatements(input string) []string {
	var stmts []string
	var cur strings.Builder
	inString := false

	for _, r := range input {
		switch {
		case r == '\'':
			inString = !inString
			cur.WriteRune(r)
		case r == ';' && !inString:
			if s := strings.TrimSpace(cur.String()); s != "" {
				stmts = append(stmts, s+";")
			}
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}

// endsStatement reports whether input ends with a semicolon that is not
// inside a string literal.
func endsStatement(input string) bool {
	trimmed := strings.TrimSpace(input)
	if !strings.HasSuffix(trimmed, ";") {
		return false
	}
	return strings.Count(trimmed, "'")%2 == 0
}

// printResult renders res as an aligned table for SELECT and as its status
// message otherwise.
func printResult(w io.Writer, res *sql.QueryResult) {
	if res.Columns == nil {
		fmt.Fprintln(w, res.Message)
		return
	}

	widths := make([]int, len(res.Columns))
	for i, c := range res.Columns {
		widths[i] = utf8.RuneCountInString(c)
	}
	cells := make([][]string, len(res.Rows))
	for r, row := range res.Rows {
		cells[r] = make([]string, len(res.Columns))
		for i, c := range res.Columns {
			s := row[c].String()
			cells[r][i] = s
			if n := utf8.RuneCountInString(s); n > widths[i] {
				widths[i] = n
			}
		}
	}

	writeRow(w, res.Columns, widths)
	seps := make([]string, len(widths))
	for i, n := range widths {
		seps[i] = strings.Repeat("-", n)
	}
	fmt.Fprintln(w, strings.Join(seps, "-+-"))
	for _, row := range cells {
		writeRow(w, row, widths)
	}

	if len(res.Rows) == 1 {
		fmt.Fprintln(w, "(1 row)")
	} else {
		fmt.Fprintf(w, "(%d rows)\n", len(res.Rows))
	}
}

func writeRow(w io.Writer, cells []string, widths []int) {
	padded := make([]string, len(cells))
	for i, c := range cells {
		padded[i] = c + strings.Repeat(" ", widths[i]-utf8.RuneCountInString(c))
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(padded, " | "), " "))
}

// printJSON renders res as indented JSON.
func printJSON(w io.Writer, res *sql.QueryResult) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "{\"error\": %q}\n", err.Error())
		return
	}
	fmt.Fprintln(w, string(data))
}
