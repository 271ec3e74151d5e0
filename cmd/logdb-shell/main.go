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
Package main is the entry point of logdb-shell, the interactive client of
an embedded logdb database.

Shell Overview:
===============

logdb-shell opens a database file in-process and runs a REPL over it:

 1. Read a statement (terminated by ';') or a meta command (starting with \)
 2. Execute it with the SQL executor
 3. Print the result as a table or as JSON
 4. Repeat

On a terminal the shell uses readline for line editing, history and tab
completion. With piped input it reads plain lines.

Meta Commands:
==============

	\q          quit
	\h          help
	\dt         list tables
	\explain S  show the plan of a SELECT
	\compact    rewrite the log with live records only
	\stats      engine and statement statistics
	\timing     toggle statement timing

Usage Examples:
===============

	logdb-shell -db data.ldb
	logdb-shell -db data.ldb -e "SELECT * FROM users;"
	echo "SELECT * FROM users;" | logdb-shell -db data.ldb -format json
*/
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"logdb/internal/banner"
	"logdb/internal/config"
	lerrors "logdb/internal/errors"
	"logdb/internal/logging"
	"logdb/internal/metrics"
	"logdb/internal/sql"
	"logdb/internal/storage"
)

// CLIFlags holds the command-line flags. Empty strings mean "not given",
// so that only explicit flags override the configuration.
type CLIFlags struct {
	DBPath     string
	Execute    string
	ConfigFile string
	LogLevel   string
	LogJSON    bool
	Format     string
	Sync       bool
}

// shell holds the state of one REPL session.
type shell struct {
	store  *storage.KVStore
	exec   *sql.Executor
	out    io.Writer
	format string
	timing bool
}

// isTerminal returns true if stdin is a terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.DBPath, "db", "", "Path to the database file")
	flag.StringVar(&f.Execute, "e", "", "Execute statements and exit")
	flag.StringVar(&f.ConfigFile, "config", "", "Path to configuration file")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&f.LogJSON, "log-json", false, "Log in JSON format")
	flag.StringVar(&f.Format, "format", "table", "Output format (table, json)")
	flag.BoolVar(&f.Sync, "sync", false, "fsync after every write")
	flag.Usage = printUsage
	flag.Parse()
	return f
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: logdb-shell [options]\n\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
	fmt.Fprintf(os.Stderr, "  %s, %s, %s, ...\n",
		config.EnvDBPath, config.EnvEncryptionPassphrase, config.EnvLogLevel)
}

func main() {
	flags := parseFlags()

	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetJSONMode(cfg.LogJSON)

	if cfg.EncryptionEnabled && cfg.EncryptionPassphrase == "" {
		pass, err := readPassphrase()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: encryption is enabled but no passphrase was given: %v\n", err)
			fmt.Fprintf(os.Stderr, "Set %s or run interactively.\n", config.EnvEncryptionPassphrase)
			os.Exit(1)
		}
		cfg.EncryptionPassphrase = pass
	}

	store, err := storage.Open(cfg.DBPath, storage.Options{
		SyncWrites: cfg.SyncWrites,
		Encryption: storage.EncryptionConfig{
			Enabled:    cfg.EncryptionEnabled,
			Passphrase: cfg.EncryptionPassphrase,
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, lerrors.FormatError(err))
		os.Exit(1)
	}
	defer store.Close()

	exec := sql.NewExecutor(store)
	collation, err := sql.ParseCollation(cfg.Collation)
	if err != nil {
		fmt.Fprintln(os.Stderr, lerrors.FormatError(err))
		os.Exit(1)
	}
	exec.SetCollator(sql.GetCollator(collation, cfg.CollationLocale))

	sh := &shell{store: store, exec: exec, out: os.Stdout, format: flags.Format}

	if flags.Execute != "" {
		ok := true
		for _, stmt := range splitStatements(flags.Execute) {
			if !sh.run(stmt) {
				ok = false
				break
			}
		}
		store.Close()
		if !ok {
			os.Exit(1)
		}
		return
	}

	if !isTerminal() {
		sh.runSimpleREPL(os.Stdin)
		return
	}

	banner.Print(os.Stdout, cfg, true)
	fmt.Printf("  Type \\q to quit, \\h for help, Tab for completion\n\n")
	if err := sh.runREPL(cfg.HistoryFile); err != nil {
		fmt.Fprintf(os.Stderr, "Advanced line editing unavailable: %v\n", err)
		sh.runSimpleREPL(os.Stdin)
	}
}

// loadConfig applies defaults, the config file, the environment and then
// the explicitly given flags.
func loadConfig(flags CLIFlags) (*config.Config, error) {
	mgr := config.NewManager()
	if err := mgr.Load(flags.ConfigFile); err != nil {
		return nil, err
	}
	cfg := mgr.Get()

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			cfg.DBPath = flags.DBPath
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "log-json":
			cfg.LogJSON = flags.LogJSON
		case "sync":
			cfg.SyncWrites = flags.Sync
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readPassphrase prompts on the terminal without echo.
func readPassphrase() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "Encryption passphrase: ")
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if len(pass) == 0 {
		return "", fmt.Errorf("empty passphrase")
	}
	return string(pass), nil
}

// allCompletions contains the completable meta commands and keywords.
var allCompletions = []string{
	"\\q", "\\h", "\\dt", "\\explain", "\\compact", "\\stats", "\\timing",
	"SELECT", "INSERT INTO", "UPDATE", "DELETE FROM", "CREATE TABLE",
	"BEGIN", "COMMIT", "ROLLBACK",
}

func createCompleter() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(allCompletions))
	for _, c := range allCompletions {
		items = append(items, readline.PcItem(c))
	}
	return readline.NewPrefixCompleter(items...)
}

// filterInput disables Ctrl+Z.
func filterInput(r rune) (rune, bool) {
	if r == readline.CharCtrlZ {
		return r, false
	}
	return r, true
}

func (sh *shell) prompt(continuation bool) string {
	switch {
	case continuation:
		return "   -> "
	case sh.store.InTransaction():
		return "logdb*> "
	default:
		return "logdb> "
	}
}

// runREPL is the interactive loop with line editing and history.
func (sh *shell) runREPL(historyFile string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:              sh.prompt(false),
		HistoryFile:         historyFile,
		AutoComplete:        createCompleter(),
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	var buf strings.Builder
	for {
		rl.SetPrompt(sh.prompt(buf.Len() > 0))
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if buf.Len() > 0 {
				buf.Reset()
				continue
			}
			fmt.Println("(Use \\q to quit or Ctrl+D to exit)")
			continue
		}
		if err != nil {
			fmt.Println()
			return nil
		}
		if !sh.feed(&buf, line) {
			return nil
		}
	}
}

// runSimpleREPL reads plain lines, for piped input.
func (sh *shell) runSimpleREPL(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), storage.MaxValueLen*2)

	var buf strings.Builder
	for scanner.Scan() {
		if !sh.feed(&buf, scanner.Text()) {
			return
		}
	}
	if rest := strings.TrimSpace(buf.String()); rest != "" {
		sh.run(rest)
	}
}

// feed adds one input line. Meta commands run at once; SQL runs once a
// terminating semicolon arrives. It returns false when the user quits.
func (sh *shell) feed(buf *strings.Builder, line string) bool {
	input := strings.TrimSpace(line)
	if buf.Len() == 0 && strings.HasPrefix(input, "\\") {
		return sh.meta(input)
	}
	if input == "" {
		return true
	}

	if buf.Len() > 0 {
		buf.WriteString(" ")
	}
	buf.WriteString(input)
	if !endsStatement(buf.String()) {
		return true
	}

	for _, stmt := range splitStatements(buf.String()) {
		sh.run(stmt)
	}
	buf.Reset()
	return true
}

// run executes one statement and prints its result. It reports success.
func (sh *shell) run(stmt string) bool {
	start := time.Now()
	res, err := sh.exec.Execute(stmt)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Fprintln(os.Stderr, lerrors.FormatError(err))
		return false
	}

	if sh.format == "json" {
		printJSON(sh.out, res)
	} else {
		printResult(sh.out, res)
	}
	if sh.timing {
		fmt.Fprintf(sh.out, "Time: %.3f ms\n", float64(elapsed.Microseconds())/1000.0)
	}
	return true
}

// meta handles a backslash command. It returns false for \q.
func (sh *shell) meta(input string) bool {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "\\q", "\\quit":
		return false
	case "\\h", "\\help", "\\?":
		printHelp(sh.out)
	case "\\dt":
		tables, err := sh.exec.Catalog().ListTables()
		if err != nil {
			fmt.Fprintln(os.Stderr, lerrors.FormatError(err))
			return true
		}
		if len(tables) == 0 {
			fmt.Fprintln(sh.out, "No tables.")
		}
		for _, t := range tables {
			fmt.Fprintln(sh.out, t)
		}
	case "\\explain":
		sh.explain(strings.TrimSuffix(arg, ";"))
	case "\\compact":
		before, _ := sh.store.Stats()
		if err := sh.store.Compact(); err != nil {
			fmt.Fprintln(os.Stderr, lerrors.FormatError(err))
			return true
		}
		after, _ := sh.store.Stats()
		fmt.Fprintf(sh.out, "Compacted: %d -> %d bytes\n", before.LogBytes, after.LogBytes)
	case "\\stats":
		st, err := sh.store.Stats()
		if err != nil {
			fmt.Fprintln(os.Stderr, lerrors.FormatError(err))
			return true
		}
		sh.exec.Metrics().WriteText(sh.out, &metrics.StorageGauges{
			LiveKeys:  st.LiveKeys,
			LogBytes:  st.LogBytes,
			LiveBytes: st.LiveBytes,
			WALBytes:  st.WALBytes,
		})
	case "\\timing":
		sh.timing = !sh.timing
		if sh.timing {
			fmt.Fprintln(sh.out, "Timing is on.")
		} else {
			fmt.Fprintln(sh.out, "Timing is off.")
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %s. Type \\h for help.\n", cmd)
	}
	return true
}

func (sh *shell) explain(query string) {
	stmt, err := sql.ParseStatement(query)
	if err != nil {
		fmt.Fprintln(os.Stderr, lerrors.FormatError(err))
		return
	}
	sel, ok := stmt.(*sql.SelectStmt)
	if !ok {
		fmt.Fprintln(os.Stderr, "\\explain takes a SELECT statement")
		return
	}
	schema, err := sh.exec.Catalog().GetTable(sel.Table)
	if err != nil {
		fmt.Fprintln(os.Stderr, lerrors.FormatError(err))
		return
	}
	plan, err := sql.PlanSelect(sel, schema, sh.exec.Collator())
	if err != nil {
		fmt.Fprintln(os.Stderr, lerrors.FormatError(err))
		return
	}
	fmt.Fprintln(sh.out, sql.Explain(plan))
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `Statements end with ';':
  CREATE TABLE t (id INT, name TEXT);
  INSERT INTO t VALUES (1, 'alice');
  SELECT name FROM t WHERE id = 1;
  UPDATE t SET name = 'bob' WHERE id = 1;
  DELETE FROM t WHERE id = 1;
  BEGIN; ... COMMIT; | ROLLBACK;

Meta commands:
  \q          quit
  \h          this help
  \dt         list tables
  \explain S  show the plan of a SELECT
  \compact    rewrite the log with live records only
  \stats      engine and statement statistics
  \timing     toggle statement timing
`)
}
