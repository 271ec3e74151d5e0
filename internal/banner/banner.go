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
Package banner provides the startup banner of the logdb shell.

The ASCII art logo is embedded with //go:embed, so the binary carries it
without any file at runtime. Colors use ANSI escape sequences and are only
emitted when the caller asks for them (the shell passes true when stdout is
a terminal).

Usage:

	banner.Print(os.Stdout, cfg, true)
*/
package banner

import (
	_ "embed" // Required for the //go:embed directive
	"fmt"
	"io"
	"strings"

	"logdb/internal/config"
)

//go:embed banner.txt
var logo string

// ANSI escape codes for terminal text formatting.
const (
	AnsiRed   = "\033[31m"
	AnsiGreen = "\033[32m"
	AnsiCyan  = "\033[36m"
	AnsiReset = "\033[0m"
	AnsiBold  = "\033[1m"
	AnsiDim   = "\033[2m"
)

// Version information for logdb.
const (
	Version   = "0.3.0"
	Copyright = "(c)2026 Firefly Software Solutions Inc"
	License   = "Licensed under Apache 2.0"
)

type painter bool

func (p painter) paint(codes, s string) string {
	if !p {
		return s
	}
	return codes + s + AnsiReset
}

// Print writes the logo, version line and a short summary of cfg to w.
func Print(w io.Writer, cfg *config.Config, color bool) {
	p := painter(color)

	fmt.Fprintln(w, p.paint(AnsiRed, strings.TrimRight(logo, "\n")))
	fmt.Fprintln(w, p.paint(AnsiRed+AnsiBold, fmt.Sprintf(":: logdb ::  (v%s)", Version)))
	fmt.Fprintln(w, p.paint(AnsiDim, Copyright+", "+License))
	fmt.Fprintln(w)

	if cfg == nil {
		return
	}
	printKV(w, p, "Database", cfg.DBPath)
	printKV(w, p, "Collation", cfg.Collation)
	printKV(w, p, "Sync writes", enabled(cfg.SyncWrites))
	printKV(w, p, "Encryption", enabled(cfg.EncryptionEnabled))
	if cfg.ConfigFile != "" {
		printKV(w, p, "Config", cfg.ConfigFile)
	} else {
		printKV(w, p, "Config", "defaults + environment")
	}
	fmt.Fprintln(w)
}

func printKV(w io.Writer, p painter, key, value string) {
	fmt.Fprintf(w, "  %s %s\n", p.paint(AnsiDim, fmt.Sprintf("%-12s", key+":")), p.paint(AnsiCyan, value))
}

func enabled(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
