// cmd/trigbench/main.go
package main

import (
	cmd "github.com/mwiater/trigbench/internal/cli"
)

// Build-time variables injected with -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	setVersionInfo = cmd.SetVersionInfo
	executeCmd     = cmd.Execute
)

// main starts the trigbench CLI by delegating to the cobra root command.
func main() {
	setVersionInfo(version, commit, date)
	executeCmd()
}
