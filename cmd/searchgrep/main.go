package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/searchgrep/searchgrep/cmd/searchgrep/commands"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Optional .env for SEARCHGREP_* overrides; absence is fine.
	_ = godotenv.Load()

	root := commands.NewRootCommand(version, buildTime)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
