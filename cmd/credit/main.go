package main

import (
	"os"

	"github.com/wonny/creditpd/cmd/credit/commands"
)

// main is the entry point for the credit CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/credit [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
