// Package main - cfdctl CLI
// Taker and maker client for a CFD daemon
//
// Usage:
//
//	go run ./cmd/cfdctl watch
//	go run ./cmd/cfdctl take --quantity 5000
//	go run ./cmd/cfdctl offer --price-short 42000 --min 100 --max 10000
package main

import (
	"os"

	"github.com/meaze0507/itchysats/cmd/cfdctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
