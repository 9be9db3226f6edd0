// Package main is the entry point for the dedup filesystem deduplication
// indexer CLI. It initializes all subcommands and executes the root command.
package main

import (
	"github.com/yyrliu/dedupler-go/cmd"
	_ "github.com/yyrliu/dedupler-go/cmd/hash"
	_ "github.com/yyrliu/dedupler-go/cmd/print"
	_ "github.com/yyrliu/dedupler-go/cmd/scan"
)

// main is the entry point of the application.
// It executes the root command which handles all CLI interactions.
func main() {
	cmd.Execute()
}
