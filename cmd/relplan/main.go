// Package main provides the relplan CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/relplan/internal/cli"
	_ "github.com/leapstack-labs/relplan/pkg/adapters/duckdb"   // register duckdb adapter
	_ "github.com/leapstack-labs/relplan/pkg/adapters/postgres" // register postgres adapter
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
