// Package main is the entry point for the sqlzibarctl binary.
package main

import (
	"os"

	cli "sqlzibar/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
