// Package main is the entry point for report-dispatch.
package main

import (
	"os"

	"github.com/donaldgifford/report-dispatch/cmd/report-dispatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
