// Package main is the entry point for the rpd CLI.
package main

import "github.com/donaldgifford/report-dispatch/cmd/rpd/cmd"

func main() {
	cmd.Execute()
}
