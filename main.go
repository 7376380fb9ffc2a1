// Package main is the entry point for the trellis LDP server.
package main

import (
	"log"

	"trellis.io/ldp/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
