package main

import (
	"fmt"
	"os"

	"github.com/TualatinX/utxo-ledger/cli"
)

func main() {
	cmd := cli.CommandLine{}
	if err := cmd.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
