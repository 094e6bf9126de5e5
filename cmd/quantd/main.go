package main

import (
	"os"

	"QuantSentinel/cmd/quantd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
