package main

import (
	"os"

	"github.com/shion-ptpe/oauth/cmd/userctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
