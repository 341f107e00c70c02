package main

import (
	"os"

	_ "fleet-keeper/cmd"
	"fleet-keeper/cmd/root"
)

func main() {
	if err := root.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}
