package main

import (
	"os"
)

// main is a deterministic boundary: cobra parses argv, viper layers in the
// config file and environment, and the run coordinator does the rest.
func main() {
	os.Exit(run())
}
