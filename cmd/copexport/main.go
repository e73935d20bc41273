package main

import (
	"os"
)

var Version = "dev"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
