package main

import (
	"os"

	"github.com/kestrelsec/graphaudit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
