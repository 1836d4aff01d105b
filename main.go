package main

import (
	"os"

	"github.com/smazurov/screenrec/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
