package main

import (
	"os"

	"github.com/kyleking/schema-rag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
