package main

import (
	"os"

	"github.com/nyashahama/parenting-anxiety-backend/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
