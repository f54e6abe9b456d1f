package main

import (
	"os"

	"github.com/ga1ien/kulti-stream/internal/interfaces/cli"
)

const version = "0.1.0"

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		os.Exit(1)
	}
}
