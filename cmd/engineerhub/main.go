package main

import (
	"os"

	"github.com/engineerhub/engineerhub/cmd/engineerhub/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
