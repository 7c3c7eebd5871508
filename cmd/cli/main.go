package main

import (
	"os"

	"github.com/cursos-dev/cursos/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
