package main

import (
	"os"

	"pkg.jsn.cam/testdatagen/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
