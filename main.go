package main

import (
	"os"

	"lintmux/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
