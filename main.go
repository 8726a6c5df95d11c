package main

import (
	"os"

	"tablereader/internal/commands"
)

func main() {
	os.Exit(commands.Execute())
}
