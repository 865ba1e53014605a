package main

import (
	"crisiswatch/internal/cli"
)

func main() {
	cli.Execute()
}
