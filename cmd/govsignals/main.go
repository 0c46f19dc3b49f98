package main

import (
	"govcontract-signals/internal/cli"
)

func main() {
	cli.Execute()
}
