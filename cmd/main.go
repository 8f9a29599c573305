package main

import "github.com/arzan03/tourbook/internal/cli"

func main() {
	cli.Execute()
}
