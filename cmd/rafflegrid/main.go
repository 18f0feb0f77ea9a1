package main

import "github.com/mcoot/rafflegrid/internal/cli"

func main() {
	cli.Execute()
}
