package main

import "github.com/mcoot/geoseek/internal/cli"

func main() {
	cli.Execute()
}
