package main

import "github.com/courselens/courselens/internal/cli"

func main() {
	cli.Execute()
}
