package main

import "github.com/temcen/newsrank/internal/cli"

func main() {
	cli.Execute()
}
