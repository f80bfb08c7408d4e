package main

import "github.com/Adithya-Monish-Kumar-K/docsearch/internal/cli"

func main() {
	cli.Execute()
}
