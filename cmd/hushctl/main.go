package main

import "github.com/hushlabs/consent-secretary/internal/cli"

func main() {
	cli.Execute()
}
