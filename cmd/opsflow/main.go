package main

import "opsflow/cmd/cli"

func main() {
	cli.Execute()
}
