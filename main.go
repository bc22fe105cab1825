package main

import "skip-analyzer/cmd"

func main() {
	cmd.Execute()
}
