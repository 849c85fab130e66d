package main

import "github.com/agentic-research/evidencegraph/cmd"

func main() {
	cmd.Execute()
}
