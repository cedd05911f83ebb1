package main

import "github.com/shaharia-lab/claudeflow/cmd"

func main() {
	cmd.Execute()
}
