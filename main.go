package main

import "github.com/kozaktomas/memory-anchor/cmd"

func main() {
	cmd.Execute()
}
