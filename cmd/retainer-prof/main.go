package main

import "github.com/retainer-prof/cmd/retainer-prof/cmd"

func main() {
	cmd.Execute()
}
