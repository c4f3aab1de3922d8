package main

import "github.com/p-blackswan/kubejit/internal/cli"

// Version is set with -ldflags "-X main.Version=...".
var Version string

func main() {
	if Version != "" {
		cli.Version = Version
	}
	cli.Execute()
}
