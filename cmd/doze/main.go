// Package main is the entrypoint for doze, the idle-aware sleep manager
// for a passthrough-VM workstation host.
package main

import "doze/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
