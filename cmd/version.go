package cmd

import "fmt"

// Version is the application version, overridable at build time with
// -ldflags "-X github.com/quarry0/quarry/cmd.Version=...".
var Version = "1.0.0"

func runVersion() {
	fmt.Printf("quarry %s\n", Version)
}
