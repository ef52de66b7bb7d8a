package main

import "fmt"

// Run prints version information.
func (v *VersionCmd) Run() error {
	fmt.Printf("contui version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}
