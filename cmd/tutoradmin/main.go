// Command tutoradmin performs operator tasks against the tutoring database:
// schema migration, bootstrapping the first admin and changing roles.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
