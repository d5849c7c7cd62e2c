// Command paxcast serves the passenger-forecast models over HTTP and runs the
// offline training and data-processing jobs.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
