package main

import (
	"fmt"
	"os"

	"github.com/TechXTT/dbsession/pkg/cli"
	"github.com/TechXTT/dbsession/pkg/runtime"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		if code := runtime.SQLState(err); code != "" {
			fmt.Fprintf(os.Stderr, "Error: %v (SQLSTATE %s)\n", err, code)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
