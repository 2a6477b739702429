// Package main is the entry point for the podflow application.
package main

import (
	"os"

	"github.com/Catonlarge/PodFlow-sub000/cmd/podflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
