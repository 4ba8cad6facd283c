package main

import (
	"os"

	"github.com/blacktop/arbiter/cmd"
	"github.com/blacktop/arbiter/internal/logutil"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logutil.Errorf("%v", err)
		os.Exit(1)
	}
}
