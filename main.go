package main

import (
	"errors"
	"fmt"
	"os"

	"k8s.io/klog/v2"

	"github.com/testifysec/gatekeeper-authoring/cmd"
)

func main() {
	defer klog.Flush()

	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, cmd.ErrProblemsFound) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		klog.Flush()
		os.Exit(1)
	}
}
