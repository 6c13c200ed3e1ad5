// Command reprompt turns terse prompts into structured ones using the Sonar
// chat completions API. It works on prompt files from the command line and
// can run as a local HTTP service for editor plugins.
package main

import (
	"fmt"
	"os"

	"github.com/teilomillet/reprompt/errors"
)

// Version is the release reported by --version and the health endpoint.
const Version = "v0.1.0"

func main() {
	if err := newRootCmd(newApp(os.Stdin, os.Stdout, os.Stderr)).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errors.UserMessage(errors.Classify("", err)))
		os.Exit(1)
	}
}
