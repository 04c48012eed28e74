// Argflow - argumentative explanations of model predictions.
//
// Argflow turns influence graphs into argumentation frameworks, stores them
// as explanations and serves pruned and conversational views over MCP.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/argflow-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
