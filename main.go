// Conceptmap - LLM-assisted concept hierarchies for Go.
//
// Conceptmap generates a concept hierarchy for a topic with a language
// model, keeps it consistent under edits and scores parent-child
// relationships with text embeddings.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/conceptmap-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
