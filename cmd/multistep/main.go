// Command multistep answers complex questions by decomposing them into a
// sequence of sub-questions.
package main

import (
	"fmt"
	"os"

	"github.com/smhanov/multistep/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
