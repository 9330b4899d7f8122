// Command ataraxai-indexd runs the local knowledge indexer and retrieval
// daemon: it watches configured directories, keeps the manifest and
// vector store consistent, and answers queries.
package main

import (
	"fmt"
	"os"

	"github.com/ataraxai/indexd/cmd/ataraxai-indexd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
