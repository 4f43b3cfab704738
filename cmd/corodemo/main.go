// Command corodemo demonstrates coro.Manager driven from a host tick loop,
// grounded in ChuLiYu-raft-recovery's cmd/demo + internal/cli split: a thin
// main that delegates to an internal, independently testable cli package.
package main

import (
	"fmt"
	"os"

	"github.com/joeycumines/go-coro/internal/corodemo"
)

func main() {
	if err := corodemo.BuildCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
