// Command chkit is the thin CLI entrypoint around the chkit core: schema
// canonicalization, migration planning, SQL rendering, drift detection, and
// the migration store/runner/policy engine documented in the packages under
// pkg/. Every command here is orchestration; the behavior it's orchestrating
// lives in pkg/.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/pseudomuto/chkit/cmd/chkit/cmd"
	"github.com/pseudomuto/chkit/pkg/chkerr"
)

// Build-time variables set by GoReleaser during release builds.
var (
	version string = "dev"
	commit  string = "local"
	date    string = time.Now().UTC().Format(time.RFC3339)
)

func main() {
	cli.VersionPrinter = func(cmd *cli.Command) {
		fmt.Fprintln(cmd.Writer, "Version:", version)
		fmt.Fprintln(cmd.Writer, "Commit:", commit)
		fmt.Fprintln(cmd.Writer, "Date:", date)
	}

	if err := cmd.Run(context.Background(), version, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(chkerr.ExitCode(err))
	}
}
