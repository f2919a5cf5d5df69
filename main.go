// submit packs a course project directory into submit.zip and uploads it to
// the course submit server described by the project's .submit file.
//
// Build output, editor backups and version-control metadata are left out
// using a fixed deny list of glob patterns. Credentials obtained through the
// browser-based CAS flow are cached in .submitUser next to the project.
//
// Subcommands:
//   - list prints what would be submitted, as text or NDJSON
//   - pack writes the archive to disk without uploading it
package main

import (
	"os"

	"github.com/nethoundsh/submit/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
