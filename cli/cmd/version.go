package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/fathomline/sounder/cli/render"
	"github.com/fathomline/sounder/types"
)

// VersionResponse is the version command's output payload.
type VersionResponse struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
}

// VersionCommand prints version information. The commit is injected by the
// caller, normally from an ldflags -X at build time.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Flags: ReadOnlyFlags(),
		Action: func(c *cli.Context) error {
			return versionAction(c, commit)
		},
	}
}

func versionAction(c *cli.Context, commit string) error {
	if c.Bool("tui") {
		return fmt.Errorf("--tui is not supported for version. TUI mode is available for: run, stats")
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(VersionResponse{
		Version: types.Version,
		Commit:  commit,
	})
}
