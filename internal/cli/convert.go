package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/confluence-mcp/internal/markup"
)

func newConvertCommand() *cobra.Command {
	var simple bool

	cmd := &cobra.Command{
		Use:   "convert [file]",
		Short: "Convert Confluence storage HTML to Markdown",
		Long: `Reads storage-format HTML from a file (or stdin when the file is "-" or
omitted) and prints the Markdown the get_page_content tool would return.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				in = f
			}

			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			out := markup.Normalize(string(data))
			if simple {
				out = markup.Simple(string(data))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&simple, "simple", false, "use the pattern-based converter instead of the HTML parser")
	return cmd
}
