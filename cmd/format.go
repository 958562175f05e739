package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-planshare/pkg/plan"
)

var (
	formatFile   string
	formatToJSON bool
	formatSource string
)

func NewFormatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "format",
		Short: "Convert a plan between JSON and the shared markdown document",
		Long: `Convert a plan between its JSON form and the markdown document posted to
chats, without contacting the backend. Input is read from --file or stdin.

Examples:
  planshare format -f plan.json > plan.md
  planshare format --to-json < plan.md`,
		Args: cobra.NoArgs,
		RunE: runFormat,
	}
	cmd.Flags().StringVarP(&formatFile, "file", "f", "-", "Input file, or - for stdin")
	cmd.Flags().BoolVar(&formatToJSON, "to-json", false, "Emit JSON instead of markdown")
	cmd.Flags().StringVar(&formatSource, "source", "", "Provenance label for rendered documents")
	return cmd
}

func runFormat(cmd *cobra.Command, args []string) error {
	p, err := readPlanInput(formatFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	return writeFormatted(cmd.OutOrStdout(), p)
}

func writeFormatted(w io.Writer, p *plan.Plan) error {
	if formatToJSON {
		data, err := p.EncodeJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	if formatSource != "" {
		p.Metadata.Source = formatSource
	}
	if p.Metadata.Source == "" {
		p.Metadata.Source = defaultSource
	}
	if p.Metadata.UpdatedAt == "" {
		p.Metadata.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := io.WriteString(w, plan.Format(*p))
	return err
}
