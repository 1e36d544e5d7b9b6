package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"report_renderer/internal/template"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <layout.hcl>...",
	Short: "Compile layout files and report diagnostics",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
			failed++
			continue
		}

		compiled, err := template.Compile(filepath.Base(path), src)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
			failed++
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d fields, %d parameters, digest %s)\n",
			path, len(compiled.Fields), len(compiled.Parameters), compiled.Digest[:12])
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d layouts failed to compile", failed, len(args))
	}
	return nil
}
