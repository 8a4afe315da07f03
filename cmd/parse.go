package cmd

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"zippyst/internal/extract"
	"zippyst/internal/ui"
)

var parseCmd = &cobra.Command{
	Use:   "parse <source-url> <file.html>",
	Short: "Resolve a saved share page without fetching it",
	Long: `Resolve a share page that was saved to disk. The source URL supplies
the domain of the resulting link. Use - to read the page from stdin.`,
	Args: cobra.ExactArgs(2),
	RunE: parseRun,
}

func init() {
	parseCmd.Flags().BoolVarP(&flagShort, "short", "s", false, "Print the short link ending in /DOWNLOAD")
}

func parseRun(cmd *cobra.Command, args []string) error {
	source, path := args[0], args[1]

	page, err := readPage(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}

	resolver, err := cfg.Resolver(extract.WithDebugf(debugf))
	if err != nil {
		return err
	}

	file, err := resolver.ResolveURL(source, page)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	ui.New(cmd.OutOrStdout(), cmd.ErrOrStderr()).Link(linkFor(file, cfg.Output), file)
	return nil
}

func readPage(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading page: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("reading page: %s is not valid UTF-8", path)
	}
	return string(data), nil
}
