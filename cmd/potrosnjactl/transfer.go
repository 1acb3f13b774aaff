package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"potrosnja/internal/transfer"
)

var (
	exportFormat string
	exportOutput string
	importFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every record as JSON or YAML",
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace all records with the contents of a JSON or YAML export",
	Long: `Replaces the whole record set. The document is validated first; a
malformed document leaves the stored records untouched. Use "-" to read
from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format (json or yaml)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
	importCmd.Flags().StringVar(&importFormat, "format", "", "input format (default from file extension, else json)")
	rootCmd.AddCommand(exportCmd, importCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := transfer.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	var out io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("creating %s: %w", exportOutput, err)
		}
		defer f.Close()
		out = f
	}
	if err := s.svc.Export(out, format); err != nil {
		return fmt.Errorf("exporting: %w", err)
	}
	if exportOutput != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d records to %s\n", len(s.svc.Records()), exportOutput)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	name := args[0]
	formatName := importFormat
	if formatName == "" && name != "-" {
		formatName = filepath.Ext(name)
	}
	format, err := transfer.ParseFormat(formatName)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("opening %s: %w", name, err)
		}
		defer f.Close()
		in = f
	}

	out := cmd.OutOrStdout()
	s, err := openSession(cmd.Context(), out)
	if err != nil {
		return err
	}
	defer s.Close()

	n, st, err := s.svc.Import(cmd.Context(), in, format)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Imported %d records\n", n)
	reportStatus(out, st)
	return nil
}
