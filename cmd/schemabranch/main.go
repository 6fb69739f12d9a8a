package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/schemabranch/schemabranch"
	"github.com/schemabranch/schemabranch/internal/dialect"
	"github.com/spf13/cobra"
)

var (
	outputDir   string
	dialectName string
	branches    string
	targets     string
)

var rootCmd = &cobra.Command{
	Use:   "schemabranch <schema-root>",
	Short: "Generate per-branch DDL and data-access code from schema definitions",
	Long: `Schemabranch reads a directory of schema branches (one subdirectory per
release, each a complete snapshot of the schema as YAML files), resolves
each branch's parent from its version key or manifest, warns about
undeclared schema changes, and writes per-branch outputs: a full DDL
script and a Go data-access package.`,
	Args: cobra.ExactArgs(1),
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "gen", "Output directory, one subdirectory per branch")
	rootCmd.Flags().StringVarP(&dialectName, "dialect", "p", "mysql", "Target dialect: "+strings.Join(dialect.Names(), ", "))
	rootCmd.Flags().StringVarP(&branches, "branches", "b", "", "Specific branches (comma-separated, optional)")
	rootCmd.Flags().StringVarP(&targets, "targets", "t", "", "Outputs to generate: ddl, go (comma-separated, default: both)")
}

func run(cmd *cobra.Command, args []string) error {
	opts := schemabranch.Options{
		Root:     args[0],
		OutDir:   outputDir,
		Dialect:  dialectName,
		Branches: splitList(branches),
		Targets:  splitList(targets),
	}

	report, err := schemabranch.Generate(context.Background(), opts)
	if err != nil {
		return err
	}

	for _, d := range report.Diagnostics {
		fmt.Fprintln(os.Stderr, d)
	}
	for _, b := range report.Emitted {
		fmt.Printf("generated %s\n", b)
	}
	if report.Failed() {
		return fmt.Errorf("%d branch(es) failed", len(report.Skipped))
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
