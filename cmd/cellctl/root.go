// Command cellctl is a small inspector over an in-process cellstore
// container built from --field flags on the command line. There is no
// on-disk cellstore file format to open (containers live in process
// memory only), so unlike the teacher's hivectl (which opens a hive file
// named on the command line), cellctl's subject is whatever schema the
// invocation describes.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	jsonOut    bool
	fieldSpecs []string
)

var rootCmd = &cobra.Command{
	Use:     "cellctl",
	Short:   "Inspect an in-memory cellstore container",
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().
		StringArrayVar(&fieldSpecs, "field", nil, `field to declare, repeatable: "name:kind" or "name:kind[length]"`)
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
