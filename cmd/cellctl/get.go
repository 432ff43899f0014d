package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print the decoded value of a declared field",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := buildContainer(fieldSpecs)
		if err != nil {
			return err
		}

		idx, err := c.IndexOf(args[0])
		if err != nil {
			return err
		}
		if idx < 0 {
			return fmt.Errorf("no such field %q", args[0])
		}

		val, err := displayValue(c, idx)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(map[string]string{"name": args[0], "value": val})
		}
		fmt.Println(val)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
