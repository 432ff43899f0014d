package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type dumpField struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type dumpResult struct {
	ID            uint64      `json:"id"`
	Generation    uint64      `json:"generation"`
	SchemaVersion uint32      `json:"schemaVersion"`
	Fields        []dumpField `json:"fields"`
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump every declared field with its decoded value",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := buildContainer(fieldSpecs)
		if err != nil {
			return err
		}

		n, err := c.FieldCount()
		if err != nil {
			return err
		}
		res := dumpResult{
			ID:            c.ID(),
			Generation:    c.Generation(),
			SchemaVersion: c.SchemaVersion(),
			Fields:        make([]dumpField, 0, n),
		}
		for i := 0; i < n; i++ {
			name, err := c.FieldNameAt(i)
			if err != nil {
				return err
			}
			fk, err := c.FieldKindAt(i)
			if err != nil {
				return err
			}
			val, err := displayValue(c, i)
			if err != nil {
				return err
			}
			res.Fields = append(res.Fields, dumpField{Name: name, Kind: fk.Kind.String(), Value: val})
		}

		if jsonOut {
			return printJSON(res)
		}
		fmt.Printf("container #%d  generation=%d  schema=%d\n", res.ID, res.Generation, res.SchemaVersion)
		for _, f := range res.Fields {
			fmt.Printf("  %-24s %-10s %s\n", f.Name, f.Kind, f.Value)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
