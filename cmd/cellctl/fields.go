package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type fieldInfo struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	IsArray bool   `json:"isArray"`
	Length  int    `json:"length"`
}

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the fields declared by --field",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := buildContainer(fieldSpecs)
		if err != nil {
			return err
		}

		n, err := c.FieldCount()
		if err != nil {
			return err
		}
		infos := make([]fieldInfo, 0, n)
		for i := 0; i < n; i++ {
			name, err := c.FieldNameAt(i)
			if err != nil {
				return err
			}
			fk, err := c.FieldKindAt(i)
			if err != nil {
				return err
			}
			length, err := c.FieldDataLength(i)
			if err != nil {
				return err
			}
			infos = append(infos, fieldInfo{Name: name, Kind: fk.Kind.String(), IsArray: fk.IsArray, Length: length})
		}

		if jsonOut {
			return printJSON(infos)
		}
		for _, fi := range infos {
			arr := ""
			if fi.IsArray {
				arr = "[]"
			}
			fmt.Printf("%-24s %s%s (%d bytes)\n", fi.Name, fi.Kind, arr, fi.Length)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
}
