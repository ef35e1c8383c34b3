package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChannyClaus/silx/spech5"
)

var treeDatasetsOnly bool

func init() {
	treeCmd.Flags().BoolVar(&treeDatasetsOnly, "datasets", false, "List only datasets")
	rootCmd.AddCommand(treeCmd)
}

var treeCmd = &cobra.Command{
	Use:   "tree [file]",
	Short: "List every path in the virtual hierarchy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openFile(args[0])
		if err != nil {
			return err
		}

		return f.VisitItems(func(path string, n spech5.Node) error {
			if treeDatasetsOnly && n.Kind() != spech5.KindDataset {
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		})
	},
}
