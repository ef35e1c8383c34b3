package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChannyClaus/silx/internal/index"
)

var (
	findListNames bool
	findCommon    bool
)

func init() {
	findCmd.Flags().BoolVar(&findListNames, "names", false, "List all indexed names")
	findCmd.Flags().BoolVar(&findCommon, "common", false, "List names present in every scan")
	rootCmd.AddCommand(findCmd)
}

var findCmd = &cobra.Command{
	Use:   "find [file] [name]",
	Short: "List the scans that record a given counter or motor",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openFile(args[0])
		if err != nil {
			return err
		}
		idx := index.Build(f.Spec())
		out := cmd.OutOrStdout()

		switch {
		case findListNames:
			for _, name := range idx.Names() {
				fmt.Fprintln(out, name)
			}
			return nil
		case findCommon:
			for _, name := range idx.Common() {
				fmt.Fprintln(out, name)
			}
			return nil
		case len(args) == 2:
			keys := idx.Lookup(args[1])
			if len(keys) == 0 {
				return fmt.Errorf("%q not recorded in any scan", args[1])
			}
			for _, key := range keys {
				fmt.Fprintln(out, key)
			}
			return nil
		default:
			return fmt.Errorf("a name argument or --names/--common is required")
		}
	},
}
