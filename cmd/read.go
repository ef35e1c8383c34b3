package cmd

import (
	"fmt"
	"io"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/ChannyClaus/silx/spech5"
)

var readJSON bool

func init() {
	readCmd.Flags().BoolVar(&readJSON, "json", false, "Emit JSON instead of plain text")
	rootCmd.AddCommand(readCmd)
}

var readCmd = &cobra.Command{
	Use:   "read [file] [path]",
	Short: "Print a dataset value or a group listing",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openFile(args[0])
		if err != nil {
			return err
		}

		node, err := f.Get(args[1])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if g, ok := node.(*spech5.Group); ok {
			keys := g.Keys()
			if readJSON {
				fmt.Fprintln(out, oj.JSON(keys))
				return nil
			}
			for _, key := range keys {
				fmt.Fprintln(out, key)
			}
			return nil
		}

		ds := node.(*spech5.Dataset)
		v, err := ds.Read()
		if err != nil {
			return err
		}
		if readJSON {
			payload := map[string]any{
				"path":  ds.Path(),
				"dtype": ds.Dtype().String(),
				"shape": ds.Shape(),
				"value": v,
				"attrs": ds.Attrs(),
			}
			fmt.Fprintln(out, oj.JSON(payload, &oj.Options{Sort: true}))
			return nil
		}
		printValue(out, v)
		return nil
	},
}

func printValue(out io.Writer, v any) {
	switch val := v.(type) {
	case string:
		fmt.Fprintln(out, val)
	case []float32:
		for _, x := range val {
			fmt.Fprintln(out, x)
		}
	case []float64:
		for _, x := range val {
			fmt.Fprintln(out, x)
		}
	case [][]float64:
		for _, row := range val {
			for i, x := range row {
				if i > 0 {
					fmt.Fprint(out, " ")
				}
				fmt.Fprint(out, x)
			}
			fmt.Fprintln(out)
		}
	default:
		fmt.Fprintln(out, val)
	}
}
