package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/screenrec/internal/capture"
)

func newDisplaysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "displays",
		Short: "List attached displays",
		RunE: func(_ *cobra.Command, _ []string) error {
			displays, err := capture.Displays()
			if err != nil {
				return err
			}
			for _, d := range displays {
				fmt.Printf("%d: %dx%d at (%d,%d)\n",
					d.Index, d.Bounds.Dx(), d.Bounds.Dy(), d.Bounds.Min.X, d.Bounds.Min.Y)
			}
			return nil
		},
	}
}
