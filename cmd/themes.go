package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pdfslides/converter/themes"
)

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "List available slide themes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, t := range themes.List() {
			marker := " "
			if t.ID == cfg.Conversion.Theme {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-14s %-16s %s\n", marker, t.ID, t.Name, swatch(t))
		}
		return nil
	},
}

// swatch renders the theme colors as colored blocks on true-color terminals
func swatch(t themes.Theme) string {
	var s string
	for _, c := range []themes.Color{t.Background, t.Primary, t.Accent, t.Text, t.SubtleText} {
		s += color.RGB(int(c.R8), int(c.G8), int(c.B8)).Sprint("██")
	}
	return s + " " + t.Primary.Hex()
}

func init() {
	rootCmd.AddCommand(themesCmd)
}
