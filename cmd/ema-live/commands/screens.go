package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/koscakluka/ema-live/internal/config"
	"github.com/spf13/cobra"
)

var screensCmd = &cobra.Command{
	Use:   "screens",
	Short: "List the screen catalogue",
	Long: `List the screens the session can be told about, in the order the
number keys select them. A screens_file in the config is merged over the
built-in catalogue.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if configPath != "" {
			loaded, err := config.LoadFile(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}

		bridge, err := loadScreens(cfg)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tID\tTITLE")
		for i, entry := range bridge.Screens() {
			key := "-"
			if i < 5 {
				key = fmt.Sprint(i + 1)
			}
			marker := ""
			if entry.ID == bridge.Current() {
				marker = " (initial)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s%s\n", key, entry.ID, entry.Title, marker)
		}
		return w.Flush()
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.Schema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

func init() {
	rootCmd.AddCommand(screensCmd)
	rootCmd.AddCommand(schemaCmd)
}
