package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tradeimport/internal/mapper"
)

var showAliases bool

// profilesCmd lists the column profiles that --profile accepts.
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the available column profiles",
	Long: `Profiles lists the built-in column profiles and those defined under
custom_profiles in the config file. With --aliases every header spelling the
profile recognises is printed with the field it maps to.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := cfg.Registry()
		if err != nil {
			return err
		}
		return printProfiles(registry, os.Stdout, showAliases)
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.Flags().BoolVarP(&showAliases, "aliases", "a", false, "print every alias of each profile")
}

func printProfiles(registry *mapper.Registry, w io.Writer, aliases bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROFILE\tALIASES\tDESCRIPTION")
	for _, name := range registry.Names() {
		p, _ := registry.Get(name)
		fmt.Fprintf(tw, "%s\t%d\t%s\n", p.Name, len(p.Aliases), p.Description)
		if !aliases {
			continue
		}
		labels := make([]string, 0, len(p.Aliases))
		for label := range p.Aliases {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			fmt.Fprintf(tw, "  %s\t%s\t\n", label, p.Aliases[label])
		}
	}
	return tw.Flush()
}
