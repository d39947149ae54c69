package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the known role profiles",
	Run: func(cmd *cobra.Command, _ []string) {
		listRoles(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rolesCmd)

	rolesCmd.Flags().BoolP("verbose", "v", false, "print the skills of every role")
}

func listRoles(cmd *cobra.Command) {
	logger, err := newLogger()
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	d, err := wire(context.Background(), logger, wiringOptions{})
	if err != nil {
		logger.Fatal("loading roles", zap.Error(err))
	}
	defer d.Close()

	verbose, _ := cmd.Flags().GetBool("verbose")
	for _, name := range d.roles.Names() {
		profile, _ := d.roles.Get(name)
		if !verbose {
			fmt.Printf("%s (%d core, %d nice-to-have)\n", name, len(profile.Core), len(profile.Nice))
			continue
		}
		fmt.Printf("%s\n  core: %s\n  nice: %s\n", name, strings.Join(profile.Core, ", "), strings.Join(profile.Nice, ", "))
	}
}
