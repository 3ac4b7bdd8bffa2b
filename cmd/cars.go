package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/evtracker/evtrack/config"
	"github.com/evtracker/evtrack/infra/evtracker"
)

var carsCmd = &cobra.Command{
	Use:   "cars",
	Short: "List the vehicles registered with the accounting service",
	RunE:  runCars,
}

func init() {
	rootCmd.AddCommand(carsCmd)
}

func runCars(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	client := evtracker.NewClient(cfg.API)
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	cars, err := client.ListCars(ctx)
	if err != nil {
		return err
	}
	for _, c := range cars {
		mark := " "
		if c.IsDefault {
			mark = "*"
		}
		fmt.Printf("%s %d\t%s\n", mark, c.ID, c.Name)
	}
	return nil
}
