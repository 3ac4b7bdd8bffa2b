package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/evtracker/evtrack/config"
	"github.com/evtracker/evtrack/core/coordinator"
	"github.com/evtracker/evtrack/core/model"
	"github.com/evtracker/evtrack/core/session"
	"github.com/evtracker/evtrack/infra/evtracker"
	"github.com/evtracker/evtrack/infra/logger"
)

var (
	logEnergy     float64
	logCarID      int
	logExternalID string
	logGenerateID bool
	logStart      string
	logEnd        string
	logNotes      string
	logSolar      bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Log a single charging session and exit",
	RunE:  runLog,
}

func init() {
	logCmd.Flags().Float64VarP(&logEnergy, "energy", "e", 0, "energy consumed in kWh (required)")
	logCmd.Flags().IntVar(&logCarID, "car", 0, "car id (defaults to the first configured car)")
	logCmd.Flags().StringVar(&logExternalID, "external-id", "", "idempotency key for this session")
	logCmd.Flags().BoolVar(&logGenerateID, "generate-id", false, "generate a random external id")
	logCmd.Flags().StringVar(&logStart, "start", "", "session start (RFC 3339)")
	logCmd.Flags().StringVar(&logEnd, "end", "", "session end (RFC 3339)")
	logCmd.Flags().StringVar(&logNotes, "notes", "", "free-form note")
	logCmd.Flags().BoolVar(&logSolar, "solar", false, "mark the energy source as solar")
	_ = logCmd.MarkFlagRequired("energy")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	carCfg := cfg.Cars[0]
	if logCarID != 0 {
		found := false
		for _, cc := range cfg.Cars {
			if cc.ID == logCarID {
				carCfg = cc
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("car %d is not configured", logCarID)
		}
	}

	in := model.Session{EnergyKWh: logEnergy, Notes: logNotes}
	if logSolar {
		in.EnergySource = model.SourceSolar
	}
	if logExternalID != "" {
		in.ExternalID = logExternalID
	} else if logGenerateID {
		in.ExternalID = uuid.NewString()
	}
	if logStart != "" {
		t, err := time.Parse(time.RFC3339, logStart)
		if err != nil {
			return fmt.Errorf("parse start: %w", err)
		}
		in.StartTime = &t
	}
	if logEnd != "" {
		t, err := time.Parse(time.RFC3339, logEnd)
		if err != nil {
			return fmt.Errorf("parse end: %w", err)
		}
		in.EndTime = &t
	}

	tc, err := carCfg.Tariff.Build()
	if err != nil {
		return err
	}
	builder := session.Builder{Tariff: tc, Prices: carCfg.Prices.Build()}
	in.CarID = carCfg.ID
	built, err := builder.Build(in)
	if err != nil {
		return err
	}

	client := evtracker.NewClient(cfg.API)
	coord, err := coordinator.New(coordinator.Config{
		CarID:   carCfg.ID,
		CarName: carCfg.Name,
		// One extra attempt keeps the CLI responsive on flaky links.
		MaxRetries: 1,
	}, client, logger.New("log"), nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	logged, err := coord.Submit(ctx, built)
	if err != nil {
		return err
	}
	fmt.Printf("session %d logged: %.2f kWh, rate %s\n", logged.ID, logged.EnergyKWh, logged.RateType)
	return nil
}
