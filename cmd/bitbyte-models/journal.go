package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	models "github.com/MustardWombat/BitByteAI"
	"github.com/MustardWombat/BitByteAI/internal/journal"
	"github.com/MustardWombat/BitByteAI/internal/printer"
	"github.com/MustardWombat/BitByteAI/linear"
)

// journalCmd groups commands over the local observation journal.
// Only "train" needs the model server configuration.
func journalCmd(path string, mcfg models.Config, opts []models.ManagerOption, verbosity func(*cobra.Command)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Record observations and adapt the model to them",
		// Replaces the parent hook: journal commands open their own resources.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbosity(cmd)
			return os.MkdirAll(filepath.Dir(path), 0755)
		},
	}

	cmd.AddCommand(recordCmd(path))
	cmd.AddCommand(listCmd(path))
	cmd.AddCommand(clearCmd(path))
	cmd.AddCommand(trainCmd(path, mcfg, opts))
	return cmd
}

func recordCmd(path string) *cobra.Command {
	var (
		now      bool
		day      float64
		hour     float64
		minute   float64
		activity float64
		battery  float64
		label    float64
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one labelled observation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("label") {
				return usageErrorf("--label is required")
			}

			var features models.FeatureMap
			if now {
				features = models.FeaturesAt(time.Now(), activity, battery)
			} else {
				features = models.FeatureMap{
					models.FeatureDayOfWeek:    day,
					models.FeatureHourOfDay:    hour,
					models.FeatureMinuteOfHour: minute,
					models.FeatureActivity:     activity,
					models.FeatureBatteryLevel: battery,
				}
			}

			store, err := journal.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			obs, err := store.Record(cmd.Context(), features, label)
			if errors.Is(err, journal.ErrInvalidObservation) {
				return usageErrorf("%v", err)
			}
			if err != nil {
				return err
			}

			if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
				printer.Success("Recorded observation %s\n", obs.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&now, "now", false, "Derive day, hour and minute from the current time")
	cmd.Flags().Float64Var(&day, "day", 0, "Day of week, 1 (Sunday) to 7")
	cmd.Flags().Float64Var(&hour, "hour", 0, "Hour of day, 0-23")
	cmd.Flags().Float64Var(&minute, "minute", 0, "Minute of hour, 0-59")
	cmd.Flags().Float64Var(&activity, "activity", 0, "Device activity, 0-1")
	cmd.Flags().Float64Var(&battery, "battery", 0, "Device battery level, 0-1")
	cmd.Flags().Float64Var(&label, "label", 0, "Observed label")
	cmd.MarkFlagsMutuallyExclusive("now", "day")
	cmd.MarkFlagsMutuallyExclusive("now", "hour")
	cmd.MarkFlagsMutuallyExclusive("now", "minute")
	return cmd
}

func listCmd(path string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded observations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := journal.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			obs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				if obs == nil {
					obs = []journal.Observation{}
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(obs)
			}

			if len(obs) == 0 {
				fmt.Fprintln(w, "No observations recorded")
				return nil
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RECORDED\tDAY\tHOUR\tMINUTE\tACTIVITY\tBATTERY\tLABEL")
			for _, o := range obs {
				r := o.Features.Row()
				fmt.Fprintf(tw, "%s\t%g\t%g\t%g\t%g\t%g\t%g\n",
					o.RecordedAt.Local().Format("2006-01-02 15:04"), r[0], r[1], r[2], r[3], r[4], o.Label)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum observations to show (0 = all)")
	return cmd
}

func clearCmd(path string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded observations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := journal.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
				if n == 0 {
					printer.Info("Journal is already empty\n")
				} else {
					printer.Success("Removed %d observations\n", n)
				}
			}
			return nil
		},
	}
}

func trainCmd(path string, mcfg models.Config, opts []models.ManagerOption) *cobra.Command {
	var clearAfter bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Retrain the local model on every journal observation",
		Long: "Retrain the local model on all recorded observations. " +
			"The model is refit from scratch on the journal contents.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			quiet, _ := cmd.Flags().GetBool("quiet")

			store, err := journal.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			X, y, err := store.TrainingSet(ctx)
			if err != nil {
				return err
			}
			if len(X) == 0 {
				return usageErrorf("journal %s is empty; record observations first", path)
			}

			mgr, err := models.NewManager(mcfg, linear.Codec{}, opts...)
			if err != nil {
				return fmt.Errorf("failed to initialize manager: %w", err)
			}

			if len(X) < len(models.FeatureNames) {
				printer.Warning("Only %d observations for %d features; the fit leans on the ridge penalty\n",
					len(X), len(models.FeatureNames))
			}
			if !quiet {
				printer.Step("Training on %d observations\n", len(X))
			}
			ok, err := mgr.UpdateWithLocalData(ctx, X, y)
			if !ok {
				return err
			}

			if clearAfter {
				if _, err := store.Clear(ctx); err != nil {
					return err
				}
			}
			if !quiet {
				printer.Success("Model updated\n")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearAfter, "clear", false, "Clear the journal after a successful update")
	return cmd
}
