package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"jobwatch/internal/cancel"
	"jobwatch/internal/duration"
	"jobwatch/internal/jobs"
	"jobwatch/internal/utilization"
)

const maxConcurrentCancels = 4

func listCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the current job list once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(viper.New(), *configPath, cmd.Flags())
			if err != nil {
				return err
			}
			closer, err := configureLogging(config.Log, false)
			if err != nil {
				return err
			}
			defer closer.Close()

			src, err := newSource(config)
			if err != nil {
				return err
			}
			store := jobs.NewStore()
			monitor := jobs.NewMonitor(store, src, clock.RealClock{}, monitorConfig(config))
			if err := monitor.Refresh(cmd.Context()); err != nil {
				return err
			}
			return printJobs(cmd.OutOrStdout(), store.All())
		},
	}
}

func cancelCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel jobId [jobId...]",
		Short: "Cancel one or more jobs",
		Long:  `Sends a cancel request for each job id. Requests run concurrently; every failure is reported.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(viper.New(), *configPath, cmd.Flags())
			if err != nil {
				return err
			}
			closer, err := configureLogging(config.Log, false)
			if err != nil {
				return err
			}
			defer closer.Close()

			src, err := newSource(config)
			if err != nil {
				return err
			}
			controller := cancel.NewController(src, jobs.NewStore(), cancelConfig(config))
			defer controller.Close()
			return cancelJobs(cmd.Context(), controller, args, cmd.OutOrStdout())
		},
	}
}

func printJobs(w io.Writer, list []jobs.Job) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB ID\tNAME\tSTATE\tELAPSED\tREQUESTED\tUSED\tCPUS\tNODES\tDIRECTORY")
	for _, j := range list {
		pct, tier := utilization.FromText(j.Elapsed, j.Requested)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f%% (%s)\t%d\t%d\t%s\n",
			j.ID, j.Name, j.State, duration.Display(j.Elapsed), duration.Display(j.Requested),
			pct, tier, j.CPUs, j.Nodes, j.DisplayDirectory())
	}
	return tw.Flush()
}

// cancelJobs cancels every id, a few at a time. One failure does not stop the
// others; all of them are returned together.
func cancelJobs(ctx context.Context, controller *cancel.Controller, ids []string, w io.Writer) error {
	ids = uniqueIDs(ids)
	results := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(maxConcurrentCancels)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			results[i] = controller.Cancel(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	var result *multierror.Error
	for i, id := range ids {
		if results[i] != nil {
			result = multierror.Append(result, results[i])
			continue
		}
		fmt.Fprintf(w, "cancelled %s\n", id)
	}
	return result.ErrorOrNil()
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}
