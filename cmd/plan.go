package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/flexcompute/flexd/app"
	"github.com/flexcompute/flexd/config"
	"github.com/flexcompute/flexd/core/forecast"
	"github.com/flexcompute/flexd/core/model"
	"github.com/flexcompute/flexd/core/planner"
)

var (
	planJobsPath string
	planFrom     string
	planHours    float64
	planRegion   string
	planCluster  string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run one planning cycle over a job batch and print the result",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planJobsPath, "jobs", "", "JSON file containing the job batch")
	planCmd.Flags().StringVar(&planFrom, "from", "", "window start (RFC 3339, default now)")
	planCmd.Flags().Float64Var(&planHours, "hours", 24, "window length in hours")
	planCmd.Flags().StringVar(&planRegion, "region", "", "forecast region")
	planCmd.Flags().StringVar(&planCluster, "cluster", "", "restrict planning to one cluster")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = config.Default()
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "service close: %v\n", cerr)
		}
	}()

	if planJobsPath != "" {
		data, err := os.ReadFile(planJobsPath)
		if err != nil {
			return fmt.Errorf("read jobs: %w", err)
		}
		var batch []model.Job
		if err := json.Unmarshal(data, &batch); err != nil {
			return fmt.Errorf("parse jobs: %w", err)
		}
		res := svc.Store.Ingest(batch)
		for _, rej := range res.Rejected {
			fmt.Fprintf(cmd.ErrOrStderr(), "rejected %s: %s\n", rej.JobID, rej.Error)
		}
	}

	start := time.Now().UTC().Truncate(model.DefaultSlot)
	if planFrom != "" {
		start, err = time.Parse(time.RFC3339, planFrom)
		if err != nil {
			return fmt.Errorf("parse from: %w", err)
		}
	}
	req := planner.Request{
		Window:    forecast.Window{Start: start, End: start.Add(time.Duration(planHours * float64(time.Hour)))},
		Region:    planRegion,
		ClusterID: planCluster,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := svc.Planner.Plan(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
