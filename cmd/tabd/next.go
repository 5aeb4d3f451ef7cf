package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"tabd/internal/config"
	"tabd/internal/constants"
	"tabd/internal/crontab"
)

var (
	nextConfigPath string
	nextCount      int
)

// nextCmd represents the next command
var nextCmd = &cobra.Command{
	Use:   "next [table-file]",
	Short: "Show the upcoming activations",
	Long: `Load the job table and print the next activation of every job,
soonest first. Useful for checking what a table edit actually scheduled.

With a table file argument, only that file is read and no configuration
is loaded.`,
	Args: cobra.MaximumNArgs(1),
	Run:  nextHandler,
}

func init() {
	nextCmd.Flags().StringVarP(&nextConfigPath, "config", "c", "", "path to config file")
	nextCmd.Flags().IntVarP(&nextCount, "count", "n", 0, "limit output to the first N activations")
}

type activation struct {
	at  time.Time
	job crontab.JobDefinition
}

func nextHandler(cmd *cobra.Command, args []string) {
	cfg := &config.Config{}
	if len(args) == 1 {
		cfg.Crontab.Path = args[0]
	} else {
		configPath := nextConfigPath
		if configPath == "" {
			configPath = constants.DefaultConfigPath
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("❌ Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	now := time.Now().In(cfg.Location())

	var activations []activation
	collect := func(jobs []crontab.JobDefinition) {
		for i := range jobs {
			activations = append(activations, activation{
				at:  jobs[i].Next(now),
				job: jobs[i],
			})
		}
	}

	if cfg.Crontab.Path != "" {
		table, parseErrs, err := crontab.LoadFile(cfg.Crontab.Path)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		for i := range parseErrs {
			fmt.Fprintf(os.Stderr, "skipping %v\n", &parseErrs[i])
		}
		collect(table.Jobs)
	}
	if cfg.Crontab.JobsDir != "" {
		jobs, parseErrs, err := crontab.LoadManifestDir(cfg.Crontab.JobsDir)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		for i := range parseErrs {
			fmt.Fprintf(os.Stderr, "skipping %v\n", &parseErrs[i])
		}
		collect(jobs)
	}

	sort.Slice(activations, func(i, j int) bool {
		return activations[i].at.Before(activations[j].at)
	})
	if nextCount > 0 && len(activations) > nextCount {
		activations = activations[:nextCount]
	}

	for _, a := range activations {
		fmt.Printf("%s  %-12s %-10s %s\n",
			a.at.Format("2006-01-02 15:04 MST"),
			a.job.Label(),
			a.job.Identity,
			a.job.Command)
	}
}
