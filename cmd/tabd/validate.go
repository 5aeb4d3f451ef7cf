package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tabd/internal/config"
	"tabd/internal/constants"
	"tabd/internal/crontab"
)

var validateConfigPath string

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate [table-file]",
	Short: "Check a job table for errors",
	Long: `Parse the job table (and the manifest directory, when configured) and
report every malformed entry with its file and line. Exits non-zero if any
entry is invalid or a source is unreadable.

With a table file argument, only that file is checked and no configuration
is loaded.`,
	Args: cobra.MaximumNArgs(1),
	Run:  validateHandler,
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfigPath, "config", "c", "", "path to config file")
}

func validateHandler(cmd *cobra.Command, args []string) {
	var (
		tablePath string
		jobsDir   string
	)

	if len(args) == 1 {
		tablePath = args[0]
	} else {
		configPath := validateConfigPath
		if configPath == "" {
			configPath = constants.DefaultConfigPath
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("❌ Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		tablePath = cfg.Crontab.Path
		jobsDir = cfg.Crontab.JobsDir
	}

	var (
		jobs      int
		parseErrs []crontab.ParseError
	)

	if tablePath != "" {
		table, errs, err := crontab.LoadFile(tablePath)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		jobs += len(table.Jobs)
		parseErrs = append(parseErrs, errs...)
	}

	if jobsDir != "" {
		manifestJobs, errs, err := crontab.LoadManifestDir(jobsDir)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		jobs += len(manifestJobs)
		parseErrs = append(parseErrs, errs...)
	}

	for i := range parseErrs {
		fmt.Printf("  - %v\n", &parseErrs[i])
	}

	if len(parseErrs) > 0 {
		fmt.Printf("❌ %d invalid entries, %d valid jobs\n", len(parseErrs), jobs)
		os.Exit(1)
	}
	fmt.Printf("✅ Table is valid: %d jobs\n", jobs)
}
