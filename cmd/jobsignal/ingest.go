package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mfairbanks/jobsignal/internal/model"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load emails or job applications from JSON files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "emails <file>",
		Short: "Load classified emails",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngestEmails,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "jobs <file>",
		Short: "Load job applications",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngestJobs,
	})
	return cmd
}

func runIngestEmails(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var emails []model.EmailRecord
	if err := readJSONFile(args[0], &emails); err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	saved := 0
	for i := range emails {
		if _, err := store.SaveEmail(ctx, &emails[i]); err != nil {
			return fmt.Errorf("email %d (%s): %w", i, emails[i].ExternalID, err)
		}
		saved++
	}

	fmt.Printf("Loaded %d emails from %s\n", saved, args[0])
	return nil
}

func runIngestJobs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var jobs []model.JobCandidate
	if err := readJSONFile(args[0], &jobs); err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	for i := range jobs {
		if err := store.SaveJob(ctx, &jobs[i]); err != nil {
			return fmt.Errorf("job %d (%s): %w", i, jobs[i].CompanyName, err)
		}
	}

	fmt.Printf("Loaded %d jobs from %s\n", len(jobs), args[0])
	return nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied input file
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
