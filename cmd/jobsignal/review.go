package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/mfairbanks/jobsignal/internal/model"
	"github.com/mfairbanks/jobsignal/internal/review"
	"github.com/mfairbanks/jobsignal/internal/scoring"
	"github.com/mfairbanks/jobsignal/internal/storage"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Work the manual review queue",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show pending review entries",
		RunE:  runReviewList,
	}
	list.Flags().Int("limit", 20, "maximum entries to show")

	next := &cobra.Command{
		Use:   "next",
		Short: "Triage pending entries interactively",
		RunE:  runReviewNext,
	}
	next.Flags().String("assignee", "", "reviewer name recorded on claimed entries")

	cmd.AddCommand(list)
	cmd.AddCommand(next)
	return cmd
}

func runReviewList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries, err := store.GetPendingReviews(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("Review queue is empty.")
		return nil
	}

	for _, entry := range entries {
		email, err := store.GetEmailByID(ctx, entry.EmailID)
		if err != nil {
			return err
		}
		fmt.Printf("[P%d] %s  %s\n      from %s · %s · queued %s\n",
			entry.Priority, entry.Reason, email.Subject,
			email.SenderEmail, email.Category,
			entry.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runReviewNext(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	assignee, _ := cmd.Flags().GetString("assignee")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	scoreCfg, err := scoringConfig()
	if err != nil {
		return err
	}
	scorer, err := scoring.NewScorer(scoreCfg)
	if err != nil {
		return err
	}

	manager := review.NewManager(store, nil)

	for {
		entries, err := manager.ListPending(ctx, 1)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Review queue is empty.")
			return nil
		}

		done, err := triageEntry(ctx, store, manager, scorer, entries[0], assignee)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// triageEntry walks one queue entry through a human decision. Returns true
// when the reviewer chose to stop.
func triageEntry(ctx context.Context, store *storage.SQLiteStorage, manager *review.Manager, scorer *scoring.Scorer, entry model.ReviewQueueEntry, assignee string) (bool, error) {
	email, err := store.GetEmailByID(ctx, entry.EmailID)
	if err != nil {
		return false, err
	}

	fmt.Printf("\n[P%d] %s\n", entry.Priority, entry.Reason)
	fmt.Printf("Subject:  %s\n", email.Subject)
	fmt.Printf("From:     %s <%s>\n", email.SenderName, email.SenderEmail)
	fmt.Printf("Category: %s · received %s\n", email.Category, email.ReceivedAt.Format("2006-01-02"))

	actionPrompt := promptui.Select{
		Label: "Action",
		Items: []string{"Link to application", "No match", "Skip", "Quit"},
	}
	idx, _, err := actionPrompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return true, nil
		}
		return false, err
	}
	if idx == 3 { // quit
		return true, nil
	}

	// Claim the entry only once the reviewer has committed to an action, so
	// quitting never strands an in_progress entry.
	if _, err := manager.Begin(ctx, entry.ID, assignee); err != nil {
		return false, err
	}

	switch idx {
	case 0: // link
		jobID, pickErr := pickCandidate(ctx, store, scorer, *email)
		if pickErr != nil {
			return false, pickErr
		}
		if jobID == "" {
			// Reviewer backed out of the candidate list
			_, skipErr := manager.Resolve(ctx, entry.ID, model.ActionSkip, "", "")
			return false, skipErr
		}
		notes, notesErr := promptNotes()
		if notesErr != nil {
			return false, notesErr
		}
		_, err = manager.Resolve(ctx, entry.ID, model.ActionLink, jobID, notes)
	case 1: // no match
		notes, notesErr := promptNotes()
		if notesErr != nil {
			return false, notesErr
		}
		_, err = manager.Resolve(ctx, entry.ID, model.ActionNoMatch, "", notes)
	case 2: // skip
		_, err = manager.Resolve(ctx, entry.ID, model.ActionSkip, "", "")
	}
	return false, err
}

// pickCandidate shows the scored candidates for the email and returns the
// chosen job id, or "" when the reviewer backs out.
func pickCandidate(ctx context.Context, store *storage.SQLiteStorage, scorer *scoring.Scorer, email model.EmailRecord) (string, error) {
	jobs, err := store.FetchCandidates(ctx, scorer.WindowStart(email.ReceivedAt))
	if err != nil {
		return "", err
	}

	ranking := scorer.Rank(email, jobs)
	if len(ranking.Candidates) == 0 {
		fmt.Println("No applications in the recency window.")
		return "", nil
	}

	items := make([]string, 0, len(ranking.Candidates)+1)
	for _, c := range ranking.Candidates {
		items = append(items, fmt.Sprintf("%s / %s (%.4f, applied %s)",
			c.Job.CompanyName, c.Job.PositionTitle, c.Composite,
			c.Job.AppliedAt.Format("2006-01-02")))
	}
	items = append(items, "Back")

	prompt := promptui.Select{
		Label: "Application",
		Items: items,
		Size:  10,
	}
	idx, _, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return "", nil
		}
		return "", err
	}
	if idx == len(items)-1 {
		return "", nil
	}
	return ranking.Candidates[idx].Job.ID, nil
}

func promptNotes() (string, error) {
	prompt := promptui.Prompt{
		Label:   "Notes (optional)",
		Default: "",
	}
	notes, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return "", nil
		}
		return "", err
	}
	return notes, nil
}
