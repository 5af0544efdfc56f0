package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"trade-closeout/internal/acceptance"
	"trade-closeout/internal/completion"
	"trade-closeout/internal/models"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <trade-id>",
	Short: "Record the on-site inspection (client)",
	Long: `Record the on-site inspection.

Without defects, with --accept and a complete checklist the work is accepted
and the contractor is rated (--overall is required). Otherwise the trade moves to "accepted with reservations" and the contractor
gets a remediation task for every defect.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, role, err := session()
		if err != nil {
			return err
		}
		id, err := parseTradeID(args[0])
		if err != nil {
			return err
		}

		accept, _ := cmd.Flags().GetBool("accept")
		notes, _ := cmd.Flags().GetString("notes")
		inspector, _ := cmd.Flags().GetString("inspector")
		rawChecklist, _ := cmd.Flags().GetString("checklist")
		defectsFile, _ := cmd.Flags().GetString("defects")
		rawReview, _ := cmd.Flags().GetString("review-date")

		checklist, err := parseChecklist(rawChecklist)
		if err != nil {
			return err
		}
		var drafts []models.DefectInput
		if defectsFile != "" {
			if drafts, err = loadDefects(defectsFile); err != nil {
				return err
			}
		}

		state, err := loadState(cmd.Context(), api, id)
		if err != nil {
			return err
		}
		coord := acceptance.NewCoordinator(state, api, role,
			acceptance.WithNotifier(acceptance.NotifierFunc(func(_ context.Context, n acceptance.Notification) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", n.Title, n.Message)
			})))

		insp, err := coord.StartAcceptance(cmd.Context())
		if err != nil {
			return err
		}
		insp.Accepted = accept
		insp.Notes = notes
		insp.InspectorName = inspector
		insp.Checklist = checklist
		if rawReview != "" {
			review, err := time.ParseInLocation("2006-01-02", rawReview, time.Local)
			if err != nil {
				return fmt.Errorf("invalid review date %q, want YYYY-MM-DD", rawReview)
			}
			insp.ReviewDate = &review
		}
		for _, d := range drafts {
			if err := insp.AddDefect(d); err != nil {
				return err
			}
		}
		if insp.Clean() {
			r, err := ratingsFlags(cmd)
			if err != nil {
				return err
			}
			insp.SetRatings(r)
		}

		acc, err := coord.CompleteAcceptance(cmd.Context(), insp.Result())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Приёмка #%d: %s\n", acc.ID, completion.Label(state.Status()))
		for _, d := range acc.Defects {
			fmt.Fprintf(out, "  дефект #%d %s (%s)\n", d.ID, d.Title, d.Severity)
		}
		return nil
	},
}

var finalCmd = &cobra.Command{
	Use:   "final <trade-id>",
	Short: "Final acceptance (client) or remediation report (contractor)",
	Long: `Final acceptance step.

The contractor marks fixed defects with --resolve and reports remediation.
The client confirms every defect is fixed and rates the contractor; the
overall rating is required.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, role, err := session()
		if err != nil {
			return err
		}
		id, err := parseTradeID(args[0])
		if err != nil {
			return err
		}

		resolveAll, _ := cmd.Flags().GetBool("all")
		rawResolve, _ := cmd.Flags().GetString("resolve")
		notes, _ := cmd.Flags().GetString("notes")
		toResolve, err := parseIDs(rawResolve)
		if err != nil {
			return err
		}

		state, err := loadState(cmd.Context(), api, id)
		if err != nil {
			return err
		}
		final := acceptance.NewFinalCoordinator(state, api, role)
		sess, err := final.Open(cmd.Context())
		if err != nil {
			return err
		}

		if resolveAll {
			for _, d := range sess.Defects() {
				if err := sess.Check(d.ID); err != nil {
					return err
				}
			}
		}
		for _, defectID := range toResolve {
			if err := sess.Check(defectID); err != nil {
				return err
			}
		}
		sess.SetNotes(notes)

		if sess.NeedsRatings() {
			r, err := ratingsFlags(cmd)
			if err != nil {
				return err
			}
			if err := sess.SetRatings(r); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		for _, d := range sess.Defects() {
			mark := "[ ]"
			if sess.IsChecked(d.ID) {
				mark = "[x]"
			}
			fmt.Fprintf(out, "%s #%d %s\n", mark, d.ID, d.Title)
		}
		if !sess.AllDefectsResolved() {
			return fmt.Errorf("%w: mark every defect with --resolve or --all", completion.ErrPrecondition)
		}

		if err := final.Submit(cmd.Context(), sess); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %s\n", sess.Label(), completion.Label(state.Status()))
		return nil
	},
}

func ratingsFlags(cmd *cobra.Command) (models.Ratings, error) {
	var r models.Ratings
	for name, dst := range map[string]*int{
		"overall":       &r.Overall,
		"quality":       &r.Quality,
		"timeliness":    &r.Timeliness,
		"communication": &r.Communication,
	} {
		v, err := cmd.Flags().GetInt(name)
		if err != nil {
			return r, err
		}
		*dst = v
	}
	return r, nil
}

func addRatingFlags(cmd *cobra.Command) {
	cmd.Flags().Int("overall", 0, "overall rating 1-5 (client, required)")
	cmd.Flags().Int("quality", 0, "quality rating 1-5")
	cmd.Flags().Int("timeliness", 0, "timeliness rating 1-5")
	cmd.Flags().Int("communication", 0, "communication rating 1-5")
}

func parseIDs(raw string) ([]uint, error) {
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "#"))
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid defect id %q", part)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func init() {
	inspectCmd.Flags().Bool("accept", false, "accept the work")
	inspectCmd.Flags().String("notes", "", "acceptance notes")
	inspectCmd.Flags().String("inspector", "", "inspector name")
	inspectCmd.Flags().String("checklist", "", `checked items: all or work,quality,specs,safety,cleanup,documents`)
	inspectCmd.Flags().String("defects", "", "YAML file with recorded defects")
	inspectCmd.Flags().String("review-date", "", "follow-up inspection date, YYYY-MM-DD")
	addRatingFlags(inspectCmd)

	finalCmd.Flags().String("resolve", "", "comma-separated defect ids to mark as fixed")
	finalCmd.Flags().Bool("all", false, "mark every defect as fixed")
	finalCmd.Flags().String("notes", "", "final notes")
	addRatingFlags(finalCmd)

	rootCmd.AddCommand(inspectCmd, finalCmd)
}
