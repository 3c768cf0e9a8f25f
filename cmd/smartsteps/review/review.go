// Package reviewcmder provides the review command: listing and resolving
// drafts flagged for human review.
package reviewcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/cmd/smartsteps/cmdutil"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
)

const reviewLongDesc string = `Work through drafts flagged for human review.

Leaving human_review is the only transition reserved for humans: the engine
never promotes or deletes a flagged draft on its own.

Example:
  smartsteps review list
  smartsteps review resolve 4f9d... canon --editor alice --reason "verified against intake notes"
  smartsteps review resolve 4f9d... deleted --editor alice`

const reviewShortDesc string = "List and resolve flagged drafts"

func NewReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: reviewShortDesc,
		Long:  reviewLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newResolveCmd())

	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List drafts awaiting human review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()

			rt, err := cmdutil.NewRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			var flagged []*memory.Memory
			for _, kind := range []memory.Kind{memory.KindJane, memory.KindClient} {
				records, err := rt.Engine.Store().ListByKindStatus(ctx, kind, memory.StatusHumanReview)
				if err != nil {
					return err
				}
				flagged = append(flagged, records...)
			}

			if len(flagged) == 0 {
				fmt.Println("nothing awaiting review")
				return nil
			}

			for _, m := range flagged {
				fmt.Printf("%s (%s) %s\n", m.ID, m.Kind, m.Content)
				if m.Jane != nil && len(m.Jane.Contradicts) > 0 {
					fmt.Printf("  conflicts: %v\n", m.Jane.Contradicts)
				}
			}
			return nil
		},
	}
}

type resolveCommander struct {
	editor string
	reason string
}

func newResolveCmd() *cobra.Command {
	cmder := &resolveCommander{}

	cmd := &cobra.Command{
		Use:   "resolve <id> <canon|deleted>",
		Short: "Apply a human decision to a flagged draft",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmder.editor == "" {
				return fmt.Errorf("--editor is required: only a human may resolve review")
			}

			ctx := context.Background()

			rt, err := cmdutil.NewRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			m, err := rt.Engine.ResolveHumanReview(ctx, args[0], memory.Status(args[1]), cmder.editor, cmder.reason)
			if err != nil {
				return err
			}

			fmt.Printf("memory %s -> %s\n", m.ID, m.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&cmder.editor, "editor", "", "Editor id recorded on the transition")
	cmd.Flags().StringVar(&cmder.reason, "reason", "", "Free-text reason recorded in the audit trail")

	return cmd
}
