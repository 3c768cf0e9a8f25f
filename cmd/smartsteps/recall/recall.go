// Package recallcmder provides the recall command: context retrieval for a
// conversation turn.
package recallcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/cmd/smartsteps/cmdutil"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/retrieval"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/utils"
)

type recallCommander struct {
	query    string
	clientID string
	hints    []string
}

const recallLongDesc string = `Assemble the context bundle for a conversation turn.

The query is classified into one or more buckets (about-Jane,
about-client-history, therapeutic-question), fanned out to the matching
collections, and the merged, ranked, deduplicated bundle is printed.
Knowledge-base hits are sanitized before display.

Example:
  smartsteps recall "where did you grow up?"
  smartsteps recall "I mentioned my brother last session" --client c1
  smartsteps recall "breathing exercises for panic" --hint therapeutic-question`

const recallShortDesc string = "Retrieve context for a conversation turn"

func NewRecallCmd() *cobra.Command {
	cmder := &recallCommander{}

	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: recallShortDesc,
		Long:  recallLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.clientID, "client", "c", "", "Client id scoping history lookups")
	cmd.Flags().StringSliceVar(&cmder.hints, "hint", nil, "Force-include classification buckets")

	return cmd
}

func (c *recallCommander) run(cmd *cobra.Command) error {
	ctx := context.Background()

	rt, err := cmdutil.NewRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	hints := make([]retrieval.Bucket, 0, len(c.hints))
	for _, h := range c.hints {
		hints = append(hints, retrieval.Bucket(h))
	}

	bundle := rt.Engine.HandleTurn(ctx, retrieval.Query{
		Text:     c.query,
		ClientID: c.clientID,
		Hints:    hints,
	})

	if bundle.Empty {
		fmt.Println("no context available (all sub-queries failed); use a generic fallback reply")
		return nil
	}

	if bundle.Degraded {
		fmt.Println("warning: partial context (at least one sub-query degraded)")
	}

	if len(bundle.Items) == 0 {
		fmt.Println("no matching memories")
		return nil
	}

	for i, item := range bundle.Items {
		fmt.Printf("%2d. [%.3f] (%s) %s\n    %s\n",
			i+1, item.Score, item.Source, item.Memory.ID, utils.Truncate(item.Memory.Content, 160))
	}
	return nil
}
