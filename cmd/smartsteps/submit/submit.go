// Package submitcmder provides the submit command: candidate facts enter
// quarantine and validation here.
package submitcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/cmd/smartsteps/cmdutil"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
)

type submitCommander struct {
	model     string
	sensitive bool
}

const submitLongDesc string = `Submit a candidate fact through the quarantine pipeline.

The draft is stored, quarantined, validated against the existing canon, and
lands in canon (consistent) or human_review (inconsistent or unverifiable).

Example:
  smartsteps submit jane childhood "grew up in Ohio"
  smartsteps submit client c1 "has an older brother named Tom" --sensitive`

const submitShortDesc string = "Submit a candidate fact for validation"

func NewSubmitCmd() *cobra.Command {
	cmder := &submitCommander{}

	cmd := &cobra.Command{
		Use:   "submit <jane|client> <topic|client-id> <content>",
		Short: submitShortDesc,
		Long:  submitLongDesc,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0], args[1], args[2])
		},
	}

	cmd.Flags().StringVar(&cmder.model, "model", "cli", "Generating model recorded on the draft")
	cmd.Flags().BoolVar(&cmder.sensitive, "sensitive", false, "Store the content encrypted at rest")

	return cmd
}

func (c *submitCommander) run(cmd *cobra.Command, kind, scope, content string) error {
	ctx := context.Background()

	var draft *memory.Memory
	switch kind {
	case "jane":
		draft = memory.NewJaneDraft(scope, content, memory.Actor{Model: c.model})
	case "client":
		draft = memory.NewClientDraft(scope, content, memory.Actor{Model: c.model})
	default:
		return fmt.Errorf("unknown kind %q (expected jane or client)", kind)
	}
	draft.NeedsEncryption = c.sensitive

	rt, err := cmdutil.NewRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	committed := rt.Engine.CommitFacts(ctx, []*memory.Memory{draft})
	if len(committed) == 0 {
		return fmt.Errorf("submission failed, see log output")
	}

	m := committed[0]
	fmt.Printf("memory %s -> %s\n", m.ID, m.Status)
	if m.Status == memory.StatusHumanReview && m.Jane != nil && len(m.Jane.Contradicts) > 0 {
		fmt.Printf("conflicts: %v\n", m.Jane.Contradicts)
	}
	return nil
}
