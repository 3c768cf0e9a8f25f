// Package auditcmder provides the audit command: inspecting a memory's
// append-only audit trail and version history.
package auditcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/cmd/smartsteps/cmdutil"
)

type auditCommander struct {
	history bool
}

const auditLongDesc string = `Print the append-only audit trail for a memory.

Every creation and status transition is one entry; the trail is never mutated
or truncated. With --history, the retained record versions are printed too.

Example:
  smartsteps audit 4f9d...
  smartsteps audit 4f9d... --history`

const auditShortDesc string = "Inspect a memory's audit trail"

func NewAuditCmd() *cobra.Command {
	cmder := &auditCommander{}

	cmd := &cobra.Command{
		Use:   "audit <id>",
		Short: auditShortDesc,
		Long:  auditLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&cmder.history, "history", false, "Also print retained record versions")

	return cmd
}

func (c *auditCommander) run(cmd *cobra.Command, id string) error {
	ctx := context.Background()

	rt, err := cmdutil.NewRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	entries, err := rt.Engine.Store().Audit(ctx, id)
	if err != nil {
		return err
	}

	for _, e := range entries {
		from := string(e.FromStatus)
		if from == "" {
			from = "(created)"
		}
		fmt.Printf("%s  %s -> %s  actor=%s  %s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), from, e.ToStatus, e.Actor, e.Reason)
	}

	if !c.history {
		return nil
	}

	versions, err := rt.Engine.Store().History(ctx, id)
	if err != nil {
		return err
	}

	fmt.Println()
	for _, v := range versions {
		fmt.Printf("v%d [%s] %s\n", v.Version, v.Status, v.Content)
	}
	return nil
}
