// Package sessioncmder provides the session command: closing out a finished
// session by summarizing it into client memories.
package sessioncmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/cmd/smartsteps/cmdutil"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/summarizer"
)

type endCommander struct {
	number         int
	transcriptPath string
}

const sessionLongDesc string = `Close out a finished session.

The transcript is condensed into discrete client disclosures, each submitted
through the quarantine pipeline, and the structured summary plus memory
references are appended to the session record.

Example:
  smartsteps session end sess-42 --number 7 --transcript transcript.txt`

const sessionShortDesc string = "Session lifecycle operations"

func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: sessionShortDesc,
		Long:  sessionLongDesc,
	}

	cmd.AddCommand(newEndCmd())

	return cmd
}

func newEndCmd() *cobra.Command {
	cmder := &endCommander{}

	cmd := &cobra.Command{
		Use:   "end <session-id>",
		Short: "Summarize a finished session into client memories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&cmder.number, "number", 0, "The session's ordinal for the client")
	cmd.Flags().StringVar(&cmder.transcriptPath, "transcript", "", "Path to the transcript file")
	_ = cmd.MarkFlagRequired("transcript")

	return cmd
}

func (c *endCommander) run(cmd *cobra.Command, sessionID string) error {
	ctx := context.Background()

	transcript, err := os.ReadFile(c.transcriptPath)
	if err != nil {
		return fmt.Errorf("reading transcript: %w", err)
	}

	rt, err := cmdutil.NewRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.Engine.EndSession(ctx, summarizer.Request{
		SessionID:     sessionID,
		SessionNumber: c.number,
		Transcript:    string(transcript),
	})
	if err != nil {
		return err
	}

	fmt.Printf("session %s summarized: %d disclosures\n", sessionID, len(result.Memories))
	for _, m := range result.Memories {
		fmt.Printf("  %s -> %s\n", m.ID, m.Status)
	}
	return nil
}
