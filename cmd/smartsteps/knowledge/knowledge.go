// Package knowledgecmder provides the knowledge command: ingesting reference
// material chunks into the knowledge base.
package knowledgecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/cmd/smartsteps/cmdutil"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
)

type knowledgeCommander struct {
	source string
	page   int
	topics []string
}

const knowledgeLongDesc string = `Ingest a knowledge-base chunk.

Chunks are reference material, not generated facts: they skip quarantine,
are stored directly in canon, and are immutable afterwards. The chunk is
embedded and indexed asynchronously.

Example:
  smartsteps knowledge add "Grounding techniques interrupt panic spirals..." \
    --source "CBT Handbook" --page 112 --topic panic --topic grounding`

const knowledgeShortDesc string = "Manage the knowledge base"

func NewKnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: knowledgeShortDesc,
		Long:  knowledgeLongDesc,
	}

	cmd.AddCommand(newAddCmd())

	return cmd
}

func newAddCmd() *cobra.Command {
	cmder := &knowledgeCommander{}

	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Add a knowledge chunk to the canon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&cmder.source, "source", "", "Source document name")
	cmd.Flags().IntVar(&cmder.page, "page", 0, "Source page number")
	cmd.Flags().StringSliceVar(&cmder.topics, "topic", nil, "Topic tags")

	return cmd
}

func (c *knowledgeCommander) run(cmd *cobra.Command, content string) error {
	ctx := context.Background()

	rt, err := cmdutil.NewRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	chunk := memory.NewKnowledgeChunk(c.source, c.page, content, nil)
	chunk.Knowledge.Topics = c.topics

	id, err := rt.Engine.AddKnowledge(ctx, chunk)
	if err != nil {
		return err
	}

	fmt.Printf("knowledge chunk %s stored in canon\n", id)
	return nil
}
