// Package smartstepscmder
package smartstepscmder

import (
	"github.com/spf13/cobra"

	auditcmder "github.com/Loflou-Inc/SmartSteps-PROD-sub000/cmd/smartsteps/audit"
	configcmder "github.com/Loflou-Inc/SmartSteps-PROD-sub000/cmd/smartsteps/config"
	knowledgecmder "github.com/Loflou-Inc/SmartSteps-PROD-sub000/cmd/smartsteps/knowledge"
	recallcmder "github.com/Loflou-Inc/SmartSteps-PROD-sub000/cmd/smartsteps/recall"
	reviewcmder "github.com/Loflou-Inc/SmartSteps-PROD-sub000/cmd/smartsteps/review"
	sessioncmder "github.com/Loflou-Inc/SmartSteps-PROD-sub000/cmd/smartsteps/session"
	submitcmder "github.com/Loflou-Inc/SmartSteps-PROD-sub000/cmd/smartsteps/submit"
	versioncmder "github.com/Loflou-Inc/SmartSteps-PROD-sub000/cmd/version"
)

const smartstepsLongDesc string = `SmartSteps is the memory consistency engine behind the Jane persona.

Retrieve context for a conversation turn:
  smartsteps recall "where did you grow up?" --client c1

Submit candidate facts through quarantine and validation:
  smartsteps submit jane childhood "grew up in Ohio"

Work through flagged drafts:
  smartsteps review list
  smartsteps review resolve <id> canon --editor alice`

const smartstepsShortDesc string = "SmartSteps - Persona Memory Engine"

func NewSmartStepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smartsteps",
		Short: smartstepsShortDesc,
		Long:  smartstepsLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .smartsteps/ config directory")

	// Add subcommands
	cmd.AddCommand(recallcmder.NewRecallCmd())
	cmd.AddCommand(submitcmder.NewSubmitCmd())
	cmd.AddCommand(reviewcmder.NewReviewCmd())
	cmd.AddCommand(auditcmder.NewAuditCmd())
	cmd.AddCommand(knowledgecmder.NewKnowledgeCmd())
	cmd.AddCommand(sessioncmder.NewSessionCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
