package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/internal/store"
)

var (
	gateUser     string
	gateRole     string
	rejectReason string
)

func actingUser() model.User {
	return model.User{ID: gateUser, Role: model.Role(gateRole)}
}

var approveCmd = &cobra.Command{
	Use:   "approve <enrichment-id>",
	Short: "Approve an enrichment and sync it to the CRM",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "gate")
		if err != nil {
			return err
		}
		defer env.Close()

		enr, err := env.Pipeline.Approve(ctx, args[0], actingUser())
		if err != nil {
			return err
		}

		fmt.Printf("%s: %s\n", enr.ID, enr.Status)
		if enr.Status == model.StatusError {
			fmt.Printf("sync failed (%s), a retry was scheduled; run the worker to retry\n", enr.Error)
		}
		return nil
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <enrichment-id>",
	Short: "Reject an enrichment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "gate")
		if err != nil {
			return err
		}
		defer env.Close()

		enr, err := env.Pipeline.Reject(ctx, args[0], actingUser(), rejectReason)
		if err != nil {
			return err
		}

		fmt.Printf("%s: %s\n", enr.ID, enr.Status)
		return nil
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List enrichments awaiting approval",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		pending, err := st.ListEnrichments(ctx, store.EnrichmentFilter{
			Status: model.StatusAwaitingApproval,
		})
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("nothing awaiting approval")
			return nil
		}

		for _, enr := range pending {
			contact, err := st.GetContact(ctx, enr.ContactID)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s <%s>  %s\n", enr.ID, contact.FullName(), contact.Email, enr.Classification)
			if enr.ApprovalBlock != "" {
				fmt.Println(enr.ApprovalBlock)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{approveCmd, rejectCmd} {
		c.Flags().StringVar(&gateUser, "as-user", "", "acting user id (required)")
		c.Flags().StringVar(&gateRole, "as-role", string(model.RoleOperator), "acting user role (admin, operator, read_only)")
		_ = c.MarkFlagRequired("as-user")
	}
	rejectCmd.Flags().StringVar(&rejectReason, "reason", "", "rejection reason recorded on the enrichment")

	rootCmd.AddCommand(approveCmd, rejectCmd, pendingCmd)
}
