package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hushlabs/consent-secretary/internal/lifecycle"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List summarized unread emails",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadSession(); err != nil {
			return err
		}

		client := newBackendClient()
		items, err := client.Summarize(cmd.Context())
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No unread emails. All caught up!")
			return nil
		}

		for _, item := range items {
			id := lifecycle.DeriveID(item.Subject, item.Sender)
			fmt.Printf("[%s] %s\n", id, item.Subject)
			fmt.Printf("    From:     %s\n", item.Sender)
			fmt.Printf("    Priority: %s  Intent: %s\n", item.Priority, item.Intent)
			fmt.Printf("    Summary:  %s\n", item.Summary)
			if !lifecycle.CanReply(item.Intent) {
				fmt.Println("    (no reply needed)")
			}
			fmt.Println()
		}
		return nil
	},
}

var replyCmd = &cobra.Command{
	Use:   "reply <email-id>",
	Short: "Generate a draft reply for an inbox email",
	Long:  "Generates a draft reply for the email with the given id from 'hushctl inbox'. Requires a consent token from signin.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession()
		if err != nil {
			return err
		}
		kbToken, _ := cmd.Flags().GetString("kb-token")

		client := newBackendClient()

		// The derived id is only meaningful against a fresh listing.
		items, err := client.Summarize(cmd.Context())
		if err != nil {
			return err
		}

		tracker := lifecycle.NewTracker(client, sess.Email)
		for _, item := range items {
			if lifecycle.DeriveID(item.Subject, item.Sender) != args[0] {
				continue
			}
			if !lifecycle.CanReply(item.Intent) {
				return fmt.Errorf("no reply is offered for this email (intent: %s)", item.Intent)
			}

			result, err := tracker.Generate(cmd.Context(), item, sess.ConsentToken, kbToken)
			if err != nil {
				return err
			}

			fmt.Printf("Draft %s is pending.\n", result.ResponseID)
			if result.GeneratedReply != nil {
				fmt.Printf("Agent: %s  Confidence: %.0f%%\n",
					result.GeneratedReply.ResponseType, result.GeneratedReply.Confidence*100)
				fmt.Println()
				fmt.Println(result.GeneratedReply.Message)
			}
			return nil
		}

		return fmt.Errorf("no inbox email with id %s; run 'hushctl inbox' for current ids", args[0])
	},
}

func init() {
	replyCmd.Flags().String("kb-token", "", "Knowledge base consent token from 'hushctl kb consent' (optional)")

	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(replyCmd)
}
