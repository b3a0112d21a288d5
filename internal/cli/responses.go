package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hushlabs/consent-secretary/internal/backend"
	"github.com/hushlabs/consent-secretary/internal/lifecycle"
)

func printDrafts(drafts []backend.DraftResponse, withStatus bool) {
	for _, d := range drafts {
		fmt.Printf("[%s] %s\n", d.ID, d.EmailSubject)
		fmt.Printf("    To:    %s\n", d.SenderEmail)
		if withStatus {
			fmt.Printf("    Status: %s\n", d.Status)
		}
		if d.AgentType != "" {
			fmt.Printf("    Agent: %s\n", d.AgentType)
		}
		fmt.Printf("    Draft: %s\n", d.Message)
		if d.AttachmentFilename != "" {
			fmt.Printf("    Attachment: %s\n", d.AttachmentFilename)
		}
		fmt.Println()
	}
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List drafts awaiting a decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession()
		if err != nil {
			return err
		}

		tracker := lifecycle.NewTracker(newBackendClient(), sess.Email)
		drafts, err := tracker.RefreshPending(cmd.Context())
		if err != nil {
			return err
		}

		if len(drafts) == 0 {
			fmt.Println("No pending responses.")
			return nil
		}
		printDrafts(drafts, false)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List approved and rejected drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession()
		if err != nil {
			return err
		}

		tracker := lifecycle.NewTracker(newBackendClient(), sess.Email)
		drafts, err := tracker.RefreshHistory(cmd.Context())
		if err != nil {
			return err
		}

		if len(drafts) == 0 {
			fmt.Println("No response history yet.")
			return nil
		}
		printDrafts(drafts, true)
		return nil
	},
}

// pendingTracker loads the saved session and primes a tracker with the
// current pending collection, so lifecycle rules apply to the action.
func pendingTracker(cmd *cobra.Command) (*lifecycle.Tracker, error) {
	sess, err := loadSession()
	if err != nil {
		return nil, err
	}
	tracker := lifecycle.NewTracker(newBackendClient(), sess.Email)
	if _, err := tracker.RefreshPending(cmd.Context()); err != nil {
		return nil, err
	}
	if _, err := tracker.RefreshHistory(cmd.Context()); err != nil {
		return nil, err
	}
	return tracker, nil
}

var approveCmd = &cobra.Command{
	Use:   "approve <response-id>",
	Short: "Approve a pending draft and send the reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := pendingTracker(cmd)
		if err != nil {
			return err
		}

		var sendAttachment *bool
		if cmd.Flags().Changed("no-attachment") {
			v := false
			sendAttachment = &v
		}

		result, err := tracker.Approve(cmd.Context(), args[0], sendAttachment)
		if err != nil {
			return err
		}
		fmt.Println(result.Message)
		return nil
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <response-id>",
	Short: "Reject a pending draft; nothing is sent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := pendingTracker(cmd)
		if err != nil {
			return err
		}

		result, err := tracker.Reject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(result.Message)
		return nil
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate <response-id>",
	Short: "Regenerate a pending draft, optionally steering it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := pendingTracker(cmd)
		if err != nil {
			return err
		}

		suggestion, _ := cmd.Flags().GetString("suggestion")
		kbToken, _ := cmd.Flags().GetString("kb-token")

		var upload *backend.FileUpload
		if path, _ := cmd.Flags().GetString("file"); path != "" {
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read context file: %w", err)
			}
			upload = &backend.FileUpload{Filename: filepath.Base(path), Content: content}
		}

		result, err := tracker.Regenerate(cmd.Context(), args[0], suggestion, upload, kbToken)
		if err != nil {
			return err
		}

		fmt.Println(result.Message)
		if result.GeneratedReply != nil {
			fmt.Println()
			fmt.Println(result.GeneratedReply.Message)
		}
		return nil
	},
}

func init() {
	approveCmd.Flags().Bool("no-attachment", false, "Send the reply without its proposed attachment")

	regenerateCmd.Flags().String("suggestion", "", "Free-text steering for the regenerated draft")
	regenerateCmd.Flags().String("file", "", "Path of a document to attach for added context")
	regenerateCmd.Flags().String("kb-token", "", "Knowledge base consent token (optional)")

	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(regenerateCmd)
}
