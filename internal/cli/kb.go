package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the knowledge base your assistant draws on",
}

var kbConsentCmd = &cobra.Command{
	Use:   "consent",
	Short: "Grant knowledge-base access and print the issued token",
	Long:  "Mints a knowledge base consent token. Pass it to 'reply' or 'regenerate' via --kb-token; it is never required.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession()
		if err != nil {
			return err
		}

		token, err := newBackendClient().GenerateKBToken(cmd.Context(), sess.Email)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploaded knowledge-base files",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession()
		if err != nil {
			return err
		}

		files, err := newBackendClient().KBFiles(cmd.Context(), sess.Email)
		if err != nil {
			return err
		}

		if len(files) == 0 {
			fmt.Println("Your knowledge base is empty.")
			return nil
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return nil
	},
}

var kbUploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a document to the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession()
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()

		message, err := newBackendClient().UploadKBFile(cmd.Context(), sess.Email, filepath.Base(args[0]), f)
		if err != nil {
			return err
		}
		fmt.Println(message)
		return nil
	},
}

var kbRemoveCmd = &cobra.Command{
	Use:   "rm <filename>",
	Short: "Delete a knowledge-base file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession()
		if err != nil {
			return err
		}

		message, err := newBackendClient().DeleteKBFile(cmd.Context(), sess.Email, args[0])
		if err != nil {
			return err
		}
		fmt.Println(message)
		return nil
	},
}

func init() {
	kbCmd.AddCommand(kbConsentCmd)
	kbCmd.AddCommand(kbListCmd)
	kbCmd.AddCommand(kbUploadCmd)
	kbCmd.AddCommand(kbRemoveCmd)

	rootCmd.AddCommand(kbCmd)
}
