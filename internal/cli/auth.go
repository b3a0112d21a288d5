package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var signinCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in with email and password",
	Long:  "Signs in against the backend and saves the issued consent token for later commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		expiry, _ := cmd.Flags().GetInt("token-expiry-hours")
		if email == "" || password == "" {
			return fmt.Errorf("--email and --password are required")
		}

		client := newBackendClient()
		result, err := client.SigninEmail(cmd.Context(), email, password, expiry)
		if err != nil {
			return err
		}

		sess := &Session{
			Name:         result.User.Name,
			Email:        result.User.Email,
			ConsentToken: result.ConsentToken,
		}
		if err := saveSession(sess); err != nil {
			return err
		}

		fmt.Printf("Signed in as %s <%s>\n", sess.Name, sess.Email)
		if !result.ProfileComplete() {
			fmt.Println("Your profile is incomplete; finish it in the web app settings.")
		}
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		if name == "" || email == "" || password == "" {
			return fmt.Errorf("--name, --email and --password are required")
		}

		client := newBackendClient()
		if err := client.SignupEmail(cmd.Context(), name, email, password); err != nil {
			return err
		}

		fmt.Printf("Account created for %s. Run 'hushctl signin' to continue.\n", email)
		return nil
	},
}

var signoutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Forget the saved session and consent token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := clearSession(); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession()
		if err != nil {
			return err
		}
		fmt.Printf("%s <%s>\n", sess.Name, sess.Email)
		return nil
	},
}

func init() {
	signinCmd.Flags().String("email", "", "Account email")
	signinCmd.Flags().String("password", "", "Account password")
	signinCmd.Flags().Int("token-expiry-hours", 0, "Requested consent token lifetime (0 = backend default)")

	signupCmd.Flags().String("name", "", "Full name")
	signupCmd.Flags().String("email", "", "Account email")
	signupCmd.Flags().String("password", "", "Account password")

	rootCmd.AddCommand(signinCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(signoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
