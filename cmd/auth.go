package cmd

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Welshcorki/Genminute/credentials"
)

var (
	authUser      string
	authExpiresIn time.Duration
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage delegated calendar authorization",
	Long: `Auth stores each user's delegated calendar access token, encrypted at
rest. The encryption key lives in the system keyring; set
GENMINUTE_ENCRYPTION_KEY for headless environments.`,
}

var authSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store a user's calendar access token",
	RunE:  runAuthSet,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users with stored authorization",
	RunE:  runAuthList,
}

var authRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a user's stored authorization",
	RunE:  runAuthRemove,
}

func init() {
	authSetCmd.Flags().StringVar(&authUser, "user", "", "user id (required)")
	authSetCmd.Flags().DurationVar(&authExpiresIn, "expires-in", 0, "token lifetime, e.g. 1h (0 = no expiry)")
	_ = authSetCmd.MarkFlagRequired("user")

	authRemoveCmd.Flags().StringVar(&authUser, "user", "", "user id (required)")
	_ = authRemoveCmd.MarkFlagRequired("user")

	authCmd.AddCommand(authSetCmd, authListCmd, authRemoveCmd)
	rootCmd.AddCommand(authCmd)
}

// promptSecret reads a secret without echoing when stdin is a terminal.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		data, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runAuthSet(_ *cobra.Command, _ []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return err
	}

	token, err := promptSecret("Calendar access token: ")
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("no token given")
	}

	refresh, err := promptSecret("Refresh token (optional): ")
	if err != nil {
		refresh = ""
	}

	cred := &credentials.Credential{
		UserID:       authUser,
		AccessToken:  token,
		RefreshToken: refresh,
	}
	if authExpiresIn > 0 {
		cred.ExpiresAt = time.Now().Add(authExpiresIn)
	}

	if err := store.Save(cred); err != nil {
		return err
	}

	fmt.Printf("Stored authorization for %s (key: %s, expires: %s)\n",
		authUser, store.KeyDescription(), credentials.FormatExpiry(cred.ExpiresAt))
	return nil
}

func runAuthList(_ *cobra.Command, _ []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return err
	}

	users, err := store.Users()
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Println("No stored authorizations.")
		return nil
	}

	for _, userID := range users {
		cred, err := store.Get(userID)
		if err != nil {
			fmt.Printf("%s\t(unusable: %v)\n", userID, err)
			continue
		}
		fmt.Printf("%s\t%s\texpires %s\n",
			userID, credentials.MaskToken(cred.AccessToken), credentials.FormatExpiry(cred.ExpiresAt))
	}
	return nil
}

func runAuthRemove(_ *cobra.Command, _ []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return err
	}
	if err := store.Delete(authUser); err != nil {
		return err
	}
	fmt.Printf("Removed authorization for %s\n", authUser)
	return nil
}
