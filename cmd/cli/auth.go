package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kosarica/analytics-service/internal/auth"
)

// envIDToken supplies the identity token when --id-token is not given
const envIDToken = "ANALYTICS_ID_TOKEN"

var loginIDToken string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Exchange an identity token for a backend session",
	Long: `Exchange an identity-provider token for a backend access token and store the
session locally. The token is read from --id-token, then ANALYTICS_ID_TOKEN,
then the first line of standard input.`,
	Example: `  analytics login --id-token "$ID_TOKEN"
  echo "$ID_TOKEN" | analytics login`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.sessions.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		s, err := a.sessions.Session(cmd.Context())
		if err != nil {
			return err
		}
		return printSession(cmd.OutOrStdout(), s)
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)

	loginCmd.Flags().StringVar(&loginIDToken, "id-token", "", "Identity-provider token (JWT)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	token, err := readIDToken(cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	s, err := a.sessions.Login(cmd.Context(), token)
	if err != nil {
		return err
	}
	return printSession(cmd.OutOrStdout(), s)
}

func readIDToken(stdin io.Reader) (string, error) {
	if loginIDToken != "" {
		return loginIDToken, nil
	}
	if v := os.Getenv(envIDToken); v != "" {
		return v, nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", fmt.Errorf("no identity token: use --id-token, %s or standard input", envIDToken)
	}
	return token, nil
}

func printSession(w io.Writer, s auth.Session) error {
	view := struct {
		UserID    string `json:"userId"`
		Email     string `json:"email,omitempty"`
		ExpiresAt string `json:"expiresAt,omitempty"`
	}{UserID: s.UserID, Email: s.Email}
	if !s.ExpiresAt.IsZero() {
		view.ExpiresAt = formatTime(s.ExpiresAt)
	}

	return emit(w, view, func(w io.Writer) {
		t := newTable(w)
		fmt.Fprintf(t, "User\t%s\n", s.UserID)
		if s.Email != "" {
			fmt.Fprintf(t, "Email\t%s\n", s.Email)
		}
		fmt.Fprintf(t, "Expires\t%s\n", formatTime(s.ExpiresAt))
		t.Flush()
	})
}
