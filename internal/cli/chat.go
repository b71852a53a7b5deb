package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"study-service/internal/client"
	"study-service/internal/domain"
)

// NewChatCmd asks the tutor one question about a study and prints the reply as
// it streams in.
func NewChatCmd() *cobra.Command {
	var (
		apiURL   string
		email    string
		password string
		studyID  string
		chatCtx  string
	)
	envAPI := os.Getenv("STUDY_API_URL")
	if envAPI == "" {
		envAPI = "http://localhost:8080/api"
	}

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the tutor about a study from the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("STUDY_PASSWORD")
			}
			if email == "" || password == "" || studyID == "" {
				return errors.New("--email, --password (or STUDY_PASSWORD) and --study are required")
			}
			chat, err := domain.ParseChatContext(chatCtx)
			if err != nil {
				return err
			}
			c, err := client.New(client.Config{BaseURL: apiURL})
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, err := c.Login(ctx, email, password); err != nil {
				return fmt.Errorf("login: %w", err)
			}

			ws := client.NewWorkspace(c, client.NewStore(), studyID)
			if _, err := ws.Load(ctx); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printed := ""
			ws.Store().Subscribe(func(st client.State) {
				msgs := st.Chat[chat]
				if len(msgs) == 0 {
					return
				}
				last := msgs[len(msgs)-1]
				if last.Role != domain.RoleAssistant {
					return
				}
				printed = printDelta(out, last.Content, printed)
			})

			_, err = client.NewConversation(ws).Send(ctx, chat, strings.Join(args, " "), nil)
			fmt.Fprintln(out)
			return err
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", envAPI, "API base URL")
	cmd.Flags().StringVar(&email, "email", os.Getenv("STUDY_EMAIL"), "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&studyID, "study", "", "study id")
	cmd.Flags().StringVar(&chatCtx, "context", string(domain.ChatDocument), "chat context: document or quiz")
	return cmd
}

// printDelta writes the part of content not yet printed. A reply that no
// longer extends what was printed (the failure text) is written on its own line.
func printDelta(w io.Writer, content, printed string) string {
	if strings.HasPrefix(content, printed) {
		fmt.Fprint(w, content[len(printed):])
		return content
	}
	fmt.Fprintf(w, "\n%s", content)
	return content
}
