package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/nexusgraph-backend/internal/client"
	"github.com/yungbote/nexusgraph-backend/internal/domain/chat"
)

func chatCmd(api func() *client.API) *cobra.Command {
	var (
		socket       bool
		conversation string
	)
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one message and follow the agents as they work",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := api()

			var feeder client.Feeder = &client.HTTPFeeder{BaseURL: a.BaseURL}
			if socket {
				sf, err := client.DialSocket(ctx, a.BaseURL, "")
				if err != nil {
					return err
				}
				defer sf.Close()
				feeder = sf
			}

			printed := map[string]chat.AgentStatus{}
			req := chat.ChatRequest{Message: strings.Join(args, " "), ConversationID: conversation}
			st, err := client.RunTurn(ctx, feeder, req, func(st client.State) {
				for _, s := range st.Steps {
					if printed[s.Agent] == s.Status {
						continue
					}
					printed[s.Agent] = s.Status
					fmt.Println(stepLine(s))
				}
			})
			if err != nil {
				if client.Retryable(err) {
					return fmt.Errorf("%w (retryable)", err)
				}
				return err
			}

			fmt.Println()
			fmt.Println(bold(st.Result.Message))
			if d := st.Result.Data; d != nil && d.ResponseType != chat.ResponseText {
				fmt.Println(gray(fmt.Sprintf("[%s data attached]", d.ResponseType)))
			}
			fmt.Println(gray(fmt.Sprintf("conversation %s  %d/%d steps  %.0fms",
				st.ConversationID, st.Completed(), len(st.Steps), st.Result.ProcessingTimeMs)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&socket, "socket", false, "Use the websocket transport instead of the HTTP stream")
	cmd.Flags().StringVar(&conversation, "conversation", "", "Continue an existing conversation")
	return cmd
}
