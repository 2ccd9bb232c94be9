// Package chatcmder provides the chat command for talking to a persona
// through a running rapport relay.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/rapport/pkg/cliui"
	"github.com/papercomputeco/rapport/pkg/config"
	"github.com/papercomputeco/rapport/pkg/dotdir"
	"github.com/papercomputeco/rapport/pkg/llm"
	"github.com/papercomputeco/rapport/pkg/logger"
	"github.com/papercomputeco/rapport/pkg/utils"
	"github.com/papercomputeco/rapport/relay"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("%s> ")
)

var chatFlags = config.FlagSet{
	config.FlagRelayTarget: {Name: "relay-target", Shorthand: "r", ViperKey: "client.relay_target", Description: "Rapport relay URL"},
}

type chatCommander struct {
	relayTarget string
	personaID   string
	userID      string
	fresh       bool
	markdown    bool
	debug       bool
	configDir   string

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
}

const chatLongDesc string = `Start an interactive chat with a persona through the rapport relay.

Replies stream in as they are generated. When a user is given, the relay
stores the exchange encrypted for that user and remembers facts from it for
later conversations with the same persona.

The session (conversation ID and history) is saved per persona in the
.rapport/ directory and resumed the next time you chat with that persona.
Use --new to start over.

Examples:
  rapport chat --persona coach --user alice
  rapport chat -P coach --markdown
  rapport chat -P coach --new --relay-target http://localhost:8080`

const chatShortDesc string = "Chat with a persona through the rapport relay"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, chatFlags, []string{config.FlagRelayTarget})
			cmder.relayTarget = v.GetString("client.relay_target")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, chatFlags, config.FlagRelayTarget, &cmder.relayTarget)
	cmd.Flags().StringVarP(&cmder.personaID, "persona", "P", "", "Persona to chat with")
	cmd.Flags().StringVarP(&cmder.userID, "user", "u", os.Getenv("USER"), "User ID sent to the relay (empty for anonymous)")
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Discard the saved session and start a new conversation")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render each reply as markdown once it completes")
	_ = cmd.MarkFlagRequired("persona")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(c.errOut),
		logger.WithRedact(logger.SensitiveKeys...),
	)

	sessions := dotdir.NewManager()
	if c.fresh {
		if err := sessions.ClearSession(c.configDir, c.personaID); err != nil {
			return err
		}
	}

	session, err := sessions.LoadSession(c.configDir, c.personaID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	fmt.Fprintln(c.out)
	if session != nil {
		fmt.Fprintf(c.out, "  %s Resuming %s %s\n",
			cliui.SuccessMark,
			cliui.ValueStyle.Render(utils.Truncate(session.ConversationID, 16)),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(session.Messages))),
		)
	} else {
		session = &dotdir.Session{PersonaID: c.personaID}
		fmt.Fprintf(c.out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}

	fmt.Fprintf(c.out, "  %s %s\n\n",
		cliui.KeyStyle.Render("Persona:"),
		cliui.NameStyle.Render(c.personaID),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	client := NewClient(c.relayTarget, c.userID)
	scanner := bufio.NewScanner(c.in)

	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		reply, err := c.turn(ctx, client, session, input)
		if err != nil {
			fmt.Fprintf(c.errOut, "\n  %s %v\n\n", cliui.FailMark, err)
			continue
		}

		session.Messages = append(session.Messages,
			llm.NewUserMessage(input),
			llm.NewAssistantMessage(reply.Text),
		)
		if reply.ConversationID != "" {
			session.ConversationID = reply.ConversationID
		}
		if err := sessions.SaveSession(c.configDir, session); err != nil {
			c.logger.Warn("could not save session", "error", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// turn sends one message and prints the reply as it streams.
func (c *chatCommander) turn(ctx context.Context, client *Client, session *dotdir.Session, input string) (*Reply, error) {
	req := &relay.ChatRequest{
		PersonaID:      c.personaID,
		Message:        input,
		History:        session.Messages,
		ConversationID: session.ConversationID,
	}

	c.logger.Debug("sending chat request",
		"relay_target", c.relayTarget,
		"persona", c.personaID,
		"history", len(session.Messages),
	)

	fmt.Fprintf(c.out, assistantPrompt, c.personaID)

	var onText func(string)
	if !c.markdown {
		onText = func(s string) { fmt.Fprint(c.out, s) }
	}

	reply, err := client.Send(ctx, req, onText)
	if err != nil {
		return nil, err
	}

	if c.markdown {
		rendered, err := cliui.RenderMarkdown(reply.Text)
		if err != nil {
			c.logger.Debug("markdown render failed", "error", err)
		}
		fmt.Fprint(c.out, "\n"+rendered)
	} else {
		fmt.Fprint(c.out, "\n\n")
	}

	return reply, nil
}
