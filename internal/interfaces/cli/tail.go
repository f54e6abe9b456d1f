package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// DefaultWSURL is where a locally running state server's viewer port listens.
const DefaultWSURL = "ws://localhost:8765"

// newTailCmd returns the debugging viewer: it connects to the state server's
// WebSocket port as a viewer and prints every message it receives. Useful for
// checking what viewers actually see without standing up a UI.
func newTailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow an agent's live stream from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wsURL, _ := cmd.Flags().GetString("url")
			raw, _ := cmd.Flags().GetBool("raw")
			settings := cliSettings(cmd)

			u, err := url.Parse(wsURL)
			if err != nil {
				return fmt.Errorf("invalid websocket url %q: %w", wsURL, err)
			}
			q := u.Query()
			q.Set("agent", settings.AgentID)
			u.RawQuery = q.Encode()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
			if err != nil {
				return fmt.Errorf("connect %s: %w", u.String(), err)
			}
			defer conn.Close()

			fmt.Fprintf(os.Stderr, "Tailing %s (agent %q), Ctrl-C to stop\n", wsURL, settings.AgentID)

			go func() {
				<-ctx.Done()
				deadline := time.Now().Add(time.Second)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
				_ = conn.Close()
			}()

			for {
				_, message, err := conn.ReadMessage()
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("stream closed: %w", err)
				}
				printMessage(message, raw)
			}
		},
	}
	cmd.Flags().String("url", DefaultWSURL, "state server WebSocket URL")
	cmd.Flags().Bool("raw", false, "print messages as received, without re-indenting")
	return cmd
}

func printMessage(message []byte, raw bool) {
	if raw {
		fmt.Println(string(message))
		return
	}
	var pretty map[string]any
	if err := json.Unmarshal(message, &pretty); err != nil {
		fmt.Println(string(message))
		return
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Println(string(message))
		return
	}
	fmt.Println(string(out))
}
