package cli

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bufbuild/connect-go"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"

	"github.com/courselens/courselens/internal/rpc"
	"github.com/courselens/courselens/internal/rpc/connectjson"
	queryrpc "github.com/courselens/courselens/internal/rpc/query"
)

// NewAskCmd sends a question to the daemon and prints the answer.
func NewAskCmd(opts *Options) *cobra.Command {
	var sessionID string
	var modelOverride string

	cmd := &cobra.Command{
		Use:   "ask \"<question>\"",
		Short: "Ask the daemon a question about the indexed courses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			question := args[0]
			if strings.TrimSpace(question) == "" {
				return fmt.Errorf("question cannot be empty")
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if sessionID == "" {
				sessionID = fmt.Sprintf("cli-%d", time.Now().UnixNano())
			}

			baseURL := daemonURL(cfg.Server.Addr)
			switch strings.ToLower(strings.TrimSpace(cfg.Server.Transport)) {
			case "ndjson":
				return askNDJSON(ctx, cmd, baseURL+"/api/query", rpc.QueryRequest{
					SessionID: sessionID,
					Model:     modelOverride,
					Query:     question,
				})
			default:
				return askConnect(ctx, cmd, baseURL+queryrpc.ConnectAskProcedure, rpc.AskRequest{
					SessionID: sessionID,
					Model:     modelOverride,
					Query:     question,
				})
			}
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session id for follow-up questions (default: fresh session)")
	cmd.Flags().StringVar(&modelOverride, "model", "", "Override model id for this question")
	return cmd
}

func daemonURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func askNDJSON(ctx context.Context, cmd *cobra.Command, url string, reqBody rpc.QueryRequest) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var evt rpc.QueryEvent
		if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := renderEvent(cmd, evt); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func askConnect(ctx context.Context, cmd *cobra.Command, url string, reqBody rpc.AskRequest) error {
	client := connect.NewClient[rpc.AskRequest, rpc.AskResponse](buildH2CClient(), url, connect.WithCodec(connectjson.Codec{}))

	resp, err := client.CallUnary(ctx, connect.NewRequest(&reqBody))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.Msg.Answer)
	printSources(cmd, resp.Msg.Sources)
	return nil
}

func renderEvent(cmd *cobra.Command, evt rpc.QueryEvent) error {
	switch evt.Type {
	case "answer":
		fmt.Fprintln(cmd.OutOrStdout(), evt.Answer)
	case "sources":
		printSources(cmd, evt.Sources)
	case "error":
		return fmt.Errorf("daemon error: %s", evt.Error)
	}
	return nil
}

func printSources(cmd *cobra.Command, sources []string) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nSources: %s\n", strings.Join(sources, ", "))
}

func buildH2CClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}
