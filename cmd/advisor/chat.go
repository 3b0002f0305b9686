package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/nlpodyssey/openai-agents-go/memory"
	"github.com/spf13/cobra"

	"github.com/faranic/advisor/config"
	"github.com/faranic/advisor/internal/agent"
	"github.com/faranic/advisor/internal/assistant"
)

func chatCMD() *cobra.Command {
	var cfgPath string

	var cmd = &cobra.Command{
		Use:   "chat",
		Short: "Interactive property Q&A assistant",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			agent.ConfigureProvider(cfg.Provider)
			reg := agent.NewRegistry(cfg)
			sessionID := uuid.NewString()

			invokers := func(ctx context.Context, id string) (agent.Invoker, error) {
				sess, err := memory.NewSQLiteSession(ctx, memory.SQLiteSessionParams{
					SessionID:        id,
					DBDataSourceName: "file:" + cfg.Storage.SQLite.Path,
				})
				if err != nil {
					return nil, err
				}
				return agent.NewInvoker(sess, "advisor-assistant", id), nil
			}
			asst := assistant.New(reg, invokers, log.New(os.Stderr, "[ASSIST] ", log.LstdFlags), cfg.Provider.APIKey != "")
			asst.Streaming = cfg.Provider.Streaming

			fmt.Println("Ask me anything about properties. Empty line exits.")
			reader := bufio.NewReader(os.Stdin)
			for {
				fmt.Print("> ")
				line, err := reader.ReadString('\n')
				if err != nil {
					return nil
				}
				line = strings.TrimSpace(line)
				if line == "" {
					return nil
				}

				reply, err := asst.Respond(cmd.Context(), sessionID, line,
					func(delta string) { fmt.Print(delta) },
					func(step string) { fmt.Printf("\n%s\n", step) })
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				if !asst.Streaming || !asst.Enabled {
					fmt.Println(reply.Content)
				} else {
					fmt.Println()
				}
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
