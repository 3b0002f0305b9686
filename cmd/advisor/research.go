package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/faranic/advisor/config"
	"github.com/faranic/advisor/internal/agent"
	"github.com/faranic/advisor/internal/research"
	"github.com/faranic/advisor/internal/telemetry"
)

func researchCMD() *cobra.Command {
	var cfgPath string
	var skipClarify bool

	var cmd = &cobra.Command{
		Use:   "research [query]",
		Short: "Run one research cycle from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if cfg.Provider.APIKey == "" {
				return fmt.Errorf("no API key configured (set OPENAI_API_KEY)")
			}

			reader := bufio.NewReader(os.Stdin)
			query := strings.Join(args, " ")
			if query == "" {
				fmt.Print("What would you like to research? ")
				query, err = reader.ReadString('\n')
				if err != nil {
					return err
				}
				query = strings.TrimSpace(query)
			}
			if query == "" {
				return fmt.Errorf("empty query")
			}

			agent.ConfigureProvider(cfg.Provider)
			reg := agent.NewRegistry(cfg)
			tele := telemetry.NewTelemetry(cfg.Telemetry)
			logger := log.New(os.Stderr, "[RESEARCH] ", log.LstdFlags)
			inv := agent.NewInvoker(nil, "advisor-research", uuid.NewString())

			if !skipClarify {
				clar := research.NewClarifier(inv, reg, logger, tele, cfg.Research.MaxClarifyRounds)
				query, err = clar.Resolve(cmd.Context(), query, func(questions []agent.ClarificationQuestion) ([]string, error) {
					fmt.Println("\nPlease answer the following questions:")
					answers := make([]string, 0, len(questions))
					for _, q := range questions {
						fmt.Printf("%s ", q.Question)
						ans, err := reader.ReadString('\n')
						if err != nil {
							return nil, err
						}
						answers = append(answers, strings.TrimSpace(ans))
					}
					return answers, nil
				})
				if err != nil {
					return err
				}
			}

			pipe := research.NewPipeline(inv, reg, logger, tele)
			if cfg.Research.WriterStatusTick > 0 {
				pipe.StatusTick = cfg.Research.WriterStatusTick
			}
			report, err := pipe.Run(cmd.Context(), query, func(step, detail string) {
				fmt.Printf("[%s] %s\n", step, detail)
			})
			if err != nil {
				return err
			}

			fmt.Println("\n\n=====REPORT=====")
			fmt.Println(report.MarkdownReport)
			fmt.Println("\n=====FOLLOW UP QUESTIONS=====")
			for _, q := range report.FollowUpQuestions {
				fmt.Println(q)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipClarify, "skip-clarify", false, "run the pipeline without the clarifying stage")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
