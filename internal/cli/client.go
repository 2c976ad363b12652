package cli

import (
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"live-quiz-service/internal/client"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/memory"
	redisinfra "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/logger"
	"live-quiz-service/internal/notify"
)

// NewClientCmd starts the interactive participant client.
func NewClientCmd(configPath *string) *cobra.Command {
	var (
		participantID int64
		serverURL     string
	)
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Interactive participant client (QUESTION, QSET, QUIZ, LAUNCH, NEXT, REG, GET, ANS, REL, ...)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(*configPath)
			if err != nil {
				return err
			}
			// stdout belongs to the REPL
			log := logger.NewWithWriter(os.Stderr, cfg.Log.Level).With("participant_id", participantID)

			url := firstNonEmpty(serverURL, cfg.Client.ServerURL, "http://localhost:8080")

			var tree notify.Tree
			if cfg.Redis.Addr != "" {
				rdb := redis.NewClient(&redis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				defer rdb.Close()
				tree = redisinfra.NewTree(rdb)
			} else {
				log.Warn("redis not configured, quiz notifications will not reach this client")
				tree = memory.NewTree()
			}
			defer tree.Close()

			stub := client.NewStub(url, &http.Client{Timeout: 10 * time.Second})
			repl := client.NewREPL(stub, tree, participantID, cmd.OutOrStdout(), log)
			return repl.Run(cmd.Context(), cmd.InOrStdin())
		},
	}
	cmd.Flags().Int64Var(&participantID, "id", 0, "participant id")
	cmd.Flags().StringVar(&serverURL, "server", "", "quiz server base URL (overrides client.server_url)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
