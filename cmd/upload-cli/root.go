package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bigkaa/govideolab/upload-module/internal/client"
)

// commandContext — общие флаги подкоманд.
type commandContext struct {
	serverURL string
	token     string
	parallel  int
	retries   int
	verbose   bool
}

// newUploader создаёт клиент из общих флагов.
func (c *commandContext) newUploader() (*client.Uploader, error) {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return client.New(client.Config{
		BaseURL:     c.serverURL,
		Token:       c.token,
		Parallelism: c.parallel,
		MaxRetries:  c.retries,
		Logger:      logger,
	})
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "upload-cli",
		Short:         "Консольный клиент чанковой загрузки файлов в Upload Module",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.serverURL, "server", "http://localhost:8030", "Адрес Upload Module")
	rootCmd.PersistentFlags().StringVar(&ctx.token, "token", "", "Bearer-токен (опционально)")
	rootCmd.PersistentFlags().IntVar(&ctx.parallel, "parallel", 4, "Число параллельных worker-ов")
	rootCmd.PersistentFlags().IntVar(&ctx.retries, "retries", 3, "Число повторов одного чанка")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Подробное логирование")

	rootCmd.AddCommand(newUploadCommand(ctx))
	rootCmd.AddCommand(newResumeCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))

	return rootCmd
}
