package main

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/bigkaa/govideolab/upload-module/internal/client"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <upload_id>",
		Short: "Показать состояние сессии и недостающие диапазоны",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploader, err := ctx.newUploader()
			if err != nil {
				return err
			}

			reqCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			status, err := uploader.Status(reqCtx, args[0])
			if err != nil {
				return fmt.Errorf("запрос статуса: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "upload_id:  %s\n", status.UploadId)
			fmt.Fprintf(out, "файл:       %s\n", status.Filename)
			fmt.Fprintf(out, "состояние:  %s\n", status.State)
			fmt.Fprintf(out, "получено:   %s / %s (%.1f%%)\n",
				units.BytesSize(float64(status.BytesReceived)),
				units.BytesSize(float64(status.TotalSize)),
				status.Progress,
			)

			if status.IsComplete {
				return nil
			}

			missing, err := client.PlanResume(status.ReceivedRanges, status.TotalSize)
			if err != nil {
				return fmt.Errorf("вычисление недостающих диапазонов: %w", err)
			}
			fmt.Fprintf(out, "недостаёт:  %d диапазонов\n", len(missing))
			for _, r := range missing {
				fmt.Fprintf(out, "  [%d, %d] (%s)\n", r.Start, r.End, units.BytesSize(float64(r.Len())))
			}
			return nil
		},
	}
}
