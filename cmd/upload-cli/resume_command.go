package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bigkaa/govideolab/upload-module/internal/client"
)

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <файл> <upload_id>",
		Short: "Докачать прерванную сессию загрузки",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploader, err := ctx.newUploader()
			if err != nil {
				return err
			}
			return runTransfer(cmd, uploader, func(runCtx context.Context) (*client.Result, error) {
				return uploader.Resume(runCtx, args[0], args[1], progressPrinter(cmd))
			})
		},
	}
}
