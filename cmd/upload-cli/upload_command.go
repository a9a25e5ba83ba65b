package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bigkaa/govideolab/upload-module/internal/client"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <файл>",
		Short: "Загрузить файл по частям",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploader, err := ctx.newUploader()
			if err != nil {
				return err
			}
			return runTransfer(cmd, uploader, func(runCtx context.Context) (*client.Result, error) {
				return uploader.Upload(runCtx, args[0], progressPrinter(cmd))
			})
		},
	}
}
