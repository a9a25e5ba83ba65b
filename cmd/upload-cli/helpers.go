package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/bigkaa/govideolab/upload-module/internal/client"
)

// progressPrinter возвращает callback, печатающий прогресс загрузки
// одной перезаписываемой строкой.
func progressPrinter(cmd *cobra.Command) client.ProgressFunc {
	return func(p client.Progress) {
		fmt.Fprintf(cmd.ErrOrStderr(), "\r%s / %s (%.1f%%)  %s/s   ",
			units.BytesSize(float64(p.BytesSent)),
			units.BytesSize(float64(p.TotalSize)),
			p.Percent,
			units.BytesSize(p.Speed),
		)
	}
}

// runTransfer выполняет передачу с отменой по Ctrl+C и печатает итог.
// SIGINT/SIGTERM вызывает uploader.Cancel(): сессия и частичные
// данные удаляются на сервере.
func runTransfer(cmd *cobra.Command, uploader *client.Uploader, transfer func(context.Context) (*client.Result, error)) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			fmt.Fprintln(cmd.ErrOrStderr(), "\nОтмена загрузки...")
			uploader.Cancel()
		}
	}()

	start := time.Now()
	result, err := transfer(cmd.Context())
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Готово: %s → %s (%s за %s, %s/s)\n",
		result.Filename,
		result.Path,
		units.BytesSize(float64(result.Size)),
		elapsed.Round(time.Second),
		units.BytesSize(float64(result.Size)/elapsed.Seconds()),
	)
	fmt.Fprintf(out, "upload_id: %s\n", result.UploadID)
	return nil
}
