// Точка входа upload-cli — консольный клиент чанковой загрузки
// файлов в Upload Module.
//
// Загрузка нового файла:
//
//	upload-cli upload video.mp4 --server http://localhost:8030
//
// Докачка прерванной сессии:
//
//	upload-cli resume video.mp4 <upload_id>
//
// Состояние сессии и недостающие диапазоны:
//
//	upload-cli status <upload_id>
//
// Ctrl+C отменяет загрузку: сессия и частичные данные удаляются
// на сервере.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/bigkaa/govideolab/upload-module/internal/client"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, client.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "Загрузка отменена")
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}
