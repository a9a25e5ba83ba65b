// planner.go — планировщик докачки.
//
// По списку полученных сервером диапазонов вычисляет дополнение
// в [0, total): диапазоны, которые ещё нужно отправить.
package client

import (
	"fmt"

	"github.com/bigkaa/govideolab/upload-module/internal/domain/rangeset"
)

// PlanResume вычисляет недостающие диапазоны по ответу status.
// received — пары [start, end] (границы включительны), как их отдаёт
// сервер в received_ranges. Порядок и пересечения допустимы: диапазоны
// нормализуются перед вычислением дополнения.
// Пустой received — весь файл недостающий. Полное покрытие — пустой результат.
func PlanResume(received [][]int64, totalSize int64) ([]rangeset.Range, error) {
	if totalSize <= 0 {
		return nil, fmt.Errorf("некорректный totalSize: %d", totalSize)
	}

	set := rangeset.New()
	for i, pair := range received {
		if len(pair) != 2 {
			return nil, fmt.Errorf("диапазон %d: ожидалась пара [start, end], получено %d элементов", i, len(pair))
		}
		start, end := pair[0], pair[1]
		if start < 0 || end < start || end >= totalSize {
			return nil, fmt.Errorf("диапазон %d: [%d, %d] вне границ [0, %d)", i, start, end, totalSize)
		}
		if err := set.Add(start, end); err != nil {
			return nil, fmt.Errorf("диапазон %d: %w", i, err)
		}
	}

	return set.Missing(totalSize), nil
}
