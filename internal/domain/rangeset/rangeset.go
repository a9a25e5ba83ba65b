// Пакет rangeset — упорядоченное множество непересекающихся байтовых
// диапазонов с нормализацией при вставке.
//
// Используется координатором загрузок для учёта принятых диапазонов
// (received_ranges): пересекающиеся и смежные интервалы сливаются,
// сумма длин доступна за O(1). Дополнение Missing() вычисляет
// недостающие диапазоны для докачки.
//
// Не потокобезопасен: вызывающий код (UploadSession) держит
// собственный мьютекс на время операций.
package rangeset

import (
	"fmt"
	"sort"
)

// Range — закрытый байтовый интервал [Start, End] (обе границы включительно).
type Range struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Len возвращает длину интервала в байтах.
func (r Range) Len() int64 {
	return r.End - r.Start + 1
}

// Set — множество непересекающихся интервалов, отсортированных по Start.
// Инвариант: после каждой операции интервалы не пересекаются и не смежны
// (смежные сливаются), bytes равен сумме длин.
type Set struct {
	ranges []Range
	bytes  int64
}

// New создаёт пустое множество.
func New() *Set {
	return &Set{}
}

// FromRanges создаёт множество из произвольного списка интервалов.
// Вход может быть неотсортированным и пересекающимся — нормализуется.
// Возвращает ошибку для интервалов с start > end или start < 0.
func FromRanges(ranges []Range) (*Set, error) {
	s := New()
	for _, r := range ranges {
		if err := s.Add(r.Start, r.End); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add сливает интервал [start, end] в множество.
// Пересечение с уже принятыми байтами допустимо (повторная отправка
// после неоднозначного сетевого сбоя) — учитываются только новые байты.
// Возвращает ошибку при start < 0 или start > end.
func (s *Set) Add(start, end int64) error {
	_, err := s.AddCounted(start, end)
	return err
}

// AddCounted сливает интервал и возвращает количество байт,
// которые не были покрыты ранее. 0 — интервал был полностью покрыт
// (идемпотентный повтор).
func (s *Set) AddCounted(start, end int64) (int64, error) {
	if start < 0 {
		return 0, fmt.Errorf("начало диапазона отрицательное: %d", start)
	}
	if start > end {
		return 0, fmt.Errorf("некорректный диапазон: start %d > end %d", start, end)
	}

	// Позиция первого интервала, который может пересекаться или быть
	// смежным с [start, end]: его End >= start-1.
	i := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].End >= start-1
	})

	merged := Range{Start: start, End: end}
	overlap := int64(0)

	// Сливаем все интервалы, пересекающиеся или смежные с merged.
	j := i
	for j < len(s.ranges) && s.ranges[j].Start <= merged.End+1 {
		r := s.ranges[j]
		// Учитываем пересечение с исходным [start, end] для подсчёта новых байт
		if lo, hi := max64(r.Start, start), min64(r.End, end); lo <= hi {
			overlap += hi - lo + 1
		}
		if r.Start < merged.Start {
			merged.Start = r.Start
		}
		if r.End > merged.End {
			merged.End = r.End
		}
		j++
	}

	// Заменяем интервалы [i, j) одним merged.
	out := make([]Range, 0, len(s.ranges)-(j-i)+1)
	out = append(out, s.ranges[:i]...)
	out = append(out, merged)
	out = append(out, s.ranges[j:]...)
	s.ranges = out

	added := (end - start + 1) - overlap
	s.bytes += added
	return added, nil
}

// Bytes возвращает суммарное количество покрытых байт.
func (s *Set) Bytes() int64 {
	return s.bytes
}

// Len возвращает количество интервалов после нормализации.
func (s *Set) Len() int {
	return len(s.ranges)
}

// Ranges возвращает копию интервалов, отсортированных по Start.
func (s *Set) Ranges() []Range {
	out := make([]Range, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// Covers проверяет, полностью ли покрыт интервал [start, end].
func (s *Set) Covers(start, end int64) bool {
	if start > end {
		return false
	}
	i := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].End >= start
	})
	if i >= len(s.ranges) {
		return false
	}
	r := s.ranges[i]
	return r.Start <= start && end <= r.End
}

// Missing возвращает дополнение множества в пределах [0, total):
// отсортированный список недостающих интервалов. Пустой результат —
// файл покрыт полностью. Алгоритм — линейная развёртка с курсором
// следующего ожидаемого смещения.
func (s *Set) Missing(total int64) []Range {
	var missing []Range
	pos := int64(0)

	for _, r := range s.ranges {
		if pos >= total {
			break
		}
		if r.Start > pos {
			end := min64(r.Start-1, total-1)
			if pos <= end {
				missing = append(missing, Range{Start: pos, End: end})
			}
		}
		if r.End+1 > pos {
			pos = r.End + 1
		}
	}

	if pos < total {
		missing = append(missing, Range{Start: pos, End: total - 1})
	}
	return missing
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
