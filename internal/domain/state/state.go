// Пакет state — жизненный цикл сессии загрузки.
//
// Основная цепочка: initialized → receiving → completing → completed.
// Из любого нетерминального состояния возможен переход в cancelled
// (явная отмена) или failed (ошибка хранилища).
//
// Функции пакета чистые: блокировку держит владелец сессии
// (model.UploadSession), здесь только матрица переходов.
package state

import "fmt"

// State — состояние сессии загрузки.
type State string

const (
	// StateInitialized — сессия создана, чанки ещё не приняты
	StateInitialized State = "initialized"
	// StateReceiving — принят хотя бы один чанк
	StateReceiving State = "receiving"
	// StateCompleting — идёт финализация файла (fsync + rename)
	StateCompleting State = "completing"
	// StateCompleted — файл собран и передан внешнему коллаборатору
	StateCompleted State = "completed"
	// StateCancelled — сессия отменена, staging-файл удалён
	StateCancelled State = "cancelled"
	// StateFailed — фатальная ошибка хранилища
	StateFailed State = "failed"
)

// validTransitions — матрица допустимых переходов.
// Ключ — текущее состояние, значение — набор допустимых целевых.
var validTransitions = map[State]map[State]bool{
	StateInitialized: {StateReceiving: true, StateCompleting: true, StateCancelled: true, StateFailed: true},
	StateReceiving:   {StateCompleting: true, StateCancelled: true, StateFailed: true},
	StateCompleting:  {StateCompleted: true, StateCancelled: true, StateFailed: true},
	StateCompleted:   {},
	StateCancelled:   {},
	StateFailed:      {},
}

// IsTerminal возвращает true для конечных состояний
// (completed, cancelled, failed).
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// IsValid проверяет, является ли значение допустимым состоянием.
func (s State) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransition проверяет допустимость перехода from → to.
func CanTransition(from, to State) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Transition валидирует переход и возвращает новое состояние
// или ошибку для недопустимого перехода.
func Transition(from, to State) (State, error) {
	if !to.IsValid() {
		return from, fmt.Errorf("недопустимое целевое состояние: %q", to)
	}
	if !CanTransition(from, to) {
		return from, fmt.Errorf("переход %s → %s недопустим", from, to)
	}
	return to, nil
}

// Parse преобразует строку в State (используется при восстановлении
// сессий из манифестов). Возвращает ошибку для неизвестных значений.
func Parse(s string) (State, error) {
	st := State(s)
	if !st.IsValid() {
		return "", fmt.Errorf("неизвестное состояние сессии: %q", s)
	}
	return st, nil
}
