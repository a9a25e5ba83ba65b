package state

import "testing"

// TestTransition_HappyPath проверяет основную цепочку состояний.
func TestTransition_HappyPath(t *testing.T) {
	chain := []State{StateInitialized, StateReceiving, StateCompleting, StateCompleted}

	cur := chain[0]
	for _, next := range chain[1:] {
		got, err := Transition(cur, next)
		if err != nil {
			t.Fatalf("переход %s → %s: %v", cur, next, err)
		}
		cur = got
	}

	if cur != StateCompleted {
		t.Errorf("ожидалось completed, получено %s", cur)
	}
}

// TestTransition_SkipReceiving проверяет финализацию без чанков
// (файл нулевого покрытия не финализируется, но переход допустим:
// полнота проверяется координатором, не автоматом).
func TestTransition_SkipReceiving(t *testing.T) {
	if _, err := Transition(StateInitialized, StateCompleting); err != nil {
		t.Errorf("переход initialized → completing должен быть допустим: %v", err)
	}
}

// TestTransition_CancelFromAnyNonTerminal проверяет отмену из
// любого нетерминального состояния.
func TestTransition_CancelFromAnyNonTerminal(t *testing.T) {
	for _, from := range []State{StateInitialized, StateReceiving, StateCompleting} {
		if !CanTransition(from, StateCancelled) {
			t.Errorf("отмена из %s должна быть допустима", from)
		}
		if !CanTransition(from, StateFailed) {
			t.Errorf("переход %s → failed должен быть допустим", from)
		}
	}
}

// TestTransition_TerminalIsFinal проверяет, что из терминальных
// состояний переходов нет.
func TestTransition_TerminalIsFinal(t *testing.T) {
	terminals := []State{StateCompleted, StateCancelled, StateFailed}
	all := []State{StateInitialized, StateReceiving, StateCompleting, StateCompleted, StateCancelled, StateFailed}

	for _, from := range terminals {
		if !from.IsTerminal() {
			t.Errorf("%s должно быть терминальным", from)
		}
		for _, to := range all {
			if CanTransition(from, to) {
				t.Errorf("переход %s → %s не должен быть допустим", from, to)
			}
		}
	}
}

// TestTransition_Invalid проверяет ошибки недопустимых переходов.
func TestTransition_Invalid(t *testing.T) {
	if _, err := Transition(StateCompleted, StateReceiving); err == nil {
		t.Error("ожидалась ошибка перехода из терминального состояния")
	}
	if _, err := Transition(StateReceiving, State("bogus")); err == nil {
		t.Error("ожидалась ошибка для неизвестного целевого состояния")
	}
	if _, err := Transition(StateCompleting, StateReceiving); err == nil {
		t.Error("ожидалась ошибка обратного перехода completing → receiving")
	}
}

// TestParse проверяет разбор строк состояний.
func TestParse(t *testing.T) {
	st, err := Parse("receiving")
	if err != nil {
		t.Fatalf("ошибка разбора: %v", err)
	}
	if st != StateReceiving {
		t.Errorf("ожидалось receiving, получено %s", st)
	}

	if _, err := Parse("unknown"); err == nil {
		t.Error("ожидалась ошибка для неизвестного состояния")
	}
}
