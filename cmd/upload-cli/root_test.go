package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bigkaa/govideolab/upload-module/internal/api/generated"
)

// TestRootCommand_Subcommands проверяет регистрацию подкоманд.
func TestRootCommand_Subcommands(t *testing.T) {
	cmd := newRootCommand()

	want := map[string]bool{"upload": false, "resume": false, "status": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("подкоманда %q не зарегистрирована", name)
		}
	}
}

// TestStatusCommand выводит состояние сессии и недостающие диапазоны.
func TestStatusCommand(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /upload/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "u-1" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(generated.UploadStatusResponse{
			UploadId:       "u-1",
			Filename:       "movie.mp4",
			State:          generated.Receiving,
			BytesReceived:  500,
			TotalSize:      1000,
			Progress:       50,
			ReceivedRanges: [][]int64{{0, 499}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"status", "u-1", "--server", srv.URL})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("ошибка выполнения status: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "u-1") || !strings.Contains(got, "movie.mp4") {
		t.Errorf("в выводе нет идентификатора сессии или имени файла:\n%s", got)
	}
	if !strings.Contains(got, "[500, 999]") {
		t.Errorf("в выводе нет недостающего диапазона [500, 999]:\n%s", got)
	}
}

// TestStatusCommand_UnknownSession возвращает ошибку по 404.
func TestStatusCommand_UnknownSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(generated.ErrorResponse{Error: "не найдено", Code: "NOT_FOUND"})
	}))
	defer srv.Close()

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"status", "ghost", "--server", srv.URL})

	if err := cmd.Execute(); err == nil {
		t.Fatal("ожидалась ошибка для неизвестной сессии")
	}
}
