// Пакет apispec — встроенная OpenAPI-спецификация Upload Module.
//
// Файл api/openapi.yaml встраивается в бинарник при компиляции,
// при старте парсится и валидируется через kin-openapi, затем
// отдаётся в формате JSON на /api/v1/openapi.json.
package apispec

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var specYAML []byte

var (
	once     sync.Once
	specJSON []byte
	specErr  error
)

// JSON возвращает спецификацию в формате JSON.
// Парсинг и валидация выполняются один раз при первом вызове.
func JSON() ([]byte, error) {
	once.Do(func() {
		loader := openapi3.NewLoader()

		doc, err := loader.LoadFromData(specYAML)
		if err != nil {
			specErr = fmt.Errorf("ошибка парсинга OpenAPI спецификации: %w", err)
			return
		}

		if err := doc.Validate(loader.Context); err != nil {
			specErr = fmt.Errorf("ошибка валидации OpenAPI спецификации: %w", err)
			return
		}

		specJSON, specErr = doc.MarshalJSON()
	})

	return specJSON, specErr
}
