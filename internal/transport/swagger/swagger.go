package swagger

import (
	_ "embed"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

//go:embed openapi.yml
var spec []byte

// Spec returns the embedded OpenAPI document.
func Spec() []byte {
	return spec
}

// SpecHandler serves the embedded OpenAPI document at /openapi.yml.
func SpecHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(spec)
}

func Handler() http.Handler {
	return httpSwagger.Handler(
		httpSwagger.URL("/openapi.yml"),
	)
}
