//go:build integration
// +build integration

package integration

import (
	"path/filepath"

	"github.com/joho/godotenv"
)

// init loads the nearest .env so live tests can pick up API keys without a
// shell export. Existing env vars are not overwritten.
func init() {
	for _, p := range []string{
		".env",
		filepath.Join("..", ".env"),
		filepath.Join("..", "..", ".env"),
	} {
		if godotenv.Load(p) == nil {
			return
		}
	}
}
