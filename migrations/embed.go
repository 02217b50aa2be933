// Package migrations embeds the SQL schema so the binary carries its own
// migrations. Importing it for side effects registers them with the
// database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/loxhue-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
