// Package migrations embeds the homiewatch SQL migrations into the binary
// and registers them with the database package on import.
package migrations

import (
	"embed"

	"github.com/nerrad567/homiewatch/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.Migrations = files
	database.MigrationsDir = "."
}
