package infra

import (
	"log"
	"os"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"gatebot/internal/models/db_models"
)

// InitDatabase opens the charge ledger backend. DB_DRIVER selects postgres
// (POSTGRES_URL) or the single-file sqlite deployment (SQLITE_PATH,
// default pagamentos.db). Migration is additive only: AutoMigrate adds
// missing columns and never drops or rewrites existing ones.
func InitDatabase() *gorm.DB {

	var (
		db  *gorm.DB
		err error
	)

	switch os.Getenv("DB_DRIVER") {
	case "postgres":
		db, err = gorm.Open(postgres.Open(os.Getenv("POSTGRES_URL")), &gorm.Config{})
	default:
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "pagamentos.db"
		}
		db, err = gorm.Open(sqlite.Open(path), &gorm.Config{})
	}

	if err != nil {
		log.Printf("Error connecting to database: %v", err)
		log.Fatal("Error connecting to database")
	}

	if err := db.AutoMigrate(&db_models.Charge{}); err != nil {
		log.Fatalf("Error migrating charges table: %v", err)
	}

	return db
}

func CloseDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting database instance: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}
