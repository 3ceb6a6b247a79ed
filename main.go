package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"rephrasego/internal/config"
	"rephrasego/internal/redis"
	"rephrasego/internal/service/session"
	"rephrasego/internal/storage"
)

var (
	configPath string
	dbType     string
)

var rootCmd = &cobra.Command{
	Use:           "rephrasego",
	Short:         "Session-scoped paraphrasing service",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (env REPHRASE_CONFIG, default config.json)")
	rootCmd.PersistentFlags().StringVar(&dbType, "db", "", "database driver: sqlite3 or mysql (env REPHRASE_DB)")
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("REPHRASE_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func resolveDBType() string {
	if dbType != "" {
		return dbType
	}
	if env := os.Getenv("REPHRASE_DB"); env != "" {
		return env
	}
	return "sqlite3"
}

// openDatabase opens and migrates the configured database.
func openDatabase(cfg *config.Config) (*sql.DB, string, error) {
	driver := resolveDBType()
	log.Printf("dbType: %s", driver)
	db, err := storage.Open(driver, cfg)
	if err != nil {
		return nil, "", fmt.Errorf("open database: %w", err)
	}
	if err := storage.Migrate(db, driver); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("migrate database: %w", err)
	}
	return db, driver, nil
}

// openCache connects the redis session cache when enabled. The returned
// close func is always safe to call.
func openCache(cfg *config.Config) (session.Cache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create redis client: %w", err)
	}
	return session.NewRedisCache(rdb), func() { rdb.Close() }, nil
}
