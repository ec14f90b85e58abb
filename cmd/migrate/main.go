package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"gostorefront/internal/pkg/database"
	"gostorefront/internal/pkg/logger"
)

// Aplica as migrações da tabela de anúncios (LISTING_BACKEND=postgres).
//
//	go run ./cmd/migrate --dir ./sql up
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("⚠️ .env não encontrado; usando apenas o ambiente do sistema")
	}

	migrationsDir := flag.StringP("dir", "d", "./sql", "diretório com os arquivos de migração")
	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "DSN do PostgreSQL (padrão: $DATABASE_URL)")
	verbose := flag.BoolP("verbose", "v", false, "exibe o log do goose")
	flag.Parse()

	if *dsn == "" {
		log.Fatal().Msg("goose: DATABASE_URL ou --dsn deve ser definido")
	}

	db, err := database.NewPostgresDB(*dsn, logger.NewLogger("info"))
	if err != nil {
		log.Fatal().Err(err).Msg("goose: falha ao conectar ao DB")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Fatal().Err(err).Msg("goose: falha ao fechar o DB")
		}
	}()

	if !*verbose {
		goose.SetLogger(goose.NopLogger())
	}
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal().Err(err).Msg("goose: dialeto inválido")
	}

	arguments := flag.Args()
	if len(arguments) == 0 {
		arguments = []string{"up"}
	}

	command := arguments[0]
	if err := goose.Run(command, db, *migrationsDir, arguments[1:]...); err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("goose falhou")
	}

	fmt.Printf("goose %s success\n", command)
}
