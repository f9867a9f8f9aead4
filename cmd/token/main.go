// Команда token выпускает access токен для локальной отладки API:
//
//	go run ./cmd/token -role client
//	go run ./cmd/token -role finance_admin -user 3f2c...
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/config"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/logger"
	"github.com/ignatzorin/job-settlement/internal/service"
)

func main() {
	role := flag.String("role", string(valueobject.RoleClient), "роль: client, worker, hr_admin, finance_admin")
	user := flag.String("user", "", "идентификатор пользователя (по умолчанию случайный)")
	flag.Parse()

	logger.Init("warn")
	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}

	userID := uuid.New()
	if *user != "" {
		if userID, err = uuid.Parse(*user); err != nil {
			fail(fmt.Errorf("некорректный -user: %w", err))
		}
	}
	actor, err := valueobject.NewActor(userID, *role)
	if err != nil {
		fail(err)
	}

	token, expiresAt, err := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL).Issue(actor)
	if err != nil {
		fail(err)
	}
	fmt.Printf("user_id:    %s\nrole:       %s\nexpires_at: %s\ntoken:      %s\n", actor.ID, actor.Role, expiresAt.Format("2006-01-02 15:04:05 MST"), token)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "token:", err)
	os.Exit(1)
}
