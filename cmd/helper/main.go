package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"flagforge/internal/apikeys"
	"flagforge/internal/config"
	"flagforge/internal/db"
	"flagforge/internal/models"
	"flagforge/internal/utils/logger"

	"github.com/joho/godotenv"
)

// Operator CLI: seeds the built-in roles and issues API keys from a
// trusted shell, without going through the HTTP surface.
func main() {
	var log = logger.New("helper")
	log.Info("🔑 Starting operator helper CLI")

	err := godotenv.Load()
	if err != nil {
		log.Warn("No .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("❌ Failed to load configuration", err)
		return
	}
	if err := db.Connect(cfg); err != nil {
		log.Error("❌ Failed to connect to database", err)
		return
	}
	defer db.Close()

	keyService := apikeys.NewService(apikeys.NewRepository(db.GetDB()))
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("Enter 's' to seed roles, 'k' to issue an API key, 'p' to prune expired keys, or 'q' to quit: ")
		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(choice)

		switch choice {
		case "q":
			log.Info("👋 Exiting helper CLI")
			return

		case "s":
			if err := models.SeedBuiltinRoles(db.GetDB()); err != nil {
				log.Error("❌ Seeding failed", err)
			} else {
				log.Success("✅ Built-in roles seeded")
			}
			if err := models.CreateOwnerFromEnv(db.GetDB()); err != nil {
				log.Warn("⚠️ Owner account not created: %v", err)
			}

		case "k":
			fmt.Print("Key name: ")
			name, _ := reader.ReadString('\n')
			fmt.Print("Scopes (comma-separated resource:action pairs): ")
			scopeLine, _ := reader.ReadString('\n')

			var scopes []string
			for _, scope := range strings.Split(strings.TrimSpace(scopeLine), ",") {
				if s := strings.TrimSpace(scope); s != "" {
					scopes = append(scopes, s)
				}
			}

			key, plaintext, err := keyService.Issue(context.Background(), strings.TrimSpace(name), scopes, nil, "")
			if err != nil {
				log.Error("❌ Failed to issue key", err)
				continue
			}
			log.Success("✅ Key %s issued (prefix %s)", key.Name, key.Prefix)
			fmt.Printf("Plaintext (shown once, store it now): %s\n", plaintext)

		case "p":
			deleted, err := keyService.PruneExpired(context.Background(), 30*24*time.Hour)
			if err != nil {
				log.Error("❌ Prune failed", err)
				continue
			}
			log.Success("🧹 Pruned %d expired key(s)", deleted)

		default:
			log.Warn("⚠️ Invalid choice. Please enter 's', 'k', 'p', or 'q'.")
		}
	}
}
