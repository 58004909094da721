package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/mansoorceksport/smmpanel/internal/config"
	"github.com/mansoorceksport/smmpanel/internal/domain"
	"github.com/mansoorceksport/smmpanel/internal/logger"
	"github.com/mansoorceksport/smmpanel/internal/repository"
	"github.com/mansoorceksport/smmpanel/internal/service"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	adminEmail := flag.String("admin-email", "", "Also create an admin account with this email")
	adminPassword := flag.String("admin-password", "", "Password of the admin account")
	adminUsername := flag.String("admin-username", "admin", "Username of the admin account")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Must("development").Fatal("failed to load config", zap.Error(err))
	}
	log := logger.Must(cfg.App.Env)
	defer log.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDB.URI))
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer client.Disconnect(ctx)

	db := client.Database(cfg.MongoDB.Database)
	catalog := service.NewCatalogService(repository.NewMongoServiceRepository(db), log)

	services, err := catalog.SeedDefaults(ctx)
	switch {
	case errors.Is(err, domain.ErrConflict):
		log.Info("catalog already seeded, skipping services")
	case err != nil:
		log.Fatal("failed to seed services", zap.Error(err))
	default:
		for _, s := range services {
			log.Info("service created",
				zap.String("id", s.ID),
				zap.String("platform", s.Platform),
				zap.String("name", s.Name),
				zap.Stringer("price", s.Price),
			)
		}
	}

	if *adminEmail == "" {
		return
	}
	if len(*adminPassword) < 6 {
		log.Fatal("admin password must be at least 6 characters")
	}

	users := repository.NewMongoUserRepository(db)
	hash, err := bcrypt.GenerateFromPassword([]byte(*adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("failed to hash password", zap.Error(err))
	}
	admin := &domain.User{
		Username:     *adminUsername,
		Email:        *adminEmail,
		PasswordHash: string(hash),
		FirstName:    "Admin",
		LastName:     "Panel",
	}
	admin.ApplyDefaults()
	admin.Role = domain.RoleAdmin

	if err := users.Create(ctx, admin); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			log.Info("admin account already exists", zap.String("email", admin.Email))
			return
		}
		log.Fatal("failed to create admin", zap.Error(err))
	}
	log.Info("admin account created", zap.String("id", admin.ID), zap.String("email", admin.Email))
}
