package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"labsched/internal/auth"
	"labsched/internal/database"
	"labsched/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type seedUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	FullName string `yaml:"full_name"`
	Role     string `yaml:"role"`
	Password string `yaml:"password"`
}

type catalogConfig struct {
	Labs    []models.Lab    `yaml:"labs"`
	Courses []models.Course `yaml:"courses"`
	Users   []seedUser      `yaml:"users"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		catalogPath = flag.String("catalog", "configs/catalog.yaml", "path to catalog.yaml")
		dbPath      = flag.String("db", "./data/labsched.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var cfg catalogConfig
	if err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	if len(cfg.Labs) == 0 && len(cfg.Courses) == 0 && len(cfg.Users) == 0 {
		return fmt.Errorf("nothing to seed in %s", *catalogPath)
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := range cfg.Labs {
		if cfg.Labs[i].Name == "" {
			continue
		}
		if err = db.UpsertLab(ctx, &cfg.Labs[i]); err != nil {
			return fmt.Errorf("upsert lab %s: %w", cfg.Labs[i].Name, err)
		}
	}

	for i := range cfg.Courses {
		if cfg.Courses[i].Code == "" {
			continue
		}
		if err = db.UpsertCourse(ctx, &cfg.Courses[i]); err != nil {
			return fmt.Errorf("upsert course %s: %w", cfg.Courses[i].Code, err)
		}
	}

	for _, u := range cfg.Users {
		if u.Username == "" || u.Password == "" {
			continue
		}
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", u.Username, err)
		}
		user := &models.User{
			Username:       u.Username,
			Email:          u.Email,
			HashedPassword: hash,
			FullName:       u.FullName,
			Role:           u.Role,
			IsActive:       true,
		}
		if err = db.UpsertUser(ctx, user); err != nil {
			return fmt.Errorf("upsert user %s: %w", u.Username, err)
		}
	}

	logger.Info().
		Int("labs", len(cfg.Labs)).
		Int("courses", len(cfg.Courses)).
		Int("users", len(cfg.Users)).
		Msg("catalog seeded")
	return nil
}
