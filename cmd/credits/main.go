package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"furnicolor/internal/account"
	"furnicolor/internal/app"
	"furnicolor/internal/config"
	"furnicolor/internal/logging"
)

func main() {
	var (
		username = flag.String("username", "", "Account to update")
		credits  = flag.Int("credits", -1, "Set the credit balance (>= 0)")
		admin    = flag.String("admin", "", "Set the admin flag (true/false)")
		password = flag.String("password", "", "Set a new password")
		create   = flag.Bool("create", false, "Create the account when it does not exist")
		list     = flag.Bool("list", false, "List accounts")
	)
	flag.Parse()

	cfg, err := config.Load()
	logger := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if cfg.DatabaseURL == "" && cfg.Supabase.URL == "" {
		logger.Fatal().Msg("DATABASE_URL or SUPABASE_URL is required to manage accounts")
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect store")
	}
	defer a.Close()
	svc := account.NewService(a.Accounts)

	if *list {
		if err := listAccounts(ctx, os.Stdout, a.Accounts); err != nil {
			logger.Fatal().Err(err).Msg("list accounts")
		}
		return
	}

	if *username == "" {
		logger.Fatal().Msg("username is required (use -username)")
	}

	acc, err := a.Accounts.GetByUsername(ctx, *username)
	missing := errors.Is(err, account.ErrNotFound)
	if err != nil && !(missing && *create) {
		logger.Fatal().Err(err).Str("username", *username).Msg("find account")
	}
	if missing {
		start := *credits
		if start < 0 {
			start = cfg.Accounts.DefaultCredits
		}
		acc, err = svc.Register(ctx, *username, *password, start, *admin == "true")
		if err != nil {
			logger.Fatal().Err(err).Msg("create account")
		}
		fmt.Printf("Account %s (%s) created with %d credits\n", acc.Username, acc.ID, acc.Credits)
		return
	}

	if err := apply(ctx, svc, acc, *credits, *admin, *password); err != nil {
		logger.Fatal().Err(err).Str("username", acc.Username).Msg("update account")
	}
	updated, err := a.Accounts.GetByID(ctx, acc.ID)
	if err != nil {
		logger.Fatal().Err(err).Msg("reload account")
	}
	fmt.Printf("Account %s (%s) credits=%d admin=%v\n", updated.Username, updated.ID, updated.Credits, updated.IsAdmin)
}

func apply(ctx context.Context, svc *account.Service, acc account.Account, credits int, admin, password string) error {
	if credits >= 0 {
		if err := svc.Store.SetCredits(ctx, acc.ID, credits); err != nil {
			return fmt.Errorf("set credits: %w", err)
		}
	}
	if admin != "" {
		flag, err := strconv.ParseBool(admin)
		if err != nil {
			return fmt.Errorf("admin must be true or false: %w", err)
		}
		if err := svc.Store.SetAdmin(ctx, acc.ID, flag); err != nil {
			return fmt.Errorf("set admin: %w", err)
		}
	}
	if password != "" {
		if len(password) < account.MinPasswordLength {
			return account.ErrWeakPassword
		}
		hashed, err := account.HashPassword(password)
		if err != nil {
			return err
		}
		if err := svc.Store.UpdatePassword(ctx, acc.ID, hashed); err != nil {
			return fmt.Errorf("set password: %w", err)
		}
	}
	return nil
}

func listAccounts(ctx context.Context, w io.Writer, store account.Store) error {
	accounts, err := store.List(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%-38s %-20s %-8s %-6s\n", "ID", "USERNAME", "CREDITS", "ADMIN")
	for _, a := range accounts {
		fmt.Fprintf(w, "%-38s %-20s %-8d %-6v\n", a.ID, a.Username, a.Credits, a.IsAdmin)
	}
	return nil
}
