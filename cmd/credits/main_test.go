package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"furnicolor/internal/account"
)

func TestApply(t *testing.T) {
	ctx := context.Background()
	store := account.NewMemoryStore()
	svc := account.NewService(store)
	acc, err := svc.Register(ctx, "bob", "secret1", 3, false)
	if err != nil {
		t.Fatal(err)
	}

	if err := apply(ctx, svc, acc, 40, "true", "newsecret"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, _ := store.GetByID(ctx, acc.ID)
	if got.Credits != 40 || !got.IsAdmin {
		t.Fatalf("unexpected account: %+v", got)
	}
	if _, err := svc.Login(ctx, "bob", "newsecret"); err != nil {
		t.Fatalf("new password should work: %v", err)
	}

	if err := apply(ctx, svc, acc, -1, "maybe", ""); err == nil {
		t.Fatal("invalid admin flag should fail")
	}
	if err := apply(ctx, svc, acc, -1, "", "abc"); !errors.Is(err, account.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestListAccounts(t *testing.T) {
	ctx := context.Background()
	store := account.NewMemoryStore()
	if _, err := account.NewService(store).Register(ctx, "carol", "secret1", 7, true); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := listAccounts(ctx, &buf, store); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "USERNAME") || !strings.Contains(out, "carol") || !strings.Contains(out, "7") {
		t.Fatalf("unexpected listing:\n%s", out)
	}
}
