package i18n

import (
	"context"
	"testing"

	"golang.org/x/text/language"
)

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name     string
		override string
		accept   string
		want     language.Tag
	}{
		{name: "empty defaults to chinese", want: Chinese},
		{name: "accept english", accept: "en-US,en;q=0.9", want: English},
		{name: "accept chinese", accept: "zh-CN,zh;q=0.9,en;q=0.5", want: Chinese},
		{name: "unsupported falls back", accept: "de-DE", want: Chinese},
		{name: "override wins", override: "en", accept: "zh-CN", want: English},
		{name: "bad override ignored", override: "!!", accept: "en", want: English},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Negotiate(tc.override, tc.accept); got != tc.want {
				t.Fatalf("Negotiate(%q, %q) = %s, want %s", tc.override, tc.accept, got, tc.want)
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	if got := T(context.Background(), InvalidCredentials); got != "用户名或密码错误" {
		t.Fatalf("default locale message = %q", got)
	}
	ctx := WithLocale(context.Background(), English)
	if got := T(ctx, InvalidCredentials); got != "invalid username or password" {
		t.Fatalf("english message = %q", got)
	}
	if got := T(ctx, TooLarge, 10); got != "image exceeds 10 MB" {
		t.Fatalf("formatted message = %q", got)
	}
}

func TestEveryKeyHasBothLocales(t *testing.T) {
	for key, texts := range messages {
		if texts[0] == "" || texts[1] == "" {
			t.Fatalf("message %s is missing a translation", key)
		}
	}
}
