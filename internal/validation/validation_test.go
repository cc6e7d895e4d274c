package validation

import (
	"math"
	"testing"
)

func TestIsValidAmount(t *testing.T) {
	tests := []struct {
		amount float64
		want   bool
	}{
		{200, true},
		{200.5, true},
		{5000, true},
		{199.99, false},
		{150, false},
		{0, false},
		{-300, false},
		{math.NaN(), false},
		{math.Inf(1), false},
	}

	for _, tt := range tests {
		if got := IsValidAmount(tt.amount); got != tt.want {
			t.Fatalf("IsValidAmount(%v) = %v, want %v", tt.amount, got, tt.want)
		}
	}
}

func TestIsValidMobile(t *testing.T) {
	valid := []string{"01712345678", "+8801712345678", " 017123456 "}
	invalid := []string{"", "123", "01712-345678", "abcdefghij", "+1234567890123456"}

	for _, m := range valid {
		if !IsValidMobile(m) {
			t.Fatalf("IsValidMobile(%q) = false, want true", m)
		}
	}
	for _, m := range invalid {
		if IsValidMobile(m) {
			t.Fatalf("IsValidMobile(%q) = true, want false", m)
		}
	}
}

func TestRegistration(t *testing.T) {
	tests := []struct {
		name     string
		username string
		mobile   string
		password string
		want     error
	}{
		{"ok", "alice", "01712345678", "secret", nil},
		{"no username", " ", "01712345678", "secret", ErrUsernameRequired},
		{"no mobile", "alice", "", "secret", ErrMobileRequired},
		{"bad mobile", "alice", "call-me", "secret", ErrInvalidMobile},
		{"short password", "alice", "01712345678", "12345", ErrPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Registration(tt.username, tt.mobile, tt.password); err != tt.want {
				t.Fatalf("Registration() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCredentials(t *testing.T) {
	if err := Credentials("", "x"); err != ErrIdentifierRequired {
		t.Fatalf("got %v, want ErrIdentifierRequired", err)
	}
	if err := Credentials("alice", ""); err != ErrPasswordRequired {
		t.Fatalf("got %v, want ErrPasswordRequired", err)
	}
	if err := Credentials("01712345678", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFileExtension(t *testing.T) {
	tests := map[string]string{
		"receipt.PNG":          "png",
		"my.receipt.jpeg":      "jpeg",
		`C:\fakepath\scan.jpg`: "jpg",
		"noext":                "noext",
	}
	for in, want := range tests {
		if got := FileExtension(in); got != want {
			t.Fatalf("FileExtension(%q) = %q, want %q", in, got, want)
		}
	}
}
