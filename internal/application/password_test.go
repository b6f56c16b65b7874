package application

import (
	"errors"
	"strings"
	"testing"
)

var testArgon2Params = Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestPasswordHashing(t *testing.T) {
	hash, err := CreatePasswordHash("correct horse", testArgon2Params)
	if err != nil {
		t.Fatalf("CreatePasswordHash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", hash)
	}

	t.Run("accepts the right password", func(t *testing.T) {
		if err := VerifyPassword(hash, "correct horse"); err != nil {
			t.Fatalf("expected match, got %v", err)
		}
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		if err := VerifyPassword(hash, "battery staple"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("salts every hash", func(t *testing.T) {
		other, err := CreatePasswordHash("correct horse", testArgon2Params)
		if err != nil {
			t.Fatalf("CreatePasswordHash failed: %v", err)
		}
		if other == hash {
			t.Fatalf("expected distinct hashes for the same password")
		}
	})

	t.Run("reports malformed hashes", func(t *testing.T) {
		cases := map[string]error{
			"plain":                                  ErrInvalidPasswordHash,
			"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$a2V5":   ErrInvalidPasswordHash,
			"$argon2id$v=16$m=1,t=1,p=1$c2FsdA$a2V5": ErrIncompatiblePasswordVersion,
			"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5": ErrInvalidPasswordHash,
			"$argon2id$v=19$m=1,t=1,p=1$!!!$a2V5":    ErrInvalidPasswordHash,
		}
		for encoded, want := range cases {
			if err := VerifyPassword(encoded, "x"); !errors.Is(err, want) {
				t.Fatalf("%q: expected %v, got %v", encoded, want, err)
			}
		}
	})
}
