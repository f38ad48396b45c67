package crypto

import (
	"errors"
	"testing"
)

func deriveTestKey(t *testing.T, secret string) []byte {
	t.Helper()
	key, err := DeriveKey(secret)
	if err != nil {
		t.Fatalf("DeriveKey() error = %v", err)
	}
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := deriveTestKey(t, "test-secret-at-least-16-chars")

	plaintexts := []string{
		"binance-api-key",
		"",
		"ключ с unicode и пробелами 🔑",
	}

	for _, plaintext := range plaintexts {
		ciphertext, err := Encrypt(plaintext, key)
		if err != nil {
			t.Fatalf("Encrypt(%q) error = %v", plaintext, err)
		}
		if ciphertext == plaintext && plaintext != "" {
			t.Errorf("ciphertext equals plaintext %q", plaintext)
		}

		decrypted, err := Decrypt(ciphertext, key)
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if decrypted != plaintext {
			t.Errorf("Decrypt() = %q, want %q", decrypted, plaintext)
		}
	}
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	key := deriveTestKey(t, "test-secret-at-least-16-chars")

	// Случайный nonce: одинаковый plaintext не должен давать одинаковый
	// шифртекст, иначе по БД видно, у кого совпадают ключи
	first, err := Encrypt("same-key", key)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	second, err := Encrypt("same-key", key)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if first == second {
		t.Error("two encryptions of the same plaintext produced identical ciphertexts")
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	key := deriveTestKey(t, "test-secret-at-least-16-chars")
	otherKey := deriveTestKey(t, "another-secret-16-chars-long")

	ciphertext, err := Encrypt("api-secret", key)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if _, err := Decrypt(ciphertext, otherKey); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	key := deriveTestKey(t, "test-secret-at-least-16-chars")

	if _, err := Decrypt("not base64 at all!!!", key); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("expected ErrInvalidCiphertext, got %v", err)
	}

	// Валидный base64, но короче nonce
	if _, err := Decrypt("YWJj", key); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("expected ErrCiphertextTooShort, got %v", err)
	}
}

func TestDeriveKey(t *testing.T) {
	if _, err := DeriveKey(""); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("expected ErrEmptySecret, got %v", err)
	}

	key := deriveTestKey(t, "some-secret-16-chars-min")
	if len(key) != keyLength {
		t.Errorf("key length = %d, want %d", len(key), keyLength)
	}

	// Детерминированность: один секрет всегда даёт один ключ
	again := deriveTestKey(t, "some-secret-16-chars-min")
	if string(key) != string(again) {
		t.Error("DeriveKey is not deterministic for the same secret")
	}
}

func TestEncryptRequiresFullKey(t *testing.T) {
	if _, err := Encrypt("data", []byte("short")); !errors.Is(err, ErrInvalidKeyLength) {
		t.Errorf("expected ErrInvalidKeyLength, got %v", err)
	}
	if _, err := Decrypt("data", []byte("short")); !errors.Is(err, ErrInvalidKeyLength) {
		t.Errorf("expected ErrInvalidKeyLength, got %v", err)
	}
}
