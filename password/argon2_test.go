package password

import (
	"strings"
	"testing"
)

// cheap parameters keep the test suite fast; production uses DefaultParams.
func testHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(Params{
		MemoryKB:    8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("unexpected encoding: %q", encoded)
	}

	match, err := h.Verify("correct horse battery staple", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !match {
		t.Fatal("correct password did not match")
	}

	match, err = h.Verify("wrong password!", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if match {
		t.Fatal("wrong password matched")
	}
}

func TestHashSaltsAreUnique(t *testing.T) {
	h := testHasher(t)

	a, err := h.Hash("same password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := h.Hash("same password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password are identical")
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	h := testHasher(t)
	if _, err := h.Hash("short"); err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestVerifyUsesEmbeddedParams(t *testing.T) {
	// Hash with one parameter set, verify with a hasher configured
	// differently; the encoded parameters must win.
	a := testHasher(t)
	encoded, err := a.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	b, err := NewHasher(DefaultParams())
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	match, err := b.Verify("correct horse battery staple", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !match {
		t.Fatal("verification ignored the embedded parameters")
	}
}

func TestVerifyRejectsMalformedEncodings(t *testing.T) {
	h := testHasher(t)

	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=19$m=8192$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$",
	} {
		if _, err := h.Verify("whatever", encoded); err == nil {
			t.Errorf("encoding %q accepted", encoded)
		}
	}
}

func TestNewHasherValidation(t *testing.T) {
	cases := []struct {
		name   string
		params Params
	}{
		{"low memory", Params{MemoryKB: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}},
		{"zero time", Params{MemoryKB: 8192, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 16}},
		{"zero parallelism", Params{MemoryKB: 8192, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 16}},
		{"short salt", Params{MemoryKB: 8192, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}},
		{"short key", Params{MemoryKB: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8}},
	}
	for _, tc := range cases {
		if _, err := NewHasher(tc.params); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}

	// The zero value selects defaults rather than failing.
	h, err := NewHasher(Params{})
	if err != nil || h == nil {
		t.Fatalf("zero params: %v", err)
	}
}
