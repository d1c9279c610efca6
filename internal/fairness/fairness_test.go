package fairness

import (
	"encoding/hex"
	"math"
	"testing"
)

func testSecret() []byte {
	secret := make([]byte, SeedSize)
	for i := range secret {
		secret[i] = byte(i)
	}
	return secret
}

func TestKnownVector(t *testing.T) {
	secret := testSecret()

	if got, want := HashSeed(secret), "630dcd2966c4336691125448bbb25b4ff412a49c732db2c8abc1b8581bd710dd"; got != want {
		t.Fatalf("hash = %s, want %s", got, want)
	}
	if got := Draw(secret, "client-seed", 0); got != 2729757215 {
		t.Fatalf("draw = %d, want 2729757215", got)
	}
	if got := DeriveInRange(secret, "client-seed", 0, 1, 6); got != 4 {
		t.Fatalf("derive in range = %d, want 4", got)
	}
	if got := Draw(secret, "client-seed", 7); got != 4154409203 {
		t.Fatalf("draw nonce 7 = %d, want 4154409203", got)
	}
}

func TestDeriveDeterministic(t *testing.T) {
	secret := testSecret()

	for nonce := uint64(0); nonce < 200; nonce++ {
		a := Derive(secret, "seed", nonce)
		b := Derive(secret, "seed", nonce)
		if a != b {
			t.Fatalf("nonce %d: derive not deterministic: %v != %v", nonce, a, b)
		}
		if a < 0 || a >= 1 {
			t.Fatalf("nonce %d: derive out of range: %v", nonce, a)
		}
	}
}

func TestDeriveInRangeMatchesFloatFormula(t *testing.T) {
	secret := testSecret()

	for nonce := uint64(0); nonce < 500; nonce++ {
		f := Derive(secret, "seed", nonce)
		want := int(f*float64(37)) + 3
		if got := DeriveInRange(secret, "seed", nonce, 3, 39); got != want {
			t.Fatalf("nonce %d: got %d, want %d", nonce, got, want)
		}
	}
}

func TestDeriveInRangeSingleValue(t *testing.T) {
	if got := DeriveInRange(testSecret(), "seed", 1, 5, 5); got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
}

func TestDeriveInRangePanicsOnEmptyRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	DeriveInRange(testSecret(), "seed", 0, 2, 1)
}

func TestDeriveInRangeUniform(t *testing.T) {
	const draws = 60000
	secret := testSecret()
	counts := make([]int, 6)

	for nonce := uint64(0); nonce < draws; nonce++ {
		counts[DeriveInRange(secret, "client-seed", nonce, 0, 5)]++
	}

	expected := float64(draws) / float64(len(counts))
	var chi2 float64
	for _, c := range counts {
		d := float64(c) - expected
		chi2 += d * d / expected
	}
	// 5 degrees of freedom, p = 0.001
	if chi2 > 20.515 {
		t.Fatalf("chi-square %.3f exceeds critical value, counts %v", chi2, counts)
	}
}

func TestDrawsAcrossNoncesNotMonotonic(t *testing.T) {
	secret := testSecret()
	var increases int
	prev := Draw(secret, "client-seed", 0)
	for nonce := uint64(1); nonce < 100; nonce++ {
		cur := Draw(secret, "client-seed", nonce)
		if cur > prev {
			increases++
		}
		prev = cur
	}
	if increases < 30 || increases > 69 {
		t.Fatalf("suspicious trend: %d increases over 99 steps", increases)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	c, err := Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(c.Secret) != SeedSize {
		t.Fatalf("secret length = %d, want %d", len(c.Secret), SeedSize)
	}
	if !VerifyCommitment(c.Secret, c.Hash) {
		t.Fatal("commitment does not verify")
	}

	claimed := Derive(c.Secret, "abc", 3)
	if !Verify(c.Secret, "abc", 3, claimed) {
		t.Fatal("verify rejected its own outcome")
	}

	ranged := DeriveInRange(c.Secret, "abc", 9, 0, 99)
	if !VerifyInRange(c.Secret, "abc", 9, 0, 99, ranged) {
		t.Fatal("verify in range rejected its own outcome")
	}
	if VerifyInRange(c.Secret, "abc", 9, 99, 0, ranged) {
		t.Fatal("verify in range accepted an empty range")
	}
}

func TestVerifyFailsOnMutatedSeed(t *testing.T) {
	secret := testSecret()
	claimed := Derive(secret, "client-seed", 7)

	for i := range secret {
		mutated := append([]byte(nil), secret...)
		mutated[i] ^= 0x01
		if Verify(mutated, "client-seed", 7, claimed) {
			t.Fatalf("verify accepted seed mutated at byte %d", i)
		}
		if VerifyCommitment(mutated, HashSeed(secret)) {
			t.Fatalf("commitment accepted seed mutated at byte %d", i)
		}
	}
}

func TestClientSeedChangesOutcome(t *testing.T) {
	secret := testSecret()
	if Draw(secret, "client-seed", 7) == Draw(secret, "client-seeD", 7) {
		t.Fatal("changing the client seed did not change the draw")
	}
}

func TestDecodeSeed(t *testing.T) {
	secret := testSecret()

	got, err := DecodeSeed(hex.EncodeToString(secret))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if hex.EncodeToString(got) != hex.EncodeToString(secret) {
		t.Fatal("decoded seed mismatch")
	}
	if _, err := DecodeSeed("zz"); err == nil {
		t.Fatal("expected hex error")
	}
	if _, err := DecodeSeed("abcd"); err == nil {
		t.Fatal("expected length error")
	}
}

func TestNewClientSeed(t *testing.T) {
	a, err := NewClientSeed()
	if err != nil {
		t.Fatalf("client seed: %v", err)
	}
	b, _ := NewClientSeed()
	if len(a) != 32 || a == b {
		t.Fatalf("unexpected client seeds %q %q", a, b)
	}
}

func TestDeriveInRangeWideRanges(t *testing.T) {
	secret := testSecret()
	if Draw(secret, "client-seed", 0) != 2729757215 {
		t.Fatal("unexpected draw for the known vector")
	}

	tests := []struct {
		name   string
		lo, hi int
		want   int
	}{
		{name: "40 bit span", lo: 0, hi: 1<<40 - 1, want: 698817847040},
		{name: "wider than int/2", lo: -(1 << 62), hi: 1 << 62, want: 1250422963795132416},
		{name: "full range", lo: math.MinInt, hi: math.MaxInt, want: 2500845927590264832},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveInRange(secret, "client-seed", 0, tt.lo, tt.hi)
			if got != tt.want {
				t.Fatalf("DeriveInRange = %d, want %d", got, tt.want)
			}
			if got < tt.lo || got > tt.hi {
				t.Fatalf("%d outside [%d,%d]", got, tt.lo, tt.hi)
			}
			if !VerifyInRange(secret, "client-seed", 0, tt.lo, tt.hi, got) {
				t.Fatal("verify rejected the derived value")
			}
		})
	}
}
