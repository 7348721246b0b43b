package tea

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// encryptWith builds ciphertext that one specific catalog key will
// recover.
func encryptWith(t *testing.T, alg Algorithm, key, plain []byte) []byte {
	t.Helper()
	c, err := NewCipher(alg, key)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := c.Encrypt(plain)
	if err != nil {
		t.Fatal(err)
	}
	return enc
}

func TestBruteforceRecoversCatalogKey(t *testing.T) {
	e := NewEngine(nil)
	plain := []byte("TETRA GROUP CALL 001234!") // 24 printable bytes

	var key []byte
	for _, k := range e.Catalog.Keys(TEA1) {
		if k.ID == "deadbeef" {
			key = k.Bytes
		}
	}
	if key == nil {
		t.Fatal("builtin catalog missing deadbeef key")
	}

	res := e.Bruteforce(encryptWith(t, TEA1, key, plain), TEA1)
	if !res.Matched {
		t.Fatalf("no match, best score %d via %s", res.Score, res.KeyID)
	}
	if res.KeyID != "deadbeef" || res.Algorithm != TEA1 {
		t.Fatalf("wrong key chosen: %s/%s score %d", res.Algorithm, res.KeyID, res.Score)
	}
	if res.Band != BandHigh {
		t.Fatalf("expected high confidence, got %s (score %d)", res.Band, res.Score)
	}
	if !bytes.Equal(res.Plaintext, plain) {
		t.Fatalf("plaintext mismatch: %x", res.Plaintext)
	}
}

func TestBruteforceCrossTry(t *testing.T) {
	// Ciphertext made with a TEA2 catalog key but tagged TEA1: the
	// bounded cross-try slice must still find it.
	e := NewEngine(nil)
	plain := []byte("STATUS OK UNIT 42 SECTOR")

	key := e.Catalog.Keys(TEA2)[0].Bytes // null key, inside cross-try bound
	res := e.Bruteforce(encryptWith(t, TEA2, key, plain), TEA1)
	if !res.Matched || res.Algorithm != TEA2 {
		t.Fatalf("cross-try missed: %+v", res)
	}
}

func TestBruteforceTrialBudget(t *testing.T) {
	e := NewEngine(nil)
	plain := []byte("TETRA GROUP CALL 001234!")
	key := e.Catalog.Keys(TEA1)[0].Bytes

	res := e.Bruteforce(encryptWith(t, TEA1, key, plain), TEA1)
	if res.Trials < 15 || res.Trials > 30 {
		t.Fatalf("trial count %d outside the per-frame budget", res.Trials)
	}
}

func TestDegenerateCiphertextNeverMatches(t *testing.T) {
	e := NewEngine(nil)

	for _, fill := range []byte{0x00, 0xFF} {
		data := bytes.Repeat([]byte{fill}, 16)
		res := e.Bruteforce(data, TEA1)
		if res.Matched {
			t.Fatalf("matched constant 0x%02X input", fill)
		}
		if res.Score > 0 {
			t.Fatalf("constant input scored %d", res.Score)
		}
	}
}

func TestRunDegenerateCiphertext(t *testing.T) {
	e := NewEngine(nil)
	res, err := e.Run(context.Background(), bytes.Repeat([]byte{0xFF}, 16), TEA1, 3)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Matched || res.Score > 0 {
		t.Fatalf("constant input matched in parallel run: %+v", res)
	}
}

func TestBruteforceDeterministic(t *testing.T) {
	e := NewEngine(nil)
	data := mustHex("0F1E2D3C4B5A69788796A5B4C3D2E1F00F1E2D3C4B5A6978")

	a := e.Bruteforce(data, TEA2)
	b := e.Bruteforce(data, TEA2)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("nondeterministic results:\n%+v\n%+v", a, b)
	}
}

func TestRunMatchesSequential(t *testing.T) {
	e := NewEngine(nil)
	plain := []byte("TETRA GROUP CALL 001234!")
	key := e.Catalog.Keys(TEA1)[9].Bytes // deadbeef

	data := encryptWith(t, TEA1, key, plain)
	seq := e.Bruteforce(data, TEA1)

	par, err := e.Run(context.Background(), data, TEA1, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(seq, par) {
		t.Fatalf("parallel result diverges:\n%+v\n%+v", seq, par)
	}
}

func TestRunCancellation(t *testing.T) {
	e := NewEngine(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Run(ctx, mustHex("0102030405060708090A0B0C0D0E0F10"), TEA1, 2)
	if err == nil {
		t.Fatal("expected a context error")
	}
	if res.Band != BandPending || res.Matched {
		t.Fatalf("cancelled run should be pending: %+v", res)
	}
}

func TestScoreWeights(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   []byte
		want int
	}{
		// 16 printable, diverse, head 'C': 32 + 30 + 10 + 10.
		{"text", []byte("CALL GROUP 12345"), 82},
		// All zero: only the penalty applies.
		{"zeros", make([]byte, 16), -100},
		// All 0xFF: penalty, no diversity bonuses.
		{"ones", bytes.Repeat([]byte{0xFF}, 16), -100},
		// Printable but constant: the penalty dominates.
		{"repeated", bytes.Repeat([]byte{'A'}, 16), 2*16 - 100 + 10},
		// Head 0x05 earns both header bonuses on top of diversity.
		{"sds-header", []byte{0x05, 0x00, 0x03, 0x48, 0x49}, 2*2 + 30 + 10 + 10 + 20},
		{"empty", nil, 0},
	} {
		if got := Score(tc.in); got != tc.want {
			t.Fatalf("%s: Score = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestScoreMonotonicInPrintableBytes(t *testing.T) {
	base := []byte("UNIT 7 REPORTING IN\x00\x01\x02")
	with := append(append([]byte{}, base...), 'A')
	if Score(with) < Score(base) {
		t.Fatalf("appending a printable byte lowered the score: %d -> %d", Score(base), Score(with))
	}
}

func TestCatalogLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.txt")
	content := "# supplemental keys\n" +
		"TEA1:site-7:00112233445566778899\n" +
		"\n" +
		"TEA2:dispatch:000102030405060708090A0B0C0D0E0F\n" +
		"TEA9:bogus:00\n" +
		"not a key line\n" +
		"TEA1:short:0011\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCatalog()
	if err := c.LoadFile(path, quietTestLogger()); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Fatalf("loaded %d keys, want 2", c.Len())
	}
	if got := c.Keys(TEA1); len(got) != 1 || got[0].ID != "site-7" {
		t.Fatalf("TEA1 keys: %+v", got)
	}
	if got := c.Keys(TEA2); len(got) != 1 || got[0].ID != "dispatch" {
		t.Fatalf("TEA2 keys: %+v", got)
	}

	if err := c.LoadFile(filepath.Join(t.TempDir(), "missing.txt"), quietTestLogger()); err == nil {
		t.Fatal("loading a missing file should fail")
	}
}

func TestCatalogTruncatesOversizedKeys(t *testing.T) {
	c := NewCatalog()
	long := make([]byte, 32)
	for i := range long {
		long[i] = byte(i)
	}
	if err := c.Add(TEA2, "long", long); err != nil {
		t.Fatal(err)
	}
	got := c.Keys(TEA2)[0].Bytes
	if len(got) != 16 || !bytes.Equal(got, long[:16]) {
		t.Fatalf("truncation: %x", got)
	}
}

func TestBruteforceLatency(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	e := NewEngine(nil)
	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(i * 31)
	}

	start := time.Now()
	e.Bruteforce(data, TEA1)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("bruteforce took %v for one frame", elapsed)
	}
}
