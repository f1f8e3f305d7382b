package chaos_test

import (
	"bytes"
	"testing"

	"github.com/electwix/tsql2snow/internal/lint"
	"github.com/electwix/tsql2snow/internal/rewrite"
	"github.com/electwix/tsql2snow/internal/testing/chaos"
	"github.com/electwix/tsql2snow/internal/tokenizer"
)

var validInputs = [][]byte{
	[]byte("SELECT TOP 5 * FROM [Sales] WITH (NOLOCK) WHERE x = ISNULL(a,b);"),
	[]byte("SELECT DATEADD(dd, 3, GETDATE());\nGO\nSELECT 2;"),
	[]byte("SELECT CONVERT(varchar(10), col), LEFT(name, 3) FROM t;"),
	[]byte("-- comment; here\nSELECT ';' AS x /* block; */;"),
	[]byte("INSERT INTO t VALUES (1, N'caf''e');"),
}

func TestCorruptorDeterministic(t *testing.T) {
	a := chaos.NewCorruptor(7).GenerateCorpus(validInputs[0], 20)
	b := chaos.NewCorruptor(7).GenerateCorpus(validInputs[0], 20)
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			t.Fatalf("corpus entry %d differs for the same seed", i)
		}
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	valid := []byte("SELECT 1;")
	c := chaos.NewCorruptor(1)
	for m := chaos.ByteFlip; m <= chaos.Duplicate; m++ {
		_ = c.Apply(m, valid)
		if string(valid) != "SELECT 1;" {
			t.Fatalf("mutation %d modified its input: %q", m, valid)
		}
	}
}

func TestBatchSeparatorInsert(t *testing.T) {
	got := chaos.NewCorruptor(3).Apply(chaos.BatchSeparatorInsert, []byte("SELECT 1;"))
	if !bytes.Contains(got, []byte("\nGO\n")) {
		t.Fatalf("expected GO line in %q", got)
	}
}

func TestTokenizerChaos(t *testing.T) {
	corruptor := chaos.NewCorruptor(42)
	for _, valid := range validInputs {
		for _, corrupted := range corruptor.GenerateCorpus(valid, 100) {
			tokens := tokenizer.Scan(string(corrupted))
			if tokens[len(tokens)-1].Kind != tokenizer.KindEOF {
				t.Fatalf("scan of %q did not end with EOF", corrupted)
			}
		}
	}
}

func TestConvertChaos(t *testing.T) {
	corruptor := chaos.NewCorruptor(43)
	for _, valid := range validInputs {
		for _, corrupted := range corruptor.GenerateCorpus(valid, 100) {
			// Should never panic
			_ = rewrite.Convert(string(corrupted))
		}
	}
}

func TestLintChaos(t *testing.T) {
	corruptor := chaos.NewCorruptor(44)
	for _, valid := range validInputs {
		for _, corrupted := range corruptor.GenerateCorpus(valid, 50) {
			_ = lint.Check(rewrite.Convert(string(corrupted)))
			_ = lint.Check(string(corrupted))
		}
	}
}

func BenchmarkChaosCorruption(b *testing.B) {
	valid := validInputs[0]
	corruptor := chaos.NewCorruptor(42)

	b.Run("Corrupt", func(b *testing.B) {
		for b.Loop() {
			_ = corruptor.Corrupt(valid)
		}
	})

	b.Run("GenerateCorpus", func(b *testing.B) {
		for b.Loop() {
			_ = corruptor.GenerateCorpus(valid, 100)
		}
	})
}
