// Package chaos corrupts SQL inputs for robustness tests.
//
// Besides byte-level damage, the Corruptor splices in SQL delimiters (quotes,
// brackets, comment markers, terminators and GO lines) at random offsets, which
// is what breaks naive splitters and rewriters.
package chaos

import (
	"math/rand"
	"unicode/utf8"
)

// Corruptor applies seeded random corruptions. It is not safe for concurrent
// use.
type Corruptor struct {
	rng *rand.Rand
}

// NewCorruptor creates a new Corruptor with the given seed.
func NewCorruptor(seed int64) *Corruptor {
	return &Corruptor{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Mutation represents a type of corruption applied to input.
type Mutation int

const (
	ByteFlip Mutation = iota
	ByteDelete
	ByteInsert
	Utf8Corrupt
	Truncation
	DelimiterInsert
	BatchSeparatorInsert
	Duplicate

	mutationCount
)

// Delimiters holds the fragments DelimiterInsert splices into input.
var Delimiters = []string{
	"'", "''", `"`, "[", "]", "(", ")", ",", ";", "--", "/*", "*/",
	"N'", "\n", "\x00", "TOP", "LIMIT", "WITH (NOLOCK)", "CONVERT(",
}

// Corrupt applies one random mutation to a copy of input.
func (c *Corruptor) Corrupt(input []byte) []byte {
	if len(input) == 0 {
		return c.randomBytes()
	}
	return c.Apply(Mutation(c.rng.Intn(int(mutationCount))), input)
}

// Apply applies mutation m to a copy of input.
func (c *Corruptor) Apply(m Mutation, input []byte) []byte {
	result := append([]byte(nil), input...)
	if len(result) == 0 {
		return result
	}
	switch m {
	case ByteFlip:
		n := c.rng.Intn(3) + 1
		for range n {
			idx := c.rng.Intn(len(result))
			result[idx] ^= byte(1 << c.rng.Intn(8))
		}
		return result
	case ByteDelete:
		if len(result) <= 1 {
			return result
		}
		idx := c.rng.Intn(len(result))
		return append(result[:idx], result[idx+1:]...)
	case ByteInsert:
		return c.splice(result, []byte{byte(c.rng.Intn(256))})
	case Utf8Corrupt:
		return c.utf8Corrupt(result)
	case Truncation:
		if len(result) <= 1 {
			return result
		}
		return result[:c.rng.Intn(len(result)-1)+1]
	case DelimiterInsert:
		return c.splice(result, []byte(Delimiters[c.rng.Intn(len(Delimiters))]))
	case BatchSeparatorInsert:
		return c.splice(result, []byte("\nGO\n"))
	case Duplicate:
		return append(result, result...)
	default:
		return result
	}
}

// CorruptN applies n random corruptions to a copy of input.
func (c *Corruptor) CorruptN(input []byte, n int) []byte {
	result := append([]byte(nil), input...)
	for range n {
		result = c.Corrupt(result)
	}
	return result
}

// GenerateCorpus generates count corrupted variants of valid with varying
// intensity.
func (c *Corruptor) GenerateCorpus(valid []byte, count int) [][]byte {
	corpus := make([][]byte, count)
	for i := range corpus {
		corpus[i] = c.CorruptN(valid, c.rng.Intn(5)+1)
	}
	return corpus
}

func (c *Corruptor) splice(input, fragment []byte) []byte {
	idx := c.rng.Intn(len(input) + 1)
	out := make([]byte, 0, len(input)+len(fragment))
	out = append(out, input[:idx]...)
	out = append(out, fragment...)
	return append(out, input[idx:]...)
}

func (c *Corruptor) utf8Corrupt(result []byte) []byte {
	for i := 0; i < len(result); {
		r, size := utf8.DecodeRune(result[i:])
		if r == utf8.RuneError && size == 1 && c.rng.Float64() < 0.5 {
			result[i] = byte(c.rng.Intn(256))
		}
		i += size
	}
	// invalid start byte
	idx := c.rng.Intn(len(result))
	result[idx] = 0xC0 | byte(c.rng.Intn(0x20))
	return result
}

func (c *Corruptor) randomBytes() []byte {
	out := make([]byte, c.rng.Intn(10)+1)
	c.rng.Read(out)
	return out
}
