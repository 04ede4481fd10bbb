package lexicon

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Map is an in-memory lexicon. It is read-only after loading and safe for
// concurrent lookups.
type Map struct {
	words      map[string]int
	normalizer *Normalizer
}

// NewMap creates a lexicon from word frequencies. Keys are normalised with
// n; frequencies of words that normalise to the same key are added.
func NewMap(words map[string]int, n *Normalizer) *Map {
	m := &Map{words: make(map[string]int, len(words)), normalizer: n}
	for w, f := range words {
		m.words[n.Normalize(w)] += f
	}
	return m
}

// ReadMap reads a word list: one word per line, optionally followed by a tab
// and its frequency (1 when absent). Blank lines and lines starting with #
// are ignored.
func ReadMap(r io.Reader, n *Normalizer) (*Map, error) {
	words := make(map[string]int)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		word, freqText, found := strings.Cut(text, "\t")
		freq := 1
		if found {
			f, err := strconv.Atoi(strings.TrimSpace(freqText))
			if err != nil || f < 0 {
				return nil, fmt.Errorf("line %d: invalid frequency %q", line, freqText)
			}
			freq = f
		}
		words[strings.TrimSpace(word)] += freq
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read word list: %w", err)
	}
	return NewMap(words, n), nil
}

// LoadMap reads a word list from a file.
func LoadMap(path string, n *Normalizer) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lexicon: %w", err)
	}
	defer f.Close()
	return ReadMap(f, n)
}

// Frequency returns how often word occurs, 0 if unknown.
func (m *Map) Frequency(_ context.Context, word string) (int, error) {
	return m.words[m.normalizer.Normalize(word)], nil
}

// Len returns the number of distinct normalised words.
func (m *Map) Len() int { return len(m.words) }

// Words returns a copy of the normalised frequencies.
func (m *Map) Words() map[string]int {
	out := make(map[string]int, len(m.words))
	for w, f := range m.words {
		out[w] = f
	}
	return out
}
