package puzzle

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"acakata/internal/domain"
	"gopkg.in/yaml.v3"
)

// corpusFile is the on-disk shape of a puzzle corpus:
//
//	puzzles:
//	  - word: apel
//	    hint: buah
type corpusFile struct {
	Puzzles []domain.PuzzleEntry `yaml:"puzzles"`
}

// LoadCorpusFile reads and validates a YAML corpus.
func LoadCorpusFile(path string) ([]domain.PuzzleEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	entries, err := ParseCorpus(data)
	if err != nil {
		return nil, fmt.Errorf("corpus %s: %w", path, err)
	}
	return entries, nil
}

// ParseCorpus decodes YAML corpus data, normalizing words and dropping entries that
// are blank or contain anything other than letters.
func ParseCorpus(data []byte) ([]domain.PuzzleEntry, error) {
	var file corpusFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return Clean(file.Puzzles)
}

// Clean normalizes entries and drops unusable ones.
func Clean(entries []domain.PuzzleEntry) ([]domain.PuzzleEntry, error) {
	out := make([]domain.PuzzleEntry, 0, len(entries))
	for _, entry := range entries {
		word := Normalize(entry.Word)
		if word == "" || strings.IndexFunc(word, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
			continue
		}
		out = append(out, domain.PuzzleEntry{Word: word, Hint: strings.TrimSpace(entry.Hint)})
	}
	if len(out) == 0 {
		return nil, domain.ErrCorpusEmpty
	}
	return out, nil
}

// DefaultCorpus is the built-in word list used when no other corpus is configured.
func DefaultCorpus() []domain.PuzzleEntry {
	return []domain.PuzzleEntry{
		{Word: "APEL", Hint: "buah"},
		{Word: "MANGGA", Hint: "buah"},
		{Word: "PISANG", Hint: "buah"},
		{Word: "SEMANGKA", Hint: "buah"},
		{Word: "DURIAN", Hint: "buah"},
		{Word: "RAMBUTAN", Hint: "buah"},
		{Word: "JERUK", Hint: "buah"},
		{Word: "KUCING", Hint: "hewan"},
		{Word: "HARIMAU", Hint: "hewan"},
		{Word: "GAJAH", Hint: "hewan"},
		{Word: "KELINCI", Hint: "hewan"},
		{Word: "MONYET", Hint: "hewan"},
		{Word: "BURUNG", Hint: "hewan"},
		{Word: "KURA", Hint: "hewan"},
		{Word: "JAKARTA", Hint: "kota"},
		{Word: "BANDUNG", Hint: "kota"},
		{Word: "SURABAYA", Hint: "kota"},
		{Word: "MEDAN", Hint: "kota"},
		{Word: "MAKASSAR", Hint: "kota"},
		{Word: "DENPASAR", Hint: "kota"},
		{Word: "MERAH", Hint: "warna"},
		{Word: "KUNING", Hint: "warna"},
		{Word: "HIJAU", Hint: "warna"},
		{Word: "UNGU", Hint: "warna"},
		{Word: "KEMEJA", Hint: "pakaian"},
		{Word: "CELANA", Hint: "pakaian"},
		{Word: "SEPATU", Hint: "pakaian"},
		{Word: "TOPI", Hint: "pakaian"},
		{Word: "SEPEDA", Hint: "kendaraan"},
		{Word: "KERETA", Hint: "kendaraan"},
		{Word: "PESAWAT", Hint: "kendaraan"},
		{Word: "PERAHU", Hint: "kendaraan"},
		{Word: "NASI", Hint: "makanan"},
		{Word: "RENDANG", Hint: "makanan"},
		{Word: "SATE", Hint: "makanan"},
		{Word: "BAKSO", Hint: "makanan"},
		{Word: "GURU", Hint: "pekerjaan"},
		{Word: "DOKTER", Hint: "pekerjaan"},
		{Word: "PETANI", Hint: "pekerjaan"},
		{Word: "NELAYAN", Hint: "pekerjaan"},
	}
}
