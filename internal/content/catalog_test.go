package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kapu/opening-trainer/internal/drill"
)

func TestEmbeddedCatalogLoads(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ops := c.Openings()
	if len(ops) == 0 {
		t.Fatal("embedded catalog is empty")
	}

	op, err := c.Get("italian-game")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if op.Difficulty != drill.DifficultyBeginner {
		t.Errorf("difficulty = %s", op.Difficulty)
	}

	lines, err := c.Lines("italian-game")
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	if lines[0].Name != MainLineName {
		t.Errorf("first line = %q, want main", lines[0].Name)
	}
	if len(lines) != 3 {
		t.Errorf("len(lines) = %d, want 3", len(lines))
	}
	if lines[0].Sequence.TotalPlies() != 10 {
		t.Errorf("main line plies = %d, want 10", lines[0].Sequence.TotalPlies())
	}
}

func TestEmbeddedLinesAreLegal(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, op := range c.Openings() {
		lines, err := c.Lines(op.ID)
		if err != nil {
			t.Fatalf("Lines(%s): %v", op.ID, err)
		}
		for _, ln := range lines {
			board := drill.NewBoard()
			for _, san := range interleave(ln.Sequence) {
				if _, err := board.ApplySAN(san); err != nil {
					t.Errorf("%s: %q does not apply: %v", ln.Key, san, err)
					break
				}
			}
		}
	}
}

// interleave flattens a sequence back into play order.
func interleave(seq drill.MoveSequence) []string {
	out := make([]string, 0, seq.TotalPlies())
	for i := 0; i < len(seq.White); i++ {
		out = append(out, seq.White[i])
		if i < len(seq.Black) {
			out = append(out, seq.Black[i])
		}
	}
	return out
}

func TestOverrideDirReplacesAndAdds(t *testing.T) {
	dir := t.TempDir()
	override := `openings:
  - id: italian-game
    name: Italian Game (short)
    color: white
    difficulty: beginner
    moves: "1. e4 e5 2. Nf3 Nc6 3. Bc4"
  - id: caro-kann
    name: Caro-Kann
    color: black
    difficulty: beginner
    moves: "1. e4 c6 2. d4 d5"
`
	if err := os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	op, err := c.Get("italian-game")
	if err != nil {
		t.Fatal(err)
	}
	if op.Name != "Italian Game (short)" {
		t.Errorf("override not applied: %q", op.Name)
	}
	if len(op.Variations) != 0 {
		t.Errorf("override must replace the whole opening, got %d variations", len(op.Variations))
	}
	if _, err := c.Get("caro-kann"); err != nil {
		t.Errorf("added opening missing: %v", err)
	}
}

func TestOverrideDirRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	body := `openings:
  - id: caro-kann
    name: Caro-Kann
    color: black
    difficulty: beginner
    moves: "1. e4 c6"
`
	for _, name := range []string{"a.yaml", "b.yaml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatal("duplicate opening across override files must fail")
	}
}

func TestVariationKeyRoundTrip(t *testing.T) {
	key := VariationKey("ruy-lopez", "berlin")
	id, name, ok := SplitKey(key)
	if !ok || id != "ruy-lopez" || name != "berlin" {
		t.Fatalf("SplitKey(%q) = %q, %q, %v", key, id, name, ok)
	}
	if _, _, ok := SplitKey("nodelimiter"); ok {
		t.Error("malformed key accepted")
	}
}

func TestLineResolvesByKey(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	op, ln, err := c.Line("ruy-lopez/berlin")
	if err != nil {
		t.Fatalf("Line: %v", err)
	}
	if op.ID != "ruy-lopez" || ln.Name != "berlin" {
		t.Errorf("resolved %s / %s", op.ID, ln.Name)
	}
	if _, _, err := c.Line("ruy-lopez/missing"); err == nil {
		t.Error("unknown variation must fail")
	}
}
