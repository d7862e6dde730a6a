package content

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	yaml "gopkg.in/yaml.v3"

	"github.com/kapu/opening-trainer/internal/drill"
)

//go:embed openings.yaml
var defaultFiles embed.FS

var ErrOpeningNotFound = errors.New("opening not found")

// Opening is one study set: a named main line plus optional variations, all
// drilled from the same side.
type Opening struct {
	ID         string           `yaml:"id"`
	Name       string           `yaml:"name"`
	Color      string           `yaml:"color"`
	Difficulty drill.Difficulty `yaml:"difficulty"`
	Moves      string           `yaml:"moves"`
	Variations []Variation      `yaml:"variations"`
}

// Variation is an alternative line inside an opening.
type Variation struct {
	Name  string `yaml:"name"`
	Moves string `yaml:"moves"`
}

// Line is a drillable unit: the main line or one variation, addressed by its
// composite key.
type Line struct {
	Key      string
	Name     string
	Sequence drill.MoveSequence
}

// MainLineName keys an opening's principal line alongside its variations.
const MainLineName = "main"

// VariationKey builds the composite identity used for progress tracking and
// persistence.
func VariationKey(openingID, variationName string) string {
	return openingID + "/" + variationName
}

// SplitKey is the inverse of VariationKey.
func SplitKey(key string) (openingID, variationName string, ok bool) {
	i := strings.IndexByte(key, '/')
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// Catalog loads openings from the embedded defaults and an optional override
// directory. Override files replace whole openings by id and may add new ones.
type Catalog struct {
	mu       sync.RWMutex
	order    []string
	openings map[string]Opening
}

type fileSchema struct {
	Openings []Opening `yaml:"openings"`
}

// New loads the embedded default openings and then applies overrides from dir
// if provided.
func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{openings: make(map[string]Opening)}

	if err := c.loadEmbedded(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(overrideDir) != "" {
		if err := c.applyDir(overrideDir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) loadEmbedded() error {
	raw, err := fs.ReadFile(defaultFiles, "openings.yaml")
	if err != nil {
		return fmt.Errorf("read embedded openings: %w", err)
	}
	parsed, err := parseFile(raw)
	if err != nil {
		return fmt.Errorf("parse embedded openings: %w", err)
	}
	c.apply(parsed)
	return nil
}

func (c *Catalog) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read content dir: %w", err)
	}
	// Sort for deterministic order
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	// Guard against the same opening defined in two override files
	seen := make(map[string]string) // opening id -> filename
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		parsed, err := parseFile(b)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		for _, op := range parsed {
			if prev, ok := seen[op.ID]; ok {
				return fmt.Errorf("duplicate opening %q in %s and %s", op.ID, prev, name)
			}
			seen[op.ID] = name
		}
		c.apply(parsed)
	}
	return nil
}

func parseFile(b []byte) ([]Opening, error) {
	var f fileSchema
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	for i, op := range f.Openings {
		if strings.TrimSpace(op.ID) == "" {
			return nil, fmt.Errorf("opening %d: missing id", i)
		}
		if strings.TrimSpace(op.Moves) == "" {
			return nil, fmt.Errorf("opening %s: missing moves", op.ID)
		}
		if _, err := drill.ParseColor(op.Color); err != nil {
			return nil, fmt.Errorf("opening %s: %w", op.ID, err)
		}
		for _, v := range op.Variations {
			if strings.TrimSpace(v.Name) == "" || strings.TrimSpace(v.Moves) == "" {
				return nil, fmt.Errorf("opening %s: variation missing name or moves", op.ID)
			}
			if v.Name == MainLineName {
				return nil, fmt.Errorf("opening %s: variation name %q is reserved", op.ID, MainLineName)
			}
		}
	}
	return f.Openings, nil
}

func (c *Catalog) apply(parsed []Opening) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, op := range parsed {
		if _, exists := c.openings[op.ID]; !exists {
			c.order = append(c.order, op.ID)
		}
		c.openings[op.ID] = op
	}
}

// Openings lists the catalog in load order.
func (c *Catalog) Openings() []Opening {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Opening, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.openings[id])
	}
	return out
}

// Get returns one opening by id.
func (c *Catalog) Get(id string) (Opening, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	op, ok := c.openings[id]
	if !ok {
		return Opening{}, fmt.Errorf("%w: %s", ErrOpeningNotFound, id)
	}
	return op, nil
}

// Lines returns the drillable lines of an opening, main line first, with
// their move text already parsed.
func (c *Catalog) Lines(id string) ([]Line, error) {
	op, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, 1+len(op.Variations))
	lines = append(lines, Line{
		Key:      VariationKey(op.ID, MainLineName),
		Name:     MainLineName,
		Sequence: drill.ParseMoveText(op.Moves),
	})
	for _, v := range op.Variations {
		lines = append(lines, Line{
			Key:      VariationKey(op.ID, v.Name),
			Name:     v.Name,
			Sequence: drill.ParseMoveText(v.Moves),
		})
	}
	return lines, nil
}

// Line resolves a single drillable line by composite key.
func (c *Catalog) Line(key string) (Opening, Line, error) {
	openingID, variationName, ok := SplitKey(key)
	if !ok {
		return Opening{}, Line{}, fmt.Errorf("malformed variation key: %s", key)
	}
	op, err := c.Get(openingID)
	if err != nil {
		return Opening{}, Line{}, err
	}
	lines, err := c.Lines(openingID)
	if err != nil {
		return Opening{}, Line{}, err
	}
	for _, ln := range lines {
		if ln.Name == variationName {
			return op, ln, nil
		}
	}
	return Opening{}, Line{}, fmt.Errorf("%w: %s", ErrOpeningNotFound, key)
}
