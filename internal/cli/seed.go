package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/galexy/revivo-mk1-sub001/internal/core"
	"github.com/galexy/revivo-mk1-sub001/internal/services"
)

// SeedCategory is one line of a category seed file.
type SeedCategory struct {
	Type   core.CategoryType
	Parent string
	Name   string
}

// ReadSeedFile parses a category seed file. Each non-blank line that does not
// start with '#' has the form
//
//	[income:|expense:]Parent[/Child]
//
// The type defaults to expense. Duplicate lines are dropped and the input
// order is preserved.
func ReadSeedFile(path string) ([]SeedCategory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	var out []SeedCategory
	seen := map[SeedCategory]struct{}{}
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seed, err := parseSeedLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		if _, ok := seen[seed]; ok {
			continue
		}
		seen[seed] = struct{}{}
		out = append(out, seed)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return out, nil
}

func parseSeedLine(line string) (SeedCategory, error) {
	seed := SeedCategory{Type: core.CategoryExpense}
	if prefix, rest, ok := strings.Cut(line, ":"); ok {
		seed.Type = core.CategoryType(strings.ToLower(strings.TrimSpace(prefix)))
		if err := seed.Type.Validate(); err != nil {
			return seed, err
		}
		line = rest
	}

	parent, child, nested := strings.Cut(line, "/")
	parent, child = strings.TrimSpace(parent), strings.TrimSpace(child)
	switch {
	case parent == "":
		return seed, fmt.Errorf("missing category name in %q", line)
	case nested && child == "":
		return seed, fmt.Errorf("missing child category name in %q", line)
	case strings.Contains(child, "/"):
		return seed, fmt.Errorf("categories nest at most one level: %q", line)
	}
	if nested {
		seed.Parent, seed.Name = parent, child
	} else {
		seed.Name = parent
	}
	return seed, nil
}

// SeedCategories creates the seeded categories that the household does not
// have yet, matching existing ones by name without regard to case. Parents
// named only as the prefix of a child line are created as well. It returns
// the number of categories created.
func SeedCategories(ctx context.Context, ledger *services.Ledger, householdID core.HouseholdID, seeds []SeedCategory) (int, error) {
	tree, err := ledger.CategoryTree(ctx, householdID)
	if err != nil {
		return 0, err
	}

	roots := make(map[string]core.CategoryID)
	children := make(map[string]struct{})
	for _, node := range tree {
		roots[strings.ToLower(node.Category.Name())] = node.Category.ID()
		for _, c := range node.Children {
			children[childKey(node.Category.ID(), c.Name())] = struct{}{}
		}
	}

	created := 0
	ensureRoot := func(name string, t core.CategoryType) (core.CategoryID, error) {
		if id, ok := roots[strings.ToLower(name)]; ok {
			return id, nil
		}
		c, err := ledger.CreateCategory(ctx, householdID, name, t, "")
		if err != nil {
			return "", fmt.Errorf("create category %q: %w", name, err)
		}
		roots[strings.ToLower(name)] = c.ID()
		created++
		return c.ID(), nil
	}

	for _, seed := range seeds {
		if seed.Parent == "" {
			if _, err := ensureRoot(seed.Name, seed.Type); err != nil {
				return created, err
			}
			continue
		}
		parentID, err := ensureRoot(seed.Parent, seed.Type)
		if err != nil {
			return created, err
		}
		key := childKey(parentID, seed.Name)
		if _, ok := children[key]; ok {
			continue
		}
		if _, err := ledger.CreateCategory(ctx, householdID, seed.Name, seed.Type, parentID); err != nil {
			return created, fmt.Errorf("create category %q/%q: %w", seed.Parent, seed.Name, err)
		}
		children[key] = struct{}{}
		created++
	}
	return created, nil
}

func childKey(parent core.CategoryID, name string) string {
	return string(parent) + "/" + strings.ToLower(name)
}
