// Package classification holds the classification catalog: the flat set of
// labeling categories and the sensitivity levels they point at.
//
// Classifications reference levels by id only. Resolution happens through
// Catalog lookups at display time so a reloaded catalog never leaves stale
// embedded copies behind.
package classification

import (
	"fmt"
	"slices"
	"strings"
)

// Level is a severity/sensitivity tier such as "High" or "Low".
type Level struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Classification is a labeling category. An empty LevelID marks a group
// header that cannot be assigned to a table or column.
type Classification struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	LevelID     string `json:"levelId,omitempty"`
}

// Assignable reports whether c may be assigned to a table or column.
func (c Classification) Assignable() bool {
	return c.LevelID != ""
}

// Config is one classification configuration as stored by the service:
// levels in display order plus classifications keyed by id.
type Config struct {
	ID             string                    `json:"id,omitempty"`
	Title          string                    `json:"title,omitempty"`
	Levels         []Level                   `json:"levels"`
	Classification map[string]Classification `json:"classification"`
}

// Catalog is an immutable snapshot of a classification Config.
// The zero value is an empty catalog.
type Catalog struct {
	levels  []Level
	entries []Classification
	byID    map[string]Classification
	levelBy map[string]Level
}

// NewCatalog builds a Catalog from cfg. Entries are ordered by id so that
// listings are stable regardless of map iteration order.
func NewCatalog(cfg Config) *Catalog {
	c := &Catalog{
		levels:  append([]Level(nil), cfg.Levels...),
		byID:    make(map[string]Classification, len(cfg.Classification)),
		levelBy: make(map[string]Level, len(cfg.Levels)),
	}
	for _, l := range cfg.Levels {
		c.levelBy[l.ID] = l
	}
	for key, entry := range cfg.Classification {
		if entry.ID == "" {
			entry.ID = key
		}
		c.byID[entry.ID] = entry
		c.entries = append(c.entries, entry)
	}
	slices.SortFunc(c.entries, func(a, b Classification) int {
		return strings.Compare(a.ID, b.ID)
	})
	return c
}

// Levels returns the levels in display order.
func (c *Catalog) Levels() []Level {
	return append([]Level(nil), c.levels...)
}

// All returns every classification, group headers included.
func (c *Catalog) All() []Classification {
	return append([]Classification(nil), c.entries...)
}

// Selectable returns only the classifications with a level, i.e. the ones
// a user can assign.
func (c *Catalog) Selectable() []Classification {
	out := make([]Classification, 0, len(c.entries))
	for _, e := range c.entries {
		if e.Assignable() {
			out = append(out, e)
		}
	}
	return out
}

// Lookup returns the classification with the given id.
func (c *Catalog) Lookup(id string) (Classification, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// Level returns the level with the given id.
func (c *Catalog) Level(id string) (Level, bool) {
	l, ok := c.levelBy[id]
	return l, ok
}

// Display formats a classification for a picker. Group headers show their
// title only; assignable entries show id, title and level title, falling
// back to the raw level id when the level is unknown.
func (c *Catalog) Display(cl Classification) string {
	if !cl.Assignable() {
		return cl.Title
	}
	levelTitle := cl.LevelID
	if l, ok := c.Level(cl.LevelID); ok && l.Title != "" {
		levelTitle = l.Title
	}
	return fmt.Sprintf("%s %s ==== [%s]", cl.ID, cl.Title, levelTitle)
}

// Len returns the number of classifications in the catalog.
func (c *Catalog) Len() int {
	return len(c.entries)
}
