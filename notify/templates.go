package notify

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/vantage/scoring-engine/scoring"
)

// Template is one message body in a rotation category. Bodies carry
// {placeholder} slots filled at render time.
type Template struct {
	ID       string
	Category string
	Body     string
}

// Rotation categories.
const (
	CategoryDaily       = "daily"
	CategoryAchievement = "achievement"
)

// TemplateStore persists the rotation catalog and its usage log.
type TemplateStore interface {
	Templates(ctx context.Context, category string) ([]Template, error)
	RecentTemplateIDs(ctx context.Context, category string, n int) ([]string, error)
	RecordTemplateUse(ctx context.Context, templateID string, usedAt time.Time) error
}

// Catalog picks message templates at random while avoiding the most
// recently used ones, so repeated daily broadcasts do not read the
// same every morning.
type Catalog struct {
	store     TemplateStore
	avoidLast int

	// rand.Rand is not safe for concurrent use; Pick is called from
	// HTTP handlers on concurrent requests.
	mu   sync.Mutex
	rand *rand.Rand
}

// NewCatalog builds a catalog avoiding the last avoidLast picks per
// category. A nil source seeds from the clock.
func NewCatalog(store TemplateStore, avoidLast int, src rand.Source) *Catalog {
	if avoidLast < 0 {
		avoidLast = 0
	}
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Catalog{store: store, avoidLast: avoidLast, rand: rand.New(src)}
}

// Pick selects a template from the category, skipping the recently
// used ones when enough alternatives exist, and logs the use.
func (c *Catalog) Pick(ctx context.Context, category string) (Template, error) {
	all, err := c.store.Templates(ctx, category)
	if err != nil {
		return Template{}, fmt.Errorf("load templates %s: %w", category, err)
	}
	if len(all) == 0 {
		return Template{}, fmt.Errorf("no templates in category %s", category)
	}

	recent, err := c.store.RecentTemplateIDs(ctx, category, c.avoidLast)
	if err != nil {
		return Template{}, fmt.Errorf("recent templates %s: %w", category, err)
	}
	used := make(map[string]bool, len(recent))
	for _, id := range recent {
		used[id] = true
	}

	candidates := make([]Template, 0, len(all))
	for _, t := range all {
		if !used[t.ID] {
			candidates = append(candidates, t)
		}
	}
	// A small catalog can exhaust itself; fall back to the full set
	// rather than refusing to send.
	if len(candidates) == 0 {
		log.Printf("[Catalog] all %d templates in %s recently used, resetting rotation", len(all), category)
		candidates = all
	}

	c.mu.Lock()
	picked := candidates[c.rand.Intn(len(candidates))]
	c.mu.Unlock()
	if err := c.store.RecordTemplateUse(ctx, picked.ID, time.Now().UTC()); err != nil {
		return Template{}, fmt.Errorf("record template use %s: %w", picked.ID, err)
	}
	return picked, nil
}

// Render fills {key} placeholders in a template body.
func Render(t Template, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(t.Body)
}

// trophyLabels maps kinds to the wording used in congratulations.
var trophyLabels = map[scoring.TrophyKind]string{
	scoring.Bronze: "Bronze trophy",
	scoring.Silver: "Silver trophy",
	scoring.Gold:   "Gold trophy",
	scoring.Bonus1: "Stretch bonus (105%)",
	scoring.Bonus2: "Stretch bonus (110%)",
}

// AchievementMessage renders a congratulation for the kinds a seller
// just earned, using a rotating template from the achievement category.
func (c *Catalog) AchievementMessage(ctx context.Context, seller string, kinds []scoring.TrophyKind, points int) (string, error) {
	t, err := c.Pick(ctx, CategoryAchievement)
	if err != nil {
		return "", err
	}

	labels := make([]string, 0, len(kinds))
	for _, k := range scoring.SortKinds(kinds) {
		label, ok := trophyLabels[k]
		if !ok {
			label = string(k)
		}
		labels = append(labels, label)
	}

	return Render(t, map[string]string{
		"seller":   seller,
		"trophies": strings.Join(labels, ", "),
		"points":   fmt.Sprintf("%d", points),
	}), nil
}
