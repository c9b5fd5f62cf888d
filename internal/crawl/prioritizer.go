package crawl

import (
	"sort"
	"strings"
)

// Keywords that mark documentation entry points; pages matching them are
// processed before deep reference material.
var entryKeywords = []string{
	"index",
	"readme",
	"getting-started",
	"quickstart",
	"overview",
	"guide",
	"introduction",
}

// Path suffixes that are almost never convertible documentation.
var assetSuffixes = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico",
	".css", ".js", ".zip", ".tar.gz", ".pdf",
}

// Prioritizer assigns a deterministic priority score to each discovered URL.
// The output is always a permutation of the input: nothing added, nothing
// dropped.
type Prioritizer struct{}

// NewPrioritizer constructs a Prioritizer.
func NewPrioritizer() *Prioritizer {
	return &Prioritizer{}
}

// Prioritize scores the URLs and returns pending tasks stably ordered by
// descending priority. Equal-priority URLs keep their discovery order; the
// stable sort is deliberate and load-bearing, not an implementation accident.
func (p *Prioritizer) Prioritize(urls []string) []PageTask {
	tasks := make([]PageTask, len(urls))
	for i, u := range urls {
		tasks[i] = PageTask{
			URL:      u,
			Priority: p.Score(u),
			State:    TaskPending,
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority > tasks[j].Priority
	})
	return tasks
}

// Score computes the priority for a single URL. Shallow paths rank above deep
// ones, documentation entry points get a boost, and asset paths sink to the
// bottom.
func (p *Prioritizer) Score(rawURL string) float64 {
	u, err := parseURL(rawURL)
	if err != nil {
		return 0
	}
	path := strings.ToLower(strings.Trim(u.Path, "/"))

	score := 1.0
	if path != "" {
		depth := strings.Count(path, "/") + 1
		score -= 0.1 * float64(depth)
	}
	for _, kw := range entryKeywords {
		if strings.Contains(path, kw) {
			score += 0.5
			break
		}
	}
	for _, suffix := range assetSuffixes {
		if strings.HasSuffix(path, suffix) {
			score -= 2.0
			break
		}
	}
	return score
}
