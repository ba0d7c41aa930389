// Package match scores advertised capabilities against free-text task
// descriptions. Scoring is lexical: tag hits weigh more than name or
// description hits, and scores are normalized to [0,1]. Ordering is
// deterministic for equal scores.
package match

import (
	"sort"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"

	"agora/internal/protocol"
)

const (
	tagWeight  = 3.0
	wordWeight = 1.0

	tokenCacheSize = 256
)

// Match is one ranked candidate: a capability of an agent that overlaps the
// task text, with its normalized score.
type Match struct {
	Manifest *protocol.AgentManifest
	SkillID  string
	Action   string
	Score    float64
}

type capTokens struct {
	skillID string
	action  string
	tags    map[string]struct{}
	words   map[string]struct{}
}

// Matcher ranks capabilities. It memoizes tokenized capability text keyed by
// manifest fingerprint; manifests themselves are re-read by the caller on
// every call, the cache only skips re-tokenizing content that has not
// changed.
type Matcher struct {
	tokens *lru.Cache[string, []capTokens]
}

func New() *Matcher {
	cache, _ := lru.New[string, []capTokens](tokenCacheSize)
	return &Matcher{tokens: cache}
}

// Rank scores every capability of every given manifest against the task text
// and returns candidates with score > 0, descending by score. Ties break by
// total_actions descending, then agent_id ascending.
func (m *Matcher) Rank(manifests []*protocol.AgentManifest, task string) []Match {
	query := tokenize(task)
	if len(query) == 0 {
		return nil
	}

	var out []Match
	for _, manifest := range manifests {
		for _, ct := range m.capTokens(manifest) {
			raw := 0.0
			for tok := range query {
				if _, ok := ct.tags[tok]; ok {
					raw += tagWeight
				} else if _, ok := ct.words[tok]; ok {
					raw += wordWeight
				}
			}
			if raw == 0 {
				continue
			}
			score := raw / (tagWeight * float64(len(query)))
			if score > 1 {
				score = 1
			}
			out = append(out, Match{
				Manifest: manifest,
				SkillID:  ct.skillID,
				Action:   ct.action,
				Score:    score,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Manifest.TotalActions != out[j].Manifest.TotalActions {
			return out[i].Manifest.TotalActions > out[j].Manifest.TotalActions
		}
		return out[i].Manifest.Identity.AgentID < out[j].Manifest.Identity.AgentID
	})
	return out
}

func (m *Matcher) capTokens(manifest *protocol.AgentManifest) []capTokens {
	key := manifest.Fingerprint()
	if key != "" {
		if cached, ok := m.tokens.Get(key); ok {
			return cached
		}
	}

	var caps []capTokens
	for _, group := range manifest.Capabilities {
		for _, action := range group.Actions {
			ct := capTokens{
				skillID: group.SkillID,
				action:  action.Name,
				tags:    make(map[string]struct{}),
				words:   make(map[string]struct{}),
			}
			for _, tag := range action.Tags {
				for tok := range tokenize(tag) {
					ct.tags[tok] = struct{}{}
				}
			}
			for tok := range tokenize(action.Name + " " + action.Description) {
				ct.words[tok] = struct{}{}
			}
			caps = append(caps, ct)
		}
	}
	if key != "" {
		m.tokens.Add(key, caps)
	}
	return caps
}

func tokenize(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}
