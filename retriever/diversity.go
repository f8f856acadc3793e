// Greedy author/source-domain diversity pass over a fused, sorted result
// list - spec.md §4.3 step 8. A pure function over []Scored for testability.
package retriever

import "net/url"

const (
	maxAuthorShare = 0.30
	maxDomainShare = 0.40
	minReplacementRatio = 0.85
)

// postDomain derives a "source-domain" for a post: the host of its first
// media URL if present, falling back to the author handle. Posts have no
// explicit URL field, so this is the most direct stand-in for "where this
// content is from" available on the type.
func postDomain(s Scored) string {
	for _, m := range s.Post.MediaURLs {
		if u, err := url.Parse(m); err == nil && len(u.Host) > 0 {
			return u.Host
		}
	}
	return s.Post.Author
}

// Diversify applies the greedy cap-respecting pass: walking ranked candidates
// best-first, a candidate that would push its author above maxAuthorShare or
// its source-domain above maxDomainShare of limit results is rejected
// (skipped, not dropped entirely) PROVIDED some later, still-eligible
// candidate scores at least minReplacementRatio of the best remaining
// score - i.e. diversity is only enforced when it doesn't cost much quality.
// Otherwise the cap is waived for this slot rather than returning fewer than
// limit results.
func Diversify(ranked []Scored, limit int) []Scored {
	if limit <= 0 || len(ranked) <= limit {
		return ranked
	}

	authorCount := map[string]int{}
	domainCount := map[string]int{}
	out := make([]Scored, 0, limit)
	skipped := make([]Scored, 0)

	capFor := func(share float64) int {
		n := int(share * float64(limit))
		if n < 1 {
			n = 1
		}
		return n
	}
	authorCap := capFor(maxAuthorShare)
	domainCap := capFor(maxDomainShare)

	eligible := func(c Scored) bool {
		return authorCount[c.Post.Author] < authorCap && domainCount[postDomain(c)] < domainCap
	}

	for i, cand := range ranked {
		if len(out) == limit {
			break
		}

		if !eligible(cand) {
			bestRemaining := bestEligibleScoreAfter(ranked[i+1:], eligible)
			if bestRemaining >= minReplacementRatio*cand.FusedScore {
				skipped = append(skipped, cand)
				continue
			}
		}

		out = append(out, cand)
		authorCount[cand.Post.Author]++
		domainCount[postDomain(cand)]++
	}

	// If caps left us short (no feasible replacement existed for some
	// skipped candidates), backfill from skipped in rank order.
	for _, cand := range skipped {
		if len(out) == limit {
			break
		}
		out = append(out, cand)
		authorCount[cand.Post.Author]++
		domainCount[postDomain(cand)]++
	}

	return out
}

// bestEligibleScoreAfter returns the highest FusedScore among rest that
// still satisfies eligible, used as "best_remaining" for the 0.85 ratio
// test: a rejected candidate must be replaceable by something nearly as
// good, not merely by anything at all.
func bestEligibleScoreAfter(rest []Scored, eligible func(Scored) bool) float64 {
	best := 0.0
	for _, c := range rest {
		if eligible(c) && c.FusedScore > best {
			best = c.FusedScore
		}
	}
	return best
}
