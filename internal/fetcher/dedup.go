package fetcher

import (
	"sort"

	"reelcast/internal/textutil"
)

// dedupBatch keeps one candidate per content hash. The survivor is the one
// from the most trusted source; ties go to the earlier publish date, then to
// the source name that sorts first. Order of first appearance is preserved.
func dedupBatch(candidates []candidate) (kept, dropped []candidate) {
	index := make(map[string]int, len(candidates))
	for _, c := range candidates {
		pos, seen := index[c.item.ContentHash]
		if !seen {
			index[c.item.ContentHash] = len(kept)
			kept = append(kept, c)
			continue
		}
		if preferred(c, kept[pos]) {
			dropped = append(dropped, kept[pos])
			kept[pos] = c
			continue
		}
		dropped = append(dropped, c)
	}
	return kept, dropped
}

func preferred(a, b candidate) bool {
	at, bt := a.item.Source.TrustWeight, b.item.Source.TrustWeight
	if at != bt {
		return at > bt
	}
	ad, bd := a.item.PublishDate, b.item.PublishDate
	if !ad.Equal(bd) {
		switch {
		case ad.IsZero():
			return false
		case bd.IsZero():
			return true
		default:
			return ad.Before(bd)
		}
	}
	return a.item.Source.Name < b.item.Source.Name
}

// dedupSimilar drops candidates whose title and body are at least threshold
// cosine-similar by term frequency to a preferred candidate. It catches
// the same story reworded by different sources, which hashing cannot.
func dedupSimilar(candidates []candidate, threshold float64) (kept, dropped []candidate) {
	if threshold <= 0 || len(candidates) < 2 {
		return candidates, nil
	}
	prints := make([]*textutil.Fingerprint, len(candidates))
	for i, c := range candidates {
		prints[i] = textutil.NewFingerprint(c.item.Title + " " + c.item.Body)
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return preferred(candidates[order[a]], candidates[order[b]])
	})

	drop := make([]bool, len(candidates))
	var survivors []int
	for _, i := range order {
		for _, s := range survivors {
			if textutil.CosineSimilarity(prints[i], prints[s]) >= threshold {
				drop[i] = true
				break
			}
		}
		if !drop[i] {
			survivors = append(survivors, i)
		}
	}
	for i, c := range candidates {
		if drop[i] {
			dropped = append(dropped, c)
		} else {
			kept = append(kept, c)
		}
	}
	return kept, dropped
}
