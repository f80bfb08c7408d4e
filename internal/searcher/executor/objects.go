package executor

// objectGrams maps every byte trigram of a lowercased object full name to the
// ascending positions, in Executor.objects, of the objects containing it.
// Object terms match as substrings, so an object can only match a term if it
// holds all of the term's trigrams.
type objectGrams map[string][]int

func newObjectGrams(objects []object) objectGrams {
	grams := make(objectGrams)
	for i, obj := range objects {
		name := obj.lowerFull
		for j := 0; j+3 <= len(name); j++ {
			g := name[j : j+3]
			list := grams[g]
			if n := len(list); n > 0 && list[n-1] == i {
				continue
			}
			grams[g] = append(list, i)
		}
	}
	return grams
}

// candidates returns the positions of objects holding every trigram of
// words. ok is false when no word is long enough to have a trigram, in which
// case every object is a candidate.
func (g objectGrams) candidates(words []string) (ids []int, ok bool) {
	for _, w := range words {
		for j := 0; j+3 <= len(w); j++ {
			list, found := g[w[j:j+3]]
			if !found {
				return nil, true
			}
			if !ok {
				ids, ok = append([]int(nil), list...), true
				continue
			}
			if ids = intersectSorted(ids, list); len(ids) == 0 {
				return nil, true
			}
		}
	}
	return ids, ok
}

// intersectSorted keeps the values of a also in b, reusing a's storage.
func intersectSorted(a, b []int) []int {
	out := a[:0]
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
