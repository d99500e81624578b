package index

import "github.com/pkg/errors"

// History walks the chain of indices starting at idx and following
// PrevIdxHash backwards, stopping after at most max indices (or at the
// root index, whose PrevIdxHash is empty). max <= 0 means unbounded.
// This is the supplemented rollback-inspection feature the original
// tool exposed via a separate CLI; here it is a plain library
// function any caller (including a future admin CLI) can use.
func (idx *Index) History(max int, s storeCat) ([]*Index, error) {
	chain := []*Index{idx}
	current := idx
	for current.PrevIdxHash != "" {
		if max > 0 && len(chain) >= max {
			break
		}
		next, err := loadFromHash(current.PrevIdxHash, s)
		if err != nil {
			return nil, errors.Wrapf(err, "index: walking history at %s", current.PrevIdxHash)
		}
		chain = append(chain, next)
		current = next
	}
	return chain, nil
}

// storeCat is the subset of store.Store History needs.
type storeCat interface {
	Cat(hash string) ([]byte, error)
}
