package filters

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/critic-scm/critic/internal/models"
)

// Source distinguishes user-wide repository filters from review-local
// filters. Review filters override repository filters for the same
// (user, path).
type Source string

const (
	SourceRepository Source = "repository"
	SourceReview     Source = "review"
)

// Filter is one normalized path filter, compiled for matching.
type Filter struct {
	Source       Source
	SubjectID    int64
	Path         string
	Type         models.FilterType
	DefaultScope bool
	ScopeIDs     []int64
	DelegateIDs  []int64

	re *regexp.Regexp
}

func New(source Source, subjectID int64, path string, filterType models.FilterType) (*Filter, error) {
	re, err := CompilePath(path)
	if err != nil {
		return nil, fmt.Errorf("compile filter path %q: %w", path, err)
	}
	return &Filter{
		Source:    source,
		SubjectID: subjectID,
		Path:      path,
		Type:      filterType,
		re:        re,
	}, nil
}

func FromRepositoryFilter(f *models.RepositoryFilter) (*Filter, error) {
	filter, err := New(SourceRepository, f.SubjectID, f.Path, f.Type)
	if err != nil {
		return nil, err
	}
	filter.DefaultScope = f.DefaultScope
	filter.ScopeIDs = f.ScopeIDs
	filter.DelegateIDs = f.DelegateIDs
	return filter, nil
}

func FromReviewFilter(f *models.ReviewFilter) (*Filter, error) {
	filter, err := New(SourceReview, f.SubjectID, f.Path, f.Type)
	if err != nil {
		return nil, err
	}
	filter.DefaultScope = f.DefaultScope
	filter.ScopeIDs = f.ScopeIDs
	return filter, nil
}

func (f *Filter) Matches(path string) bool { return f.re.MatchString(path) }

// Normalize drops repository filters shadowed by a review filter with
// the same subject and path, and sorts ascending by specificity so
// more specific filters apply later and win.
func Normalize(all []*Filter) []*Filter {
	type key struct {
		subject int64
		path    string
	}
	overridden := make(map[key]bool)
	for _, f := range all {
		if f.Source == SourceReview {
			overridden[key{f.SubjectID, f.Path}] = true
		}
	}
	kept := make([]*Filter, 0, len(all))
	for _, f := range all {
		if f.Source == SourceRepository && overridden[key{f.SubjectID, f.Path}] {
			continue
		}
		kept = append(kept, f)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return MoreSpecific(kept[j].Path, kept[i].Path)
	})
	return kept
}
