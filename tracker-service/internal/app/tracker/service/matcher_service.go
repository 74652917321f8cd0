package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"pricetrack/tracker-service/internal/app/tracker/entity"
	"pricetrack/tracker-service/internal/app/tracker/repository"

	"pricetrack/pkg/logger"
	"pricetrack/pkg/metrics"
)

var (
	// ErrSourceConflict is returned when an assignment would put two
	// products of the same source into one group.
	ErrSourceConflict = errors.New("group already has a product from this source")
)

const serviceName = "tracker"

// groupCacheTTL bounds staleness of the cached group listing between
// invalidations.
const groupCacheTTL = 10 * time.Minute

// MatcherService builds and curates equivalence groups. Automatic passes
// are serialized: at most one runs at a time, and manual assignments wait
// for a running pass to finish.
type MatcherService struct {
	groupRepo   repository.GroupRepository
	catalogRepo repository.CatalogRepository
	scorer      Scorer
	cache       GroupCache // nil when caching is disabled
	threshold   int

	mu sync.Mutex
}

// NewMatcherService creates the matcher. threshold is the minimum
// inclusive score for an automatic assignment.
func NewMatcherService(groupRepo repository.GroupRepository, catalogRepo repository.CatalogRepository, scorer Scorer, cache GroupCache, threshold int) *MatcherService {
	return &MatcherService{
		groupRepo:   groupRepo,
		catalogRepo: catalogRepo,
		scorer:      scorer,
		cache:       cache,
		threshold:   threshold,
	}
}

// AssignManual places a product into a group as a manual member, creating
// the group first when req.GroupID is zero. Manual memberships are
// permanent: automatic passes never move or remove them.
func (s *MatcherService) AssignManual(ctx context.Context, req entity.AssignManualRequest) (*entity.EquivalenceGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, err := s.catalogRepo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	var group *entity.EquivalenceGroup
	if req.GroupID == 0 {
		if req.CanonicalName == "" {
			return nil, fmt.Errorf("%w: canonical_name required to create a group", ErrValidation)
		}
		group = &entity.EquivalenceGroup{
			CanonicalName: req.CanonicalName,
			Origin:        entity.OriginManual,
		}
		if err := s.groupRepo.CreateGroup(ctx, group); err != nil {
			return nil, err
		}
	} else {
		group, err = s.groupRepo.GetGroup(ctx, req.GroupID)
		if err != nil {
			return nil, err
		}
		for _, m := range group.Members {
			if m.SourceID == product.SourceID && m.ProductID != product.ID {
				return nil, ErrSourceConflict
			}
		}
	}

	member := &entity.GroupMember{
		GroupID:   group.ID,
		ProductID: product.ID,
		SourceID:  product.SourceID,
		Origin:    entity.OriginManual,
	}
	if err := s.groupRepo.ReplaceMembership(ctx, member); err != nil {
		return nil, err
	}
	// a manually curated group stays manual even if it started automatic
	if group.Origin != entity.OriginManual {
		if err := s.groupRepo.UpdateGroupOrigin(ctx, group.ID, entity.OriginManual); err != nil {
			return nil, err
		}
	}

	s.invalidateGroupCache(ctx)
	return s.groupRepo.GetGroup(ctx, group.ID)
}

// Unassign removes a product's membership, manual or automatic.
func (s *MatcherService) Unassign(ctx context.Context, productID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.groupRepo.RemoveMembership(ctx, productID); err != nil {
		return err
	}
	s.invalidateGroupCache(ctx)
	return nil
}

// ListGroups serves the group listing, cache first.
func (s *MatcherService) ListGroups(ctx context.Context) ([]entity.GroupSummary, error) {
	if s.cache != nil {
		cached, err := s.cache.GetGroups(ctx)
		if err != nil {
			metrics.RecordCacheError(serviceName, "get_groups")
		} else if cached != nil {
			metrics.RecordCacheHit(serviceName, "groups")
			return cached, nil
		} else {
			metrics.RecordCacheMiss(serviceName, "groups")
		}
	}

	groups, err := s.groupRepo.ListGroups(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && groups != nil {
		if err := s.cache.SetGroups(ctx, groups, groupCacheTTL); err != nil {
			metrics.RecordCacheError(serviceName, "set_groups")
		}
	}
	return groups, nil
}

// GroupMembers returns one group with its members and their latest prices.
func (s *MatcherService) GroupMembers(ctx context.Context, groupID uint) (*entity.GroupMembersResponse, error) {
	group, err := s.groupRepo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	resp := &entity.GroupMembersResponse{
		GroupID:       group.ID,
		CanonicalName: group.CanonicalName,
		Origin:        group.Origin,
	}
	if len(group.Members) == 0 {
		return resp, nil
	}

	ids := make([]uint, 0, len(group.Members))
	originByProduct := make(map[uint]string, len(group.Members))
	for _, m := range group.Members {
		ids = append(ids, m.ProductID)
		originByProduct[m.ProductID] = m.Origin
	}

	products, err := s.catalogRepo.ProductsWithLatestPrice(ctx, "", ids)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		resp.Members = append(resp.Members, entity.GroupMemberDetail{
			ProductWithPrice: p,
			MemberOrigin:     originByProduct[p.ID],
		})
	}
	return resp, nil
}

// SuggestMatches scores one product against the rest of the catalog and
// returns the best candidates from other sources, best first. Products
// already sharing a group with it are excluded.
func (s *MatcherService) SuggestMatches(ctx context.Context, productID uint, limit int) ([]entity.MatchSuggestion, error) {
	if limit <= 0 {
		limit = 10
	}

	product, err := s.catalogRepo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if _, err := s.scorer.Score(product.Name, product.Name); err != nil {
		return nil, fmt.Errorf("%w: product name is not scorable", ErrValidation)
	}

	memberships, err := s.groupRepo.ListMemberships(ctx)
	if err != nil {
		return nil, err
	}
	groupByProduct := make(map[uint]uint, len(memberships))
	for _, m := range memberships {
		groupByProduct[m.ProductID] = m.GroupID
	}
	ownGroup := groupByProduct[productID]

	others, err := s.catalogRepo.ProductsWithLatestPrice(ctx, "", nil)
	if err != nil {
		return nil, err
	}

	var suggestions []entity.MatchSuggestion
	for _, other := range others {
		if other.ID == productID || other.SourceID == product.SourceID {
			continue
		}
		if ownGroup != 0 && groupByProduct[other.ID] == ownGroup {
			continue
		}
		score, err := s.scorer.Score(product.Name, other.Name)
		if err != nil || score == 0 {
			continue
		}
		suggestions = append(suggestions, entity.MatchSuggestion{Product: other, Score: score})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return suggestions[i].Product.ID < suggestions[j].Product.ID
	})
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// groupState is the matcher's working view of one group during a pass.
type groupState struct {
	id        uint
	canonical string
	members   map[uint]string // productID -> origin
	sources   map[string]uint // sourceID -> productID
}

// RunPass re-evaluates candidate products against all groups. Nil
// candidateIDs means the whole catalog. The pass holds the matcher lock
// from first read to last write, so its view stays consistent.
func (s *MatcherService) RunPass(ctx context.Context, candidateIDs []uint) (*entity.MatchSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer := metrics.NewTimer()
	metrics.MatchingPassesTotal.Inc()

	all, err := s.catalogRepo.ProductsWithLatestPrice(ctx, "", nil)
	if err != nil {
		return nil, err
	}
	productByID := make(map[uint]entity.Product, len(all))
	for _, p := range all {
		productByID[p.ID] = p.Product
	}

	groups, err := s.groupRepo.ListGroupsWithMembers(ctx)
	if err != nil {
		return nil, err
	}
	states := make([]*groupState, 0, len(groups))
	membership := make(map[uint]*groupState)
	for _, g := range groups {
		st := &groupState{
			id:        g.ID,
			canonical: g.CanonicalName,
			members:   make(map[uint]string, len(g.Members)),
			sources:   make(map[string]uint, len(g.Members)),
		}
		for _, m := range g.Members {
			st.members[m.ProductID] = m.Origin
			st.sources[m.SourceID] = m.ProductID
		}
		states = append(states, st)
	}
	for _, st := range states {
		for pid := range st.members {
			membership[pid] = st
		}
	}

	candidates := s.resolveCandidates(candidateIDs, all)
	summary := &entity.MatchSummary{Candidates: len(candidates)}
	changed := false

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := membership[candidate.ID]
		if current != nil && current.members[candidate.ID] == entity.OriginManual {
			continue
		}
		if _, err := s.scorer.Score(candidate.Name, candidate.Name); err != nil {
			summary.SkippedNames++
			metrics.MatchingSkippedNames.Inc()
			continue
		}

		best := s.bestGroup(candidate, states)
		if best != nil {
			if current == best {
				continue
			}
			member := &entity.GroupMember{
				GroupID:   best.id,
				ProductID: candidate.ID,
				SourceID:  candidate.SourceID,
				Origin:    entity.OriginAutomatic,
			}
			if err := s.groupRepo.ReplaceMembership(ctx, member); err != nil {
				return nil, err
			}
			if current != nil {
				delete(current.members, candidate.ID)
				delete(current.sources, candidate.SourceID)
				summary.Revised++
				metrics.MatchingAssignments.WithLabelValues("revised").Inc()
			} else {
				summary.Assigned++
				metrics.MatchingAssignments.WithLabelValues("assigned").Inc()
			}
			best.members[candidate.ID] = entity.OriginAutomatic
			best.sources[candidate.SourceID] = candidate.ID
			membership[candidate.ID] = best
			changed = true
			continue
		}

		// already grouped and nothing better found: leave it where it is
		if current != nil {
			continue
		}

		partner, found := s.bestUngroupedPartner(candidate, all, membership)
		if !found {
			continue
		}

		group := &entity.EquivalenceGroup{
			CanonicalName: canonicalName(candidate.Name, partner.Name),
			Origin:        entity.OriginAutomatic,
		}
		if err := s.groupRepo.CreateGroup(ctx, group); err != nil {
			return nil, err
		}
		st := &groupState{
			id:        group.ID,
			canonical: group.CanonicalName,
			members:   make(map[uint]string, 2),
			sources:   make(map[string]uint, 2),
		}
		for _, p := range []entity.Product{candidate, partner} {
			member := &entity.GroupMember{
				GroupID:   group.ID,
				ProductID: p.ID,
				SourceID:  p.SourceID,
				Origin:    entity.OriginAutomatic,
			}
			if err := s.groupRepo.ReplaceMembership(ctx, member); err != nil {
				return nil, err
			}
			st.members[p.ID] = entity.OriginAutomatic
			st.sources[p.SourceID] = p.ID
			membership[p.ID] = st
			summary.Assigned++
			metrics.MatchingAssignments.WithLabelValues("assigned").Inc()
		}
		states = append(states, st)
		summary.GroupsCreated++
		metrics.MatchingGroupsCreated.Inc()
		changed = true
	}

	if changed {
		s.invalidateGroupCache(ctx)
	}
	metrics.MatchingPassDuration.Observe(timer.Seconds())

	logger.Info().
		Int("candidates", summary.Candidates).
		Int("assigned", summary.Assigned).
		Int("revised", summary.Revised).
		Int("groups_created", summary.GroupsCreated).
		Int("skipped_names", summary.SkippedNames).
		Msg("matching pass finished")
	return summary, nil
}

// resolveCandidates maps candidate ids onto loaded products, ascending by
// id so passes are deterministic. Nil means every product.
func (s *MatcherService) resolveCandidates(candidateIDs []uint, all []entity.ProductWithPrice) []entity.Product {
	var candidates []entity.Product
	if candidateIDs == nil {
		for _, p := range all {
			candidates = append(candidates, p.Product)
		}
	} else {
		wanted := make(map[uint]bool, len(candidateIDs))
		for _, id := range candidateIDs {
			wanted[id] = true
		}
		for _, p := range all {
			if wanted[p.ID] {
				candidates = append(candidates, p.Product)
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates
}

// bestGroup picks the best eligible group at or above the threshold.
// Ties break to the larger group, then the lowest group id.
func (s *MatcherService) bestGroup(candidate entity.Product, states []*groupState) *groupState {
	var best *groupState
	bestScore := -1
	for _, st := range states {
		if holder, ok := st.sources[candidate.SourceID]; ok && holder != candidate.ID {
			continue
		}
		score, err := s.scorer.Score(candidate.Name, st.canonical)
		if err != nil || score < s.threshold {
			continue
		}
		if best == nil ||
			score > bestScore ||
			(score == bestScore && len(st.members) > len(best.members)) ||
			(score == bestScore && len(st.members) == len(best.members) && st.id < best.id) {
			best = st
			bestScore = score
		}
	}
	return best
}

// bestUngroupedPartner finds the closest ungrouped product of another
// source at or above the threshold. Ties break to the lowest product id.
func (s *MatcherService) bestUngroupedPartner(candidate entity.Product, all []entity.ProductWithPrice, membership map[uint]*groupState) (entity.Product, bool) {
	var best entity.Product
	bestScore := -1
	found := false
	for _, other := range all {
		if other.ID == candidate.ID || other.SourceID == candidate.SourceID {
			continue
		}
		if membership[other.ID] != nil {
			continue
		}
		score, err := s.scorer.Score(candidate.Name, other.Name)
		if err != nil || score < s.threshold {
			continue
		}
		if !found || score > bestScore || (score == bestScore && other.ID < best.ID) {
			best = other.Product
			bestScore = score
			found = true
		}
	}
	return best, found
}

// canonicalName picks the new group's display name: the shorter of the
// two member names, lexicographic on equal length.
func canonicalName(a, b string) string {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return a
		}
		return b
	}
	if a <= b {
		return a
	}
	return b
}

func (s *MatcherService) invalidateGroupCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteGroups(ctx); err != nil {
		metrics.RecordCacheError(serviceName, "delete_groups")
		logger.Warn().Err(err).Msg("failed to invalidate group cache")
	}
}
