package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hostel_finder/internal/domain"
)

const (
	listCacheKey = "hostels:list"
	listGenKey   = "hostels:list:gen"
)

// cachedList is stamped with the generation current when its load started; a
// list whose stamp no longer matches was read before a mutation and is ignored.
type cachedList struct {
	Gen     string              `json:"gen"`
	Hostels []domain.HostelView `json:"hostels"`
}

// HostelService runs the hostel read and write operations against the
// repository, the cache and the image uploader.
type HostelService struct {
	repo     domain.HostelRepository
	cache    domain.Cache
	cacheTTL time.Duration
	images   *ImageUploader
	guard    *inFlight
	newGen   func() string
}

func NewHostelService(r domain.HostelRepository, c domain.Cache, ttl time.Duration, images *ImageUploader) *HostelService {
	return &HostelService{repo: r, cache: c, cacheTTL: ttl, images: images, guard: newInFlight(), newGen: uuid.NewString}
}

// List returns every hostel with its room types, newest first.
// A failure of either query fails the whole call.
func (s *HostelService) List(ctx context.Context) ([]domain.HostelView, error) {
	gen := s.generation(ctx)
	var cached cachedList
	if ok, _ := s.cache.Get(ctx, listCacheKey, &cached); ok && cached.Gen == gen {
		return cached.Hostels, nil
	}

	out, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, listCacheKey, cachedList{Gen: gen, Hostels: out}, int(s.cacheTTL.Seconds()))
	return deepCopyViews(out), nil
}

// generation lives in the cache so every process sharing it agrees on it.
func (s *HostelService) generation(ctx context.Context) string {
	var gen string
	_, _ = s.cache.Get(ctx, listGenKey, &gen)
	return gen
}

func (s *HostelService) load(ctx context.Context) ([]domain.HostelView, error) {
	hs, err := s.repo.ListHostels(ctx)
	if err != nil {
		return nil, domain.FetchError("fetch hostels", err)
	}
	ids := make([]string, len(hs))
	for i, h := range hs {
		ids[i] = h.ID
	}
	rts, err := s.repo.ListRoomTypes(ctx, ids)
	if err != nil {
		return nil, domain.FetchError("fetch room types", err)
	}

	byHostel := make(map[string][]domain.RoomTypeRecord, len(hs))
	for _, rt := range rts {
		byHostel[rt.HostelID] = append(byHostel[rt.HostelID], rt)
	}
	out := make([]domain.HostelView, 0, len(hs))
	for _, h := range hs {
		h.RoomTypes = byHostel[h.ID]
		out = append(out, ToPresentation(h))
	}
	return out, nil
}

// Get returns one hostel with its room types.
func (s *HostelService) Get(ctx context.Context, id string) (domain.HostelView, error) {
	h, err := s.repo.GetHostel(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.HostelView{}, domain.FetchError("fetch hostel", fmt.Errorf("hostel %s: %w", id, err))
		}
		return domain.HostelView{}, domain.FetchError("fetch hostel", err)
	}
	rts, err := s.repo.ListRoomTypes(ctx, []string{id})
	if err != nil {
		return domain.HostelView{}, domain.FetchError("fetch room types", err)
	}
	h.RoomTypes = rts
	return ToPresentation(h), nil
}

// refresh bumps the list generation, drops the cached list and reloads it so
// readers see the mutation. Loads that started earlier can no longer be served.
func (s *HostelService) refresh(ctx context.Context) {
	if err := s.cache.Set(ctx, listGenKey, s.newGen(), 0); err != nil {
		log.Warn().Err(err).Msg("hostel list generation bump failed")
	}
	if err := s.cache.Del(ctx, listCacheKey); err != nil {
		log.Warn().Err(err).Msg("hostel list cache invalidation failed")
	}
	if _, err := s.List(ctx); err != nil {
		log.Warn().Err(err).Msg("hostel list refresh failed")
	}
}

// deepCopyViews keeps callers from mutating a value that may also sit in an in-process cache.
func deepCopyViews(in []domain.HostelView) []domain.HostelView {
	out := make([]domain.HostelView, len(in))
	for i, v := range in {
		out[i] = v
		out[i].Description = copyStr(v.Description)
		out[i].RoomTypes = append([]domain.RoomTypeView(nil), v.RoomTypes...)
	}
	return out
}
