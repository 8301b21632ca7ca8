package app

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"hostel_finder/internal/adapters/observability"
	"hostel_finder/internal/domain"
)

// Submit creates a hostel, or replaces editing's fields and room types.
// Steps run in order: upload the first image, write parent and children as one
// unit, refresh. A nil error is success; on failure nothing further is applied
// and an uploaded image is discarded.
func (s *HostelService) Submit(ctx context.Context, in domain.HostelInput, images []domain.ImageFile, editing *domain.HostelView) error {
	key := "submit:new:" + strings.ToLower(strings.TrimSpace(in.Name))
	if editing != nil {
		key = "submit:" + editing.ID
	}
	release, err := s.guard.acquire(key)
	if err != nil {
		return domain.SaveError(err)
	}
	defer release()

	// only the first accepted image is kept as the thumbnail
	var thumbnail *string
	if batch := s.images.FilterBatch(images); len(batch) > 0 {
		url, err := s.images.Upload(ctx, batch[0])
		if err != nil {
			observability.ObserveMutation("submit", "upload_error")
			return err
		}
		thumbnail = &url
	}

	rec := domain.HostelRecord{
		Name:         in.Name,
		Description:  copyStr(in.Description),
		Price:        in.StartingPrice(),
		OwnerName:    in.OwnerName,
		OwnerContact: in.OwnerContact,
		Thumbnail:    thumbnail,
	}
	rts := make([]domain.RoomTypeRecord, 0, len(in.RoomPrices))
	for _, rp := range in.RoomPrices {
		rts = append(rts, domain.RoomTypeRecord{RoomType: rp.RoomType, Price: rp.Price})
	}

	// parent and children in one transaction
	if editing != nil {
		rec.ID = editing.ID
		rec.AvailableRooms = editing.AvailableRooms
		if rec.Thumbnail == nil {
			rec.Thumbnail = ptrStr(editing.Thumbnail)
		}
		err = s.repo.ReplaceHostel(ctx, rec, rts)
	} else {
		rec.ID, err = s.repo.CreateHostel(ctx, rec, rts)
	}
	if err != nil {
		// the transaction rolled back; drop the orphaned upload
		if thumbnail != nil {
			if derr := s.images.Discard(ctx, *thumbnail); derr != nil {
				log.Warn().Err(derr).Str("url", *thumbnail).Msg("discarding orphaned image failed")
			}
		}
		observability.ObserveMutation("submit", "save_error")
		return domain.SaveError(err)
	}

	// a replaced thumbnail is no longer referenced
	if editing != nil && thumbnail != nil && editing.Thumbnail != "" && editing.Thumbnail != *thumbnail {
		if derr := s.images.Discard(ctx, editing.Thumbnail); derr != nil {
			log.Warn().Err(derr).Str("url", editing.Thumbnail).Msg("discarding replaced image failed")
		}
	}

	observability.ObserveMutation("submit", "ok")
	log.Info().Str("id", rec.ID).Bool("update", editing != nil).Int("room_types", len(rts)).Msg("hostel saved")
	s.refresh(ctx)
	return nil
}

// Delete removes a hostel; its room types go with it through the foreign key.
func (s *HostelService) Delete(ctx context.Context, id string) error {
	release, err := s.guard.acquire("delete:" + id)
	if err != nil {
		return domain.DeleteError(err)
	}
	defer release()

	if err := s.repo.DeleteHostel(ctx, id); err != nil {
		observability.ObserveMutation("delete", "error")
		return domain.DeleteError(err)
	}
	observability.ObserveMutation("delete", "ok")
	log.Info().Str("id", id).Msg("hostel deleted")
	s.refresh(ctx)
	return nil
}
