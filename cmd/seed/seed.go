package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"gopkg.in/yaml.v3"

	"hostel_finder/internal/app"
	"hostel_finder/internal/domain"
)

type seedFile struct {
	Admins  []seedAdmin  `yaml:"admins"`
	Hostels []seedHostel `yaml:"hostels"`
}

type seedAdmin struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type seedHostel struct {
	Name         string             `yaml:"name"`
	Description  string             `yaml:"description"`
	OwnerName    string             `yaml:"owner_name"`
	OwnerContact string             `yaml:"owner_contact"`
	RoomPrices   map[string]float64 `yaml:"room_prices"`
	// Image is relative to the seed file.
	Image string `yaml:"image"`
}

func loadSeed(r io.Reader) (seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return seedFile{}, fmt.Errorf("decode seed: %w", err)
	}
	return f, nil
}

// formValues maps a seed entry onto the hostel form's field set.
func (h seedHostel) formValues() app.FormValues {
	v := app.FormValues{
		Name:         h.Name,
		Description:  h.Description,
		OwnerName:    h.OwnerName,
		OwnerContact: h.OwnerContact,
		RoomPrices:   map[domain.RoomType]string{},
	}
	labels := make([]string, 0, len(h.RoomPrices))
	for l := range h.RoomPrices {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		// unknown labels pass through and are rejected by the form
		t, _ := domain.ParseRoomType(l)
		v.RoomTypes = append(v.RoomTypes, t)
		v.RoomPrices[t] = strconv.FormatFloat(h.RoomPrices[l], 'f', -1, 64)
	}
	return v
}

func (h seedHostel) images(baseDir string) []domain.ImageFile {
	if h.Image == "" {
		return nil
	}
	p := h.Image
	if !filepath.IsAbs(p) {
		p = filepath.Join(baseDir, p)
	}
	st, err := os.Stat(p)
	if err != nil {
		log.Warn().Err(err).Str("hostel", h.Name).Msg("seed image skipped")
		return nil
	}
	return []domain.ImageFile{{
		Name: filepath.Base(p),
		Size: st.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(p) },
	}}
}

type submitter interface {
	Submit(ctx context.Context, in domain.HostelInput, images []domain.ImageFile, editing *domain.HostelView) error
}

// seedHostels validates every entry through the hostel form and submits the valid
// ones with at most workers in flight. It returns how many failed.
func seedHostels(ctx context.Context, svc submitter, hostels []seedHostel, baseDir string, workers int) int {
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	var failed atomic.Int32

	for _, h := range hostels {
		form := app.NewHostelForm()
		form.Open(nil)
		if err := form.Bind(h.formValues()); err != nil {
			log.Warn().Err(err).Str("hostel", h.Name).Msg("seed entry rejected")
			failed.Add(1)
			continue
		}
		in, err := form.Submission()
		if err != nil {
			log.Warn().Err(err).Str("hostel", h.Name).Msg("seed entry rejected")
			failed.Add(1)
			continue
		}

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Error().Err(err).Msg("semaphore acquire failed")
			failed.Add(1)
			break
		}
		wg.Add(1)
		go func(h seedHostel, in domain.HostelInput) {
			defer wg.Done()
			defer sem.Release(1)
			if err := svc.Submit(ctx, in, h.images(baseDir), nil); err != nil {
				log.Warn().Err(err).Str("hostel", h.Name).Msg("seed submit failed")
				failed.Add(1)
				return
			}
			log.Info().Str("hostel", h.Name).Msg("seeded")
		}(h, in)
	}
	wg.Wait()
	return int(failed.Load())
}

type adminStore interface {
	FindUserByEmail(ctx context.Context, email string) (domain.User, error)
	GrantAdmin(ctx context.Context, userID string) error
}

type registrar interface {
	Register(ctx context.Context, email, password string) (string, error)
}

// seedAdmins creates missing users and makes every listed user an admin.
func seedAdmins(ctx context.Context, users adminStore, reg registrar, admins []seedAdmin) error {
	for _, a := range admins {
		u, err := users.FindUserByEmail(ctx, a.Email)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			if a.Password == "" {
				return fmt.Errorf("admin %s: password required for a new user", a.Email)
			}
			id, err := reg.Register(ctx, a.Email, a.Password)
			if err != nil {
				return fmt.Errorf("admin %s: %w", a.Email, err)
			}
			u.ID = id
		case err != nil:
			return fmt.Errorf("admin %s: %w", a.Email, err)
		}
		if err := users.GrantAdmin(ctx, u.ID); err != nil {
			return fmt.Errorf("admin %s: %w", a.Email, err)
		}
		log.Info().Str("email", a.Email).Msg("admin ready")
	}
	return nil
}
