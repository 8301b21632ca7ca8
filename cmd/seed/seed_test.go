package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostel_finder/internal/domain"
)

const sample = `
admins:
  - email: admin@example.com
    password: s3cret-pass
hostels:
  - name: Sunshine Hostel
    description: Near the beach
    owner_name: Ama
    owner_contact: "0241234567"
    room_prices:
      single: 450
      Double: 300.5
  - name: Royal Lodge
    owner_name: Kofi
    owner_contact: "0209876543"
    room_prices:
      quad: 120
    image: images/royal.jpg
`

func TestLoadSeed(t *testing.T) {
	f, err := loadSeed(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, f.Admins, 1)
	assert.Equal(t, "admin@example.com", f.Admins[0].Email)
	require.Len(t, f.Hostels, 2)
	assert.Equal(t, 300.5, f.Hostels[0].RoomPrices["Double"])
	assert.Equal(t, "images/royal.jpg", f.Hostels[1].Image)
}

func TestLoadSeed_UnknownField(t *testing.T) {
	_, err := loadSeed(strings.NewReader("hostels:\n  - nme: typo\n"))
	assert.Error(t, err)
}

func TestLoadSeed_Empty(t *testing.T) {
	f, err := loadSeed(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Hostels)
}

func TestFormValues_NormalisesRoomTypes(t *testing.T) {
	h := seedHostel{Name: "X", RoomPrices: map[string]float64{"Single": 450, "Double": 300.5}}
	v := h.formValues()
	assert.Equal(t, []domain.RoomType{domain.RoomType("double"), domain.RoomType("single")}, v.RoomTypes)
	assert.Equal(t, "450", v.RoomPrices[domain.RoomType("single")])
	assert.Equal(t, "300.5", v.RoomPrices[domain.RoomType("double")])
}

type fakeSubmitter struct {
	mu      sync.Mutex
	names   []string
	images  map[string]int
	fail    string
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (f *fakeSubmitter) Submit(_ context.Context, in domain.HostelInput, images []domain.ImageFile, editing *domain.HostelView) error {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	if editing != nil {
		return errors.New("seed must only create")
	}
	if in.Name == f.fail {
		return errors.New("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, in.Name)
	if f.images == nil {
		f.images = map[string]int{}
	}
	f.images[in.Name] = len(images)
	return nil
}

func validHostel(name string) seedHostel {
	return seedHostel{
		Name:         name,
		OwnerName:    "Owner",
		OwnerContact: "0241234567",
		RoomPrices:   map[string]float64{"single": 100},
	}
}

func TestSeedHostels_BoundedAndCounted(t *testing.T) {
	var hostels []seedHostel
	for _, n := range []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot"} {
		hostels = append(hostels, validHostel(n))
	}
	invalid := validHostel("Z")
	invalid.OwnerContact = "123"
	hostels = append(hostels, invalid)

	sub := &fakeSubmitter{fail: "Charlie"}
	failed := seedHostels(context.Background(), sub, hostels, t.TempDir(), 2)

	assert.Equal(t, 2, failed)
	sort.Strings(sub.names)
	assert.Equal(t, []string{"Alpha", "Bravo", "Delta", "Echo", "Foxtrot"}, sub.names)
	assert.LessOrEqual(t, sub.maxSeen.Load(), int32(2))
}

func TestSeedHostels_ResolvesImageRelativeToSeedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "images", "a.jpg"), []byte{0xFF, 0xD8, 0xFF}, 0o644))

	withImage := validHostel("With")
	withImage.Image = "images/a.jpg"
	missing := validHostel("Missing")
	missing.Image = "images/none.jpg"

	sub := &fakeSubmitter{}
	failed := seedHostels(context.Background(), sub, []seedHostel{withImage, missing}, dir, 1)

	assert.Zero(t, failed)
	assert.Equal(t, 1, sub.images["With"])
	assert.Equal(t, 0, sub.images["Missing"])
}

type fakeUsers struct {
	byEmail map[string]domain.User
	granted []string
}

func (f *fakeUsers) FindUserByEmail(_ context.Context, email string) (domain.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GrantAdmin(_ context.Context, id string) error {
	f.granted = append(f.granted, id)
	return nil
}

type fakeRegistrar struct{ registered []string }

func (f *fakeRegistrar) Register(_ context.Context, email, _ string) (string, error) {
	f.registered = append(f.registered, email)
	return "new-" + email, nil
}

func TestSeedAdmins(t *testing.T) {
	users := &fakeUsers{byEmail: map[string]domain.User{"old@example.com": {ID: "u-1"}}}
	reg := &fakeRegistrar{}

	err := seedAdmins(context.Background(), users, reg, []seedAdmin{
		{Email: "old@example.com"},
		{Email: "new@example.com", Password: "s3cret-pass"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"new@example.com"}, reg.registered)
	assert.Equal(t, []string{"u-1", "new-new@example.com"}, users.granted)
}

func TestSeedAdmins_NewUserNeedsPassword(t *testing.T) {
	err := seedAdmins(context.Background(), &fakeUsers{}, &fakeRegistrar{}, []seedAdmin{{Email: "x@example.com"}})
	assert.ErrorContains(t, err, "password required")
}
