package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"hostel_finder/internal/domain"
)

// ---- repo ----

type fakeRepo struct {
	mu      sync.Mutex
	hostels map[string]domain.HostelRecord
	rts     map[string][]domain.RoomTypeRecord
	seq     int

	listCalls int
	listErr   error
	rtErr     error
	saveErr   error
	deleteErr error

	// when set, writes signal entered and wait on block
	entered chan struct{}
	block   chan struct{}

	// called before the room-type query, outside the lock
	beforeRoomTypes func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{hostels: map[string]domain.HostelRecord{}, rts: map[string][]domain.RoomTypeRecord{}}
}

func (f *fakeRepo) seed(h domain.HostelRecord, rts ...domain.RoomTypeRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Unix(int64(f.seq), 0)
	}
	f.hostels[h.ID] = h
	for i := range rts {
		rts[i].HostelID = h.ID
		if rts[i].ID == "" {
			rts[i].ID = h.ID + "-" + string(rts[i].RoomType)
		}
	}
	f.rts[h.ID] = rts
}

func (f *fakeRepo) ListHostels(ctx context.Context) ([]domain.HostelRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.HostelRecord, 0, len(f.hostels))
	for _, h := range f.hostels {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRepo) ListRoomTypes(ctx context.Context, ids []string) ([]domain.RoomTypeRecord, error) {
	if f.beforeRoomTypes != nil {
		f.beforeRoomTypes()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rtErr != nil {
		return nil, f.rtErr
	}
	var out []domain.RoomTypeRecord
	for _, id := range ids {
		out = append(out, f.rts[id]...)
	}
	return out, nil
}

func (f *fakeRepo) GetHostel(ctx context.Context, id string) (domain.HostelRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hostels[id]
	if !ok {
		return domain.HostelRecord{}, domain.ErrNotFound
	}
	return h, nil
}

func (f *fakeRepo) wait() {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.block
	}
}

func (f *fakeRepo) CreateHostel(ctx context.Context, h domain.HostelRecord, rts []domain.RoomTypeRecord) (string, error) {
	f.wait()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.mu.Lock()
	h.ID = "h" + strconv.Itoa(f.seq+1)
	f.mu.Unlock()
	f.seed(h, append([]domain.RoomTypeRecord(nil), rts...)...)
	return h.ID, nil
}

func (f *fakeRepo) ReplaceHostel(ctx context.Context, h domain.HostelRecord, rts []domain.RoomTypeRecord) error {
	f.wait()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	old, ok := f.hostels[h.ID]
	f.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}
	h.CreatedAt = old.CreatedAt
	f.mu.Lock()
	f.hostels[h.ID] = h
	f.rts[h.ID] = nil
	f.mu.Unlock()
	for _, rt := range rts {
		rt.HostelID = h.ID
		rt.ID = h.ID + "-" + string(rt.RoomType)
		f.mu.Lock()
		f.rts[h.ID] = append(f.rts[h.ID], rt)
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeRepo) DeleteHostel(ctx context.Context, id string) error {
	f.wait()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.hostels[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.hostels, id)
	delete(f.rts, id)
	return nil
}

// ---- cache ----

// fakeCache stores JSON like the real backends do.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	dels  int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dels++
	delete(c.store, key)
	return nil
}

// ---- blobs ----

type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	deleted   []string
	uploadErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *fakeBlobs) Upload(ctx context.Context, bucket, path string, r io.Reader, contentType string) error {
	if b.uploadErr != nil {
		return b.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[bucket+"/"+path] = data
	b.types[bucket+"/"+path] = contentType
	return nil
}

func (b *fakeBlobs) PublicURL(bucket, path string) string {
	return "https://cdn.test/" + bucket + "/" + path
}

func (b *fakeBlobs) Delete(ctx context.Context, bucket, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, bucket+"/"+path)
	b.deleted = append(b.deleted, path)
	return nil
}

// ---- images ----

var (
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	pngHeader  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
)

func imageOf(name string, header []byte, size int) domain.ImageFile {
	data := make([]byte, size)
	copy(data, header)
	return domain.ImageFile{
		Name: name,
		Size: int64(size),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

var errBoom = errors.New("boom")

func strp(s string) *string { return &s }
