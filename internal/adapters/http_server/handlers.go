package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"hostel_finder/internal/app"
	"hostel_finder/internal/domain"
)

// HostelOps is the hostel read/write surface the handlers need.
type HostelOps interface {
	List(ctx context.Context) ([]domain.HostelView, error)
	Get(ctx context.Context, id string) (domain.HostelView, error)
	Submit(ctx context.Context, in domain.HostelInput, images []domain.ImageFile, editing *domain.HostelView) error
	Delete(ctx context.Context, id string) error
}

type Gatekeeper interface {
	Login(ctx context.Context, email, password string) (domain.Session, error)
	Authorize(ctx context.Context, token string) (domain.Session, error)
	Logout(ctx context.Context, token string) error
}

type Handlers struct {
	Hostels HostelOps
	Gate    Gatekeeper

	// MaxImageBytes bounds each uploaded file; the request body may carry up to maxImages of them.
	MaxImageBytes int64
	// LoginRPS limits login attempts per client IP.
	LoginRPS float64
}

const maxImages = 10

type problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1", func(r chi.Router) {
		r.Get("/room-types", h.listRoomTypes)
		r.Get("/hostels", h.searchHostels)
		r.Get("/hostels/{id}", h.getHostel)

		r.Route("/auth", func(r chi.Router) {
			rps := h.LoginRPS
			if rps <= 0 {
				rps = 1
			}
			r.With(RateLimit(NewIPRateLimiter(rate.Limit(rps), 5))).Post("/login", h.login)
			r.Post("/logout", h.logout)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin(h.Gate))
			r.Get("/hostels", h.adminListHostels)
			r.Post("/hostels", h.createHostel)
			r.Put("/hostels/{id}", h.updateHostel)
			r.Delete("/hostels/{id}", h.deleteHostel)
		})
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string, fields map[string]string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Errors: fields}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps an operation error to a problem response. The title names the failed action.
func writeError(w http.ResponseWriter, err error) {
	var verrs app.ValidationErrors
	if errors.As(err, &verrs) {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid hostel", "one or more fields are invalid", verrs)
		return
	}

	title := "Request failed"
	var derr *domain.Error
	if errors.As(err, &derr) {
		title = "Failed to " + derr.Action
	}

	status := http.StatusInternalServerError
	detail := "internal error"
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		status, detail = http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, domain.ErrInvalidToken):
		status, detail = http.StatusUnauthorized, "Session expired, sign in again"
	case errors.Is(err, domain.ErrNotAdmin):
		status, detail = http.StatusForbidden, "You don't have admin privileges"
	case errors.Is(err, domain.ErrNotFound):
		status, detail = http.StatusNotFound, "hostel not found"
	case errors.Is(err, domain.ErrInFlight):
		status, detail = http.StatusConflict, "the same operation is already running"
	case errors.Is(err, domain.ErrImageTooLarge):
		status, detail = http.StatusRequestEntityTooLarge, "image exceeds the size limit"
	case errors.Is(err, domain.ErrUnsupportedImage):
		status, detail = http.StatusUnsupportedMediaType, "only JPEG and PNG images are accepted"
	case errors.Is(err, app.ErrFormCollapsed):
		status, detail = http.StatusBadRequest, err.Error()
	case domain.IsKind(err, domain.KindFetch), domain.IsKind(err, domain.KindUpload):
		status = http.StatusBadGateway
		detail = "storage backend unavailable"
	}
	if status >= 500 {
		log.Error().Err(err).Msg(title)
	}
	writeProblem(w, status, title, detail, nil)
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached answers 304 when the client already holds this version.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("route", routeOf(r)).Msg("failed to write body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// ---- public ----

type roomTypeOption struct {
	Value domain.RoomType `json:"value"`
	Label string          `json:"label"`
}

func (h *Handlers) listRoomTypes(w http.ResponseWriter, r *http.Request) {
	rts := domain.RoomTypes()
	out := make([]roomTypeOption, len(rts))
	for i, t := range rts {
		out[i] = roomTypeOption{Value: t, Label: t.Title()}
	}
	writeCached(w, r, out)
}

func (h *Handlers) searchHostels(w http.ResponseWriter, r *http.Request) {
	all, err := h.Hostels.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	out := app.FilterHostels(all, app.SearchQuery{
		Query:    q.Get("q"),
		MinPrice: q.Get("min_price"),
		MaxPrice: q.Get("max_price"),
	})
	writeCached(w, r, out)
}

func (h *Handlers) getHostel(w http.ResponseWriter, r *http.Request) {
	v, err := h.Hostels.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, v)
}

// ---- auth ----

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	domain.Session
	Redirect string `json:"redirect"`
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected JSON {email, password}", nil)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "email and password are required", nil)
		return
	}
	sess, err := h.Gate.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Session: sess, Redirect: app.AdminRedirect})
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	tok := bearer(r)
	if tok == "" {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token", nil)
		return
	}
	if err := h.Gate.Logout(r.Context(), tok); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- admin ----

func (h *Handlers) adminListHostels(w http.ResponseWriter, r *http.Request) {
	all, err := h.Hostels.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *Handlers) createHostel(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, nil)
}

func (h *Handlers) updateHostel(w http.ResponseWriter, r *http.Request) {
	target, err := h.Hostels.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.submit(w, r, &target)
}

// submit runs the payload through a hostel form opened on target and hands the
// reconciled input to the operations service.
func (h *Handlers) submit(w http.ResponseWriter, r *http.Request, target *domain.HostelView) {
	values, images, err := h.readHostelPayload(w, r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error(), nil)
		return
	}

	form := app.NewHostelForm()
	form.Open(target)
	if err := form.Bind(values); err != nil {
		writeError(w, err)
		return
	}
	in, err := form.Submission()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Hostels.Submit(r.Context(), in, images, target); err != nil {
		writeError(w, err)
		return
	}
	form.Close()

	if target == nil {
		writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "id": target.ID})
}

func (h *Handlers) deleteHostel(w http.ResponseWriter, r *http.Request) {
	if err := h.Hostels.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readHostelPayload accepts a JSON body, or multipart with a "hostel" JSON part and "images" files.
func (h *Handlers) readHostelPayload(w http.ResponseWriter, r *http.Request) (app.FormValues, []domain.ImageFile, error) {
	maxImage := h.MaxImageBytes
	if maxImage <= 0 {
		maxImage = app.MaxImageBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImages*maxImage+(1<<20))

	var v app.FormValues
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			return v, nil, errors.New("expected a JSON hostel object")
		}
		return v, nil, nil
	}

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return v, nil, errors.New("malformed multipart body")
	}
	if err := json.Unmarshal([]byte(r.FormValue("hostel")), &v); err != nil {
		return v, nil, errors.New(`multipart part "hostel" must be a JSON hostel object`)
	}
	var images []domain.ImageFile
	for _, fh := range r.MultipartForm.File["images"] {
		fh := fh
		images = append(images, domain.ImageFile{
			Name: fh.Filename,
			Size: fh.Size,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	if len(images) > maxImages {
		return v, nil, errors.New("too many images")
	}
	return v, images, nil
}
