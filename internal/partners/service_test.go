package partners

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

type memoryRepo struct {
	partners map[int64]Partner
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{partners: make(map[int64]Partner)}
}

func (r *memoryRepo) Insert(_ context.Context, p Partner) (Partner, error) {
	r.nextID++
	p.ID = r.nextID
	r.partners[p.ID] = p
	return p, nil
}

func (r *memoryRepo) Get(_ context.Context, accountID, id int64) (Partner, error) {
	p, ok := r.partners[id]
	if !ok || p.AccountID != accountID {
		return Partner{}, ErrPartnerNotFound
	}
	return p, nil
}

func (r *memoryRepo) List(_ context.Context, accountID int64, filter ListFilter) ([]Partner, int, error) {
	var out []Partner
	for id := int64(1); id <= r.nextID; id++ {
		p, ok := r.partners[id]
		if !ok || p.AccountID != accountID {
			continue
		}
		if filter.Kind != "" && p.Kind != filter.Kind {
			continue
		}
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Update(_ context.Context, p Partner) (Partner, error) {
	if _, ok := r.partners[p.ID]; !ok {
		return Partner{}, ErrPartnerNotFound
	}
	r.partners[p.ID] = p
	return p, nil
}

func TestCreateAndRequire(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	supplier, err := svc.Create(ctx, 1, CreateInput{Kind: "supplier", Name: " Acme "})
	require.NoError(t, err)
	require.Equal(t, KindSupplier, supplier.Kind)
	require.Equal(t, "Acme", supplier.Name)
	require.True(t, supplier.IsActive)

	require.NoError(t, svc.Require(ctx, 1, supplier.ID, KindSupplier))
	require.ErrorIs(t, svc.Require(ctx, 1, supplier.ID, KindCustomer), ErrKindMismatch)
	require.ErrorIs(t, svc.Require(ctx, 2, supplier.ID, KindSupplier), ErrPartnerNotFound)

	_, err = svc.Deactivate(ctx, 1, supplier.ID)
	require.NoError(t, err)
	require.ErrorIs(t, svc.Require(ctx, 1, supplier.ID, KindSupplier), ErrPartnerInactive)
}

type failingAudit struct{}

func (failingAudit) Record(context.Context, shared.AuditLog) error {
	return errors.New("audit store down")
}

func TestAuditFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	svc := NewService(newMemoryRepo(), failingAudit{}, slog.New(slog.NewTextHandler(&buf, nil)))

	_, err := svc.Create(context.Background(), 1, CreateInput{Kind: "customer", Name: "Bob"})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "audit record failed")
	require.Contains(t, buf.String(), "audit store down")
}

func TestCreateRejectsUnknownKind(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	_, err := svc.Create(context.Background(), 1, CreateInput{Kind: "VENDOR", Name: "x"})
	require.ErrorIs(t, err, ErrInvalidPartner)
}

func TestListFiltersByKind(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()
	_, _ = svc.Create(ctx, 1, CreateInput{Kind: KindCustomer, Name: "C1"})
	_, _ = svc.Create(ctx, 1, CreateInput{Kind: KindSupplier, Name: "S1"})

	items, page, err := svc.List(ctx, 1, ListFilter{Kind: KindCustomer})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "C1", items[0].Name)
	require.Equal(t, 1, page.Total)
}

func TestUpdateKeepsKind(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()
	p, _ := svc.Create(ctx, 1, CreateInput{Kind: KindCustomer, Name: "C1"})

	email := "c1@example.com"
	updated, err := svc.Update(ctx, 1, p.ID, UpdateInput{Email: &email})
	require.NoError(t, err)
	require.Equal(t, email, updated.Email)
	require.Equal(t, KindCustomer, updated.Kind)

	empty := "  "
	_, err = svc.Update(ctx, 1, p.ID, UpdateInput{Name: &empty})
	require.ErrorIs(t, err, ErrInvalidPartner)
}

func TestHandlerRoutes(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(newMemoryRepo(), nil, nil))
	r := chi.NewRouter()
	r.Route("/partners", h.MountRoutes)

	send := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req = req.WithContext(shared.ContextWithAccount(req.Context(), 1))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodPost, "/partners", `{"kind":"CUSTOMER","name":"Buyer"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(http.MethodPost, "/partners", `{"kind":"OTHER","name":"Buyer"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(http.MethodPost, "/partners/1/deactivate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"is_active":false`)

	rec = send(http.MethodGet, "/partners/abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(http.MethodGet, "/partners/99", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
