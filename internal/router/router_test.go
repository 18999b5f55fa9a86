package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flash_promo/internal/clock"
	"flash_promo/internal/eligibility"
	"flash_promo/internal/middleware"
	"flash_promo/internal/model"
	"flash_promo/internal/promo"
	"flash_promo/internal/reservation"
	"flash_promo/internal/store"
	"flash_promo/internal/testutil"

	"github.com/gin-gonic/gin"
)

const adminToken = "test-admin"

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type server struct {
	t     *testing.T
	store *store.Store
	h     http.Handler
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := testutil.NewStore(t)
	clk := clock.NewManual(t0)
	r := gin.New()
	Setup(r, Deps{
		Store:      s,
		Engine:     reservation.NewEngine(s, clk),
		Filter:     eligibility.NewFilter(s, clk, 0),
		Promos:     promo.NewService(s),
		Clock:      clk,
		AdminToken: adminToken,
	})
	return &server{t: t, store: s, h: r}
}

func (s *server) do(method, path string, userID int64, staff bool, body any) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		req.Header.Set(middleware.HeaderUserID, fmt.Sprint(userID))
	}
	if staff {
		req.Header.Set(middleware.HeaderAdminToken, adminToken)
	}
	w := httptest.NewRecorder()
	s.h.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		s.t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return w.Code, env
}

func TestRouter_Auth(t *testing.T) {
	srv := newServer(t)
	if code, _ := srv.do(http.MethodGet, "/promos/active", 0, false, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
	if code, _ := srv.do(http.MethodPost, "/promos", 1, false, gin.H{}); code != http.StatusForbidden {
		t.Fatalf("expected 403 for non staff, got %d", code)
	}
}

func TestRouter_CreatePromo(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	sp := testutil.InsertStoreProduct(t, ctx, srv.store, 5, "3.50")

	body := func(price string, window time.Duration) gin.H {
		return gin.H{
			"store_product_id": sp.ID,
			"promo_price":      price,
			"starts_at":        t0.Format(time.RFC3339),
			"ends_at":          t0.Add(window).Format(time.RFC3339),
		}
	}

	code, env := srv.do(http.MethodPost, "/promos", 0, true, body("4.00", time.Hour))
	if code != http.StatusBadRequest || env.Msg != "promo price must be less than base price" {
		t.Fatalf("expected invalid price, got %d %q", code, env.Msg)
	}
	code, _ = srv.do(http.MethodPost, "/promos", 0, true, body("2.00", 30*time.Second))
	if code != http.StatusBadRequest {
		t.Fatalf("expected invalid window, got %d", code)
	}
	code, env = srv.do(http.MethodPost, "/promos", 0, true, body("2.00", time.Hour))
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %q", code, env.Msg)
	}
	var created struct {
		Status model.FlashPromoStatus `json:"status"`
	}
	_ = json.Unmarshal(env.Data, &created)
	if created.Status != model.PromoScheduled {
		t.Fatalf("expected SCHEDULED, got %s", created.Status)
	}
}

func TestRouter_ReserveCheckoutCancel(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	sp := testutil.InsertStoreProduct(t, ctx, srv.store, 2, "3.50")
	live := testutil.InsertPromo(t, ctx, srv.store, sp.ID, model.PromoActive, t0.Add(-time.Minute), t0.Add(time.Hour))
	scheduled := testutil.InsertPromo(t, ctx, srv.store, sp.ID, model.PromoScheduled, t0.Add(time.Hour), t0.Add(2*time.Hour))

	testutil.InsertProfile(t, ctx, srv.store, 1, testutil.NearLat, testutil.NearLon, true, false)
	testutil.InsertProfile(t, ctx, srv.store, 2, testutil.NearLat, testutil.NearLon, false, true)
	testutil.InsertProfile(t, ctx, srv.store, 3, testutil.NearLat, testutil.NearLon, false, false)
	testutil.InsertProfile(t, ctx, srv.store, 4, testutil.FarLat, testutil.FarLon, true, true)

	reserve := func(userID int64, promoID uint) (int, envelope) {
		return srv.do(http.MethodPost, "/cart/reserve", userID, false, gin.H{"promo_id": promoID})
	}

	cases := map[string]struct {
		userID  int64
		promoID uint
		want    int
	}{
		"unknown promo":      {1, 999, http.StatusNotFound},
		"promo not active":   {1, scheduled.ID, http.StatusBadRequest},
		"no profile":         {99, live.ID, http.StatusNotFound},
		"no behavior flag":   {3, live.ID, http.StatusForbidden},
		"outside the radius": {4, live.ID, http.StatusForbidden},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if code, env := reserve(tc.userID, tc.promoID); code != tc.want {
				t.Fatalf("expected %d, got %d %q", tc.want, code, env.Msg)
			}
		})
	}

	code, env := reserve(1, live.ID)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %q", code, env.Msg)
	}
	var hold struct {
		Token     string    `json:"reservation_token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.Unmarshal(env.Data, &hold); err != nil {
		t.Fatalf("decode hold: %v", err)
	}
	if !hold.ExpiresAt.Equal(t0.Add(60 * time.Second)) {
		t.Fatalf("expected expires_at t0+60s, got %v", hold.ExpiresAt)
	}

	code, env = reserve(2, live.ID)
	if code != http.StatusCreated {
		t.Fatalf("expected second hold, got %d %q", code, env.Msg)
	}
	var second struct {
		Token string `json:"reservation_token"`
	}
	_ = json.Unmarshal(env.Data, &second)

	if code, env = reserve(1, live.ID); code != http.StatusBadRequest || env.Msg != "out of stock" {
		t.Fatalf("expected out of stock, got %d %q", code, env.Msg)
	}

	// another user cannot confirm someone else's token
	if code, _ = srv.do(http.MethodPut, "/cart/checkout", 2, false, gin.H{"reservation_token": hold.Token}); code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign token, got %d", code)
	}

	code, env = srv.do(http.MethodPut, "/cart/checkout", 1, false, gin.H{"reservation_token": hold.Token})
	if code != http.StatusOK {
		t.Fatalf("expected checkout 200, got %d %q", code, env.Msg)
	}
	var status struct {
		Status model.ReservationStatus `json:"status"`
	}
	_ = json.Unmarshal(env.Data, &status)
	if status.Status != model.ReservationConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", status.Status)
	}
	if code, env = srv.do(http.MethodPut, "/cart/checkout", 1, false, gin.H{"reservation_token": hold.Token}); code != http.StatusBadRequest {
		t.Fatalf("expected 400 on second checkout, got %d %q", code, env.Msg)
	}

	if code, _ = srv.do(http.MethodPut, "/cart/cancel", 2, false, gin.H{"reservation_token": "nope"}); code != http.StatusNotFound {
		t.Fatalf("expected 404 cancelling unknown token, got %d", code)
	}
	code, env = srv.do(http.MethodPut, "/cart/cancel", 2, false, gin.H{"reservation_token": second.Token})
	if code != http.StatusOK {
		t.Fatalf("expected cancel 200, got %d %q", code, env.Msg)
	}
	_ = json.Unmarshal(env.Data, &status)
	if status.Status != model.ReservationExpired {
		t.Fatalf("expected EXPIRED after cancel, got %s", status.Status)
	}

	code, env = srv.do(http.MethodGet, fmt.Sprintf("/promos/%d/stock", live.ID), 1, false, nil)
	if code != http.StatusOK {
		t.Fatalf("expected stock 200, got %d", code)
	}
	var stock struct {
		Stock int64 `json:"stock"`
	}
	_ = json.Unmarshal(env.Data, &stock)
	if stock.Stock != 1 {
		t.Fatalf("expected stock 1, got %d", stock.Stock)
	}
}

func TestRouter_ActivePromos(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	sp := testutil.InsertStoreProduct(t, ctx, srv.store, 2, "3.50")
	live := testutil.InsertPromo(t, ctx, srv.store, sp.ID, model.PromoActive, t0.Add(-time.Minute), t0.Add(time.Hour))
	testutil.InsertProfile(t, ctx, srv.store, 1, testutil.NearLat, testutil.NearLon, true, false)
	testutil.InsertProfile(t, ctx, srv.store, 3, testutil.NearLat, testutil.NearLon, false, false)

	code, env := srv.do(http.MethodGet, "/promos/active", 1, false, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %q", code, env.Msg)
	}
	var items []activePromoItem
	if err := json.Unmarshal(env.Data, &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].ID != live.ID {
		t.Fatalf("expected promo %d, got %+v", live.ID, items)
	}
	if items[0].StoreName == "" || items[0].ProductName == "" || items[0].DistanceM <= 0 {
		t.Fatalf("expected store, product and distance, got %+v", items[0])
	}

	code, env = srv.do(http.MethodGet, "/promos/active", 3, false, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if err := json.Unmarshal(env.Data, &items); err != nil || len(items) != 0 {
		t.Fatalf("expected empty list without behavior flag, got %+v err=%v", items, err)
	}

	if code, _ = srv.do(http.MethodGet, "/promos/active", 42, false, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 without profile, got %d", code)
	}
}

func TestRouter_Catalog(t *testing.T) {
	srv := newServer(t)

	code, env := srv.do(http.MethodPost, "/stores", 0, true, gin.H{"name": "Tienda Norte", "lat": 10.99, "lon": -74.80})
	if code != http.StatusCreated {
		t.Fatalf("create store: %d %q", code, env.Msg)
	}
	var st model.Store
	_ = json.Unmarshal(env.Data, &st)

	if code, _ = srv.do(http.MethodPost, "/stores", 0, true, gin.H{"name": "x", "lat": 120, "lon": 0}); code != http.StatusBadRequest {
		t.Fatalf("expected invalid coordinates, got %d", code)
	}

	code, env = srv.do(http.MethodPost, "/products", 0, true, gin.H{"name": "Agua", "sku": "SKU-1"})
	if code != http.StatusCreated {
		t.Fatalf("create product: %d %q", code, env.Msg)
	}
	var p model.Product
	_ = json.Unmarshal(env.Data, &p)
	if code, _ = srv.do(http.MethodPost, "/products", 0, true, gin.H{"name": "Agua", "sku": "SKU-1"}); code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate sku, got %d", code)
	}

	sp := gin.H{"store_id": st.ID, "product_id": p.ID, "stock": 10, "base_price": "3.50"}
	if code, env = srv.do(http.MethodPost, "/store-products", 0, true, sp); code != http.StatusCreated {
		t.Fatalf("create store product: %d %q", code, env.Msg)
	}
	if code, _ = srv.do(http.MethodPost, "/store-products", 0, true, sp); code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate store product, got %d", code)
	}

	code, env = srv.do(http.MethodGet, "/store-products", 1, false, nil)
	if code != http.StatusOK {
		t.Fatalf("list store products: %d", code)
	}
	var list []model.StoreProduct
	if err := json.Unmarshal(env.Data, &list); err != nil || len(list) != 1 {
		t.Fatalf("expected 1 store product, got %+v err=%v", list, err)
	}

	if code, _ = srv.do(http.MethodPut, "/profiles/5", 0, true, gin.H{"lat": 10.99, "is_new_user": true}); code != http.StatusBadRequest {
		t.Fatalf("expected lat without lon rejected, got %d", code)
	}
	if code, _ = srv.do(http.MethodPut, "/profiles/5", 0, true, gin.H{"lat": 10.99, "lon": -74.80, "is_new_user": true}); code != http.StatusOK {
		t.Fatalf("expected profile saved, got %d", code)
	}
}
