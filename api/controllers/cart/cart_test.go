package cart

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	cartdto "github.com/angelmondragon/storefront-cart/api/controllers/cart/dto"
	"github.com/angelmondragon/storefront-cart/api/middleware"
	"github.com/angelmondragon/storefront-cart/internal/cartstate"
	"github.com/angelmondragon/storefront-cart/internal/notifications"
	"github.com/angelmondragon/storefront-cart/internal/storage"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
)

const testSession = "session-1"

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Notification notifications.Notification `json:"notification"`
			Fields       map[string]string          `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func newTestRouter(t *testing.T, mem *storage.Memory) http.Handler {
	t.Helper()
	sessions, err := cartstate.NewRegistry(cartstate.RegistryOptions{
		Storage:    mem,
		KeyPrefix:  "cart",
		MinorUnits: 2,
		Size:       16,
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.CartSession(middleware.SessionOptions{Header: "X-Cart-Session", Cookie: "cart_session"}, nil))
	r.Get("/api/v1/cart", CartFetch(sessions, nil))
	r.Delete("/api/v1/cart", CartClear(sessions, nil))
	r.Post("/api/v1/cart/refresh", CartRefresh(sessions, nil))
	r.Post("/api/v1/cart/items", CartAddItem(sessions, nil))
	r.Patch("/api/v1/cart/items/{productId}", CartUpdateItem(sessions, nil))
	r.Delete("/api/v1/cart/items/{productId}", CartRemoveItem(sessions, nil))
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Cart-Session", testSession)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func decodeMutation(t *testing.T, resp *httptest.ResponseRecorder) cartdto.CartMutation {
	t.Helper()
	var envelope struct {
		Data cartdto.CartMutation `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return envelope.Data
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return body
}

const filterJSON = `{"productId":"P1","title":"Filter","price":500,"image":"/img/p1.png","stock":2}`

func TestCartAddItemSuccess(t *testing.T) {
	h := newTestRouter(t, storage.NewMemory())

	resp := do(t, h, http.MethodPost, "/api/v1/cart/items", filterJSON)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("X-Cart-Session") != testSession {
		t.Fatalf("expected session header to be echoed")
	}

	out := decodeMutation(t, resp)
	if out.Cart.ItemCount != 1 || out.Cart.TotalAmount != 500 {
		t.Fatalf("unexpected cart %+v", out.Cart)
	}
	if out.Notification.Title != cartstate.TitleAdded {
		t.Fatalf("unexpected notification %+v", out.Notification)
	}
}

func TestCartAddItemClampsToStock(t *testing.T) {
	h := newTestRouter(t, storage.NewMemory())

	do(t, h, http.MethodPost, "/api/v1/cart/items", filterJSON)
	resp := do(t, h, http.MethodPost, "/api/v1/cart/items", strings.Replace(filterJSON, `"stock":2`, `"stock":2,"quantity":5`, 1))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	out := decodeMutation(t, resp)
	if out.Cart.Items[0].Quantity != 2 || out.Cart.TotalAmount != 1000 {
		t.Fatalf("expected clamp to stock, got %+v", out.Cart)
	}
}

func TestCartAddItemRejectsOversizedQuantity(t *testing.T) {
	mem := storage.NewMemory()
	h := newTestRouter(t, mem)

	body := strings.Replace(filterJSON, `"stock":2`, `"stock":2,"quantity":9223372036854775807`, 1)
	resp := do(t, h, http.MethodPost, "/api/v1/cart/items", body)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	out := decodeError(t, resp)
	if out.Error.Details.Fields["quantity"] != "must be at most 10000" {
		t.Fatalf("unexpected field details %+v", out.Error.Details.Fields)
	}
	if _, ok := mem.Raw("cart:" + testSession); ok {
		t.Fatalf("rejected add must not write the cart")
	}
}

func TestCartAddItemNonNumericPrice(t *testing.T) {
	mem := storage.NewMemory()
	h := newTestRouter(t, mem)

	resp := do(t, h, http.MethodPost, "/api/v1/cart/items", `{"productId":"P1","title":"Filter","price":"free","image":"","stock":2}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	body := decodeError(t, resp)
	if body.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Details.Fields["price"] == "" {
		t.Fatalf("expected price detail, got %+v", body.Error.Details.Fields)
	}
	if body.Error.Details.Notification.Severity != notifications.SeverityWarning {
		t.Fatalf("expected warning notification, got %+v", body.Error.Details.Notification)
	}
	if _, ok := mem.Raw("cart:" + testSession); ok {
		t.Fatalf("rejected add must not write the cart")
	}
}

func TestCartAddItemOutOfStock(t *testing.T) {
	h := newTestRouter(t, storage.NewMemory())

	resp := do(t, h, http.MethodPost, "/api/v1/cart/items", strings.Replace(filterJSON, `"stock":2`, `"stock":0`, 1))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	body := decodeError(t, resp)
	if body.Error.Details.Notification.Description != "product is out of stock" {
		t.Fatalf("unexpected notification %+v", body.Error.Details.Notification)
	}
}

func TestCartUpdateItem(t *testing.T) {
	h := newTestRouter(t, storage.NewMemory())

	resp := do(t, h, http.MethodPatch, "/api/v1/cart/items/P1", `{"quantity":1}`)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing line, got %d", resp.Code)
	}
	if body := decodeError(t, resp); body.Error.Details.Notification.Title == "" {
		t.Fatalf("expected notification in error details")
	}

	do(t, h, http.MethodPost, "/api/v1/cart/items", filterJSON)
	resp = do(t, h, http.MethodPatch, "/api/v1/cart/items/P1", `{"quantity":0}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	out := decodeMutation(t, resp)
	if out.Cart.ItemCount != 0 || len(out.Cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", out.Cart)
	}
	if out.Notification.Title != cartstate.TitleUpdated {
		t.Fatalf("unexpected notification %+v", out.Notification)
	}
}

func TestCartUpdateItemRequiresQuantity(t *testing.T) {
	h := newTestRouter(t, storage.NewMemory())

	resp := do(t, h, http.MethodPatch, "/api/v1/cart/items/P1", `{}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartRemoveAndClear(t *testing.T) {
	mem := storage.NewMemory()
	h := newTestRouter(t, mem)

	do(t, h, http.MethodPost, "/api/v1/cart/items", filterJSON)

	resp := do(t, h, http.MethodDelete, "/api/v1/cart/items/unknown", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("removing an absent line should succeed, got %d", resp.Code)
	}
	if out := decodeMutation(t, resp); out.Cart.ItemCount != 1 {
		t.Fatalf("unexpected cart %+v", out.Cart)
	}

	resp = do(t, h, http.MethodDelete, "/api/v1/cart", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if out := decodeMutation(t, resp); out.Notification.Title != cartstate.TitleCleared {
		t.Fatalf("unexpected notification %+v", out.Notification)
	}

	raw, ok := mem.Raw("cart:" + testSession)
	if !ok || raw != `{"items":[]}` {
		t.Fatalf("unexpected stored record %q", raw)
	}
}

func TestCartFetchAndRefresh(t *testing.T) {
	mem := storage.NewMemory()
	h := newTestRouter(t, mem)

	resp := do(t, h, http.MethodGet, "/api/v1/cart", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	mem.Put("cart:"+testSession, `{"items":[{"productId":"P9","title":"Pump","price":12.5,"image":"","stock":3,"quantity":2}]}`)

	resp = do(t, h, http.MethodPost, "/api/v1/cart/refresh", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data cartdto.Cart `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ItemCount != 2 || envelope.Data.TotalAmount != 25 {
		t.Fatalf("unexpected refreshed cart %+v", envelope.Data)
	}
}

func TestCartFetchLatestSeesWritesFromOtherInstances(t *testing.T) {
	mem := storage.NewMemory()
	sessions, err := cartstate.NewRegistry(cartstate.RegistryOptions{Storage: mem, KeyPrefix: "cart"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	r := chi.NewRouter()
	r.Use(middleware.CartSession(middleware.SessionOptions{Header: "X-Cart-Session", Cookie: "cart_session"}, nil))
	r.Get("/api/v1/cart", CartFetchLatest(sessions, nil))

	if resp := do(t, r, http.MethodGet, "/api/v1/cart", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	mem.Put("cart:"+testSession, `{"items":[{"productId":"P9","title":"Pump","price":12.5,"image":"","stock":3,"quantity":2}]}`)

	resp := do(t, r, http.MethodGet, "/api/v1/cart", "")
	var envelope struct {
		Data cartdto.Cart `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ItemCount != 2 {
		t.Fatalf("expected fetch to re-read storage, got %+v", envelope.Data)
	}
}

func TestCartFetchWithoutSessionMiddleware(t *testing.T) {
	sessions, err := cartstate.NewRegistry(cartstate.RegistryOptions{Storage: storage.NewMemory(), KeyPrefix: "cart"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	resp := httptest.NewRecorder()
	CartFetch(sessions, nil)(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
