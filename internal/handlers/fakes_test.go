package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/emlakhub/apiserver/internal/services"
	"github.com/emlakhub/apiserver/internal/store"
	"github.com/emlakhub/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const testSecret = "test-secret"

type fakeUsers struct {
	users      map[int]types.User
	registered []services.RegisterInput
	authResult services.Result[types.User]
	roleResult services.Result[types.User]
	setActive  []bool
	deleted    []int
}

func newFakeUsers(users ...types.User) *fakeUsers {
	f := &fakeUsers{users: map[int]types.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(ctx context.Context, id int) (types.User, error) {
	u, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	var out []types.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

func (f *fakeUsers) Register(ctx context.Context, in services.RegisterInput) (services.Result[types.User], error) {
	f.registered = append(f.registered, in)
	if in.Email == "taken@example.com" {
		return services.Result[types.User]{Kind: services.KindValidation, Message: "email is already registered"}, nil
	}
	u := types.User{ID: 100 + len(f.registered), Email: in.Email, Role: types.RoleUser, IsActive: true}
	f.users[u.ID] = u
	return services.Result[types.User]{Data: u}, nil
}

func (f *fakeUsers) Authenticate(ctx context.Context, email, password string) (services.Result[types.User], error) {
	return f.authResult, nil
}

func (f *fakeUsers) UpdateRole(ctx context.Context, id int, role string) (services.Result[types.User], error) {
	return f.roleResult, nil
}

func (f *fakeUsers) SetActive(ctx context.Context, callerID, id int, active bool) (services.Result[types.User], error) {
	f.setActive = append(f.setActive, active)
	if callerID == id && !active {
		return services.Result[types.User]{Kind: services.KindValidation, Message: "you cannot deactivate your own account"}, nil
	}
	u := f.users[id]
	u.IsActive = active
	f.users[id] = u
	return services.Result[types.User]{Data: u}, nil
}

func (f *fakeUsers) Delete(ctx context.Context, callerID, id int) (services.Result[bool], error) {
	f.deleted = append(f.deleted, id)
	return services.Result[bool]{Data: true}, nil
}

type listCall struct {
	filter  types.ListingFilter
	isAdmin bool
}

type fakeListings struct {
	result      services.Result[types.Listing]
	deleteRes   services.Result[bool]
	err         error
	lists       []listCall
	created     []types.ListingInput
	createdBy   []int
	deactivated []*string
	getCaller   *int
	getAdmin    bool
}

func (f *fakeListings) Create(ctx context.Context, ownerID int, in types.ListingInput) (services.Result[types.Listing], error) {
	f.created = append(f.created, in)
	f.createdBy = append(f.createdBy, ownerID)
	return services.Result[types.Listing]{Data: types.Listing{ID: 1, OwnerID: &ownerID, IsActive: true}}, nil
}

func (f *fakeListings) Update(ctx context.Context, id, callerID int, in types.ListingInput) (services.Result[types.Listing], error) {
	return f.result, f.err
}

func (f *fakeListings) Deactivate(ctx context.Context, id, adminID int, reason *string) (services.Result[types.Listing], error) {
	f.deactivated = append(f.deactivated, reason)
	return f.result, f.err
}

func (f *fakeListings) Activate(ctx context.Context, id, adminID int) (services.Result[types.Listing], error) {
	return f.result, f.err
}

func (f *fakeListings) Delete(ctx context.Context, id, callerID int, isAdmin bool) (services.Result[bool], error) {
	return f.deleteRes, f.err
}

func (f *fakeListings) Get(ctx context.Context, id int, callerID *int, isAdmin bool) (services.Result[types.Listing], error) {
	f.getCaller = callerID
	f.getAdmin = isAdmin
	return f.result, f.err
}

func (f *fakeListings) List(ctx context.Context, filter types.ListingFilter, isAdmin bool) ([]types.Listing, int, error) {
	f.lists = append(f.lists, listCall{filter: filter, isAdmin: isAdmin})
	return []types.Listing{{ID: 1, IsActive: true}}, 1, nil
}

func (f *fakeListings) ListMine(ctx context.Context, ownerID, offset, limit int) ([]types.Listing, int, error) {
	return nil, 0, nil
}

type fakePhotos struct {
	uploads []services.PhotoUpload
	body    []byte
}

func (f *fakePhotos) Upload(ctx context.Context, listingID, callerID int, upload services.PhotoUpload) (services.Result[types.ListingImage], error) {
	data, _ := io.ReadAll(upload.Body)
	f.body = data
	f.uploads = append(f.uploads, upload)
	return services.Result[types.ListingImage]{Data: types.ListingImage{ID: 3, ListingID: listingID, FileName: upload.FileName}}, nil
}

func (f *fakePhotos) List(ctx context.Context, listingID int, callerID *int, isAdmin bool) (services.Result[[]types.ListingImage], error) {
	return services.Result[[]types.ListingImage]{}, nil
}

func (f *fakePhotos) Open(ctx context.Context, listingID, imageID int, callerID *int, isAdmin bool) (services.Result[types.ListingImage], io.ReadCloser, error) {
	if imageID != 3 {
		return services.Result[types.ListingImage]{Kind: services.KindNotFound, Message: "image not found"}, nil, nil
	}
	img := types.ListingImage{ID: 3, ContentType: "image/png", Size: int64(len("png-bytes"))}
	return services.Result[types.ListingImage]{Data: img}, io.NopCloser(strings.NewReader("png-bytes")), nil
}

type fakeFavorites struct {
	added   map[int]bool
	removed []int
}

func (f *fakeFavorites) Add(ctx context.Context, userID, listingID int) (services.Result[bool], error) {
	if listingID == 404 {
		return services.Result[bool]{Kind: services.KindNotFound, Message: "listing not found"}, nil
	}
	if f.added[listingID] {
		return services.Result[bool]{Data: false}, nil
	}
	f.added[listingID] = true
	return services.Result[bool]{Data: true}, nil
}

func (f *fakeFavorites) Remove(ctx context.Context, userID, listingID int) (bool, error) {
	f.removed = append(f.removed, listingID)
	return false, nil
}

func (f *fakeFavorites) List(ctx context.Context, userID int) ([]types.FavoriteListing, error) {
	return nil, nil
}

type fakeNotifications struct {
	calls      []string
	unreadOnly bool
}

func (f *fakeNotifications) ListForUser(ctx context.Context, userID int, unreadOnly bool) ([]types.Notification, error) {
	f.calls = append(f.calls, "list")
	f.unreadOnly = unreadOnly
	return []types.Notification{{ID: 1, UserID: userID}}, nil
}

func (f *fakeNotifications) UnreadCount(ctx context.Context, userID int) (int, error) {
	f.calls = append(f.calls, "count")
	return 4, nil
}

func (f *fakeNotifications) MarkRead(ctx context.Context, id, callerID int) (services.Result[bool], error) {
	f.calls = append(f.calls, "read")
	if id == 9 {
		return services.Result[bool]{Kind: services.KindForbidden, Message: "notification belongs to another user"}, nil
	}
	return services.Result[bool]{Data: true}, nil
}

func (f *fakeNotifications) MarkAllRead(ctx context.Context, userID int) (int64, error) {
	f.calls = append(f.calls, "read-all")
	return 2, nil
}

func (f *fakeNotifications) Delete(ctx context.Context, id, callerID int) (services.Result[bool], error) {
	f.calls = append(f.calls, "delete")
	return services.Result[bool]{Data: true}, nil
}

func (f *fakeNotifications) DeleteRead(ctx context.Context, userID int) (int64, error) {
	f.calls = append(f.calls, "delete-read")
	return 3, nil
}

type testAPI struct {
	router        *chi.Mux
	auth          *Authenticator
	users         *fakeUsers
	listings      *fakeListings
	photos        *fakePhotos
	favorites     *fakeFavorites
	notifications *fakeNotifications
}

var (
	testOwner    = types.User{ID: 5, Email: "owner@example.com", Role: types.RoleUser, IsActive: true}
	testStranger = types.User{ID: 6, Email: "stranger@example.com", Role: types.RoleUser, IsActive: true}
	testAdmin    = types.User{ID: 1, Email: "admin@example.com", Role: types.RoleAdmin, IsActive: true}
	testDisabled = types.User{ID: 7, Email: "disabled@example.com", Role: types.RoleUser, IsActive: false}
)

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	api := &testAPI{
		users:         newFakeUsers(testOwner, testStranger, testAdmin, testDisabled),
		listings:      &fakeListings{},
		photos:        &fakePhotos{},
		favorites:     &fakeFavorites{added: map[int]bool{}},
		notifications: &fakeNotifications{},
	}
	api.auth = NewAuthenticator(api.users, testSecret, time.Hour)

	r := chi.NewRouter()
	r.Get("/healthz", Healthz)
	r.Route("/auth", func(r chi.Router) { AuthRouter(r, api.auth) })
	r.Route("/listings", func(r chi.Router) { ListingRouter(r, api.listings, api.photos, api.auth) })
	r.Route("/favorites", func(r chi.Router) { FavoriteRouter(r, api.favorites, api.auth) })
	r.Route("/notifications", func(r chi.Router) { NotificationRouter(r, api.notifications, api.auth) })
	r.Route("/admin", func(r chi.Router) { AdminRouter(r, api.users, api.auth) })
	api.router = r
	return api
}

func tokenFor(t *testing.T, userID int) string {
	t.Helper()
	token, _, err := issueToken(userID, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (api *testAPI) do(t *testing.T, method, path string, body string, user *types.User) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, user.ID))
	}
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	return rec
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}
