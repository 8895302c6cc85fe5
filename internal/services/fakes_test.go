package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/emlakhub/apiserver/internal/storage"
	"github.com/emlakhub/apiserver/internal/store"
	"github.com/emlakhub/apiserver/types"
)

var errStoreDown = errors.New("store unreachable")

type fakeListingRepo struct {
	mu       sync.Mutex
	items    map[int]types.Listing
	nextID   int
	failNext error
	onDelete func(id int)
	trace    *[]string
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{items: map[int]types.Listing{}}
}

func (r *fakeListingRepo) Create(ctx context.Context, l types.Listing) (types.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return types.Listing{}, err
	}
	r.nextID++
	l.ID = r.nextID
	l.CreatedAt = time.Now()
	l.UpdatedAt = l.CreatedAt
	r.items[l.ID] = l
	return l, nil
}

func (r *fakeListingRepo) GetByID(ctx context.Context, id int) (types.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.items[id]
	if !ok {
		return types.Listing{}, store.ErrNotFound
	}
	return l, nil
}

func (r *fakeListingRepo) GetForUpdate(ctx context.Context, id int) (types.Listing, error) {
	record(ctx, r.trace, "lock")
	return r.GetByID(ctx, id)
}

func (r *fakeListingRepo) Update(ctx context.Context, l types.Listing) (types.Listing, error) {
	return r.put(l)
}

func (r *fakeListingRepo) UpdateModeration(ctx context.Context, l types.Listing) (types.Listing, error) {
	return r.put(l)
}

func (r *fakeListingRepo) put(l types.Listing) (types.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return types.Listing{}, err
	}
	if _, ok := r.items[l.ID]; !ok {
		return types.Listing{}, store.ErrNotFound
	}
	l.UpdatedAt = time.Now()
	r.items[l.ID] = l
	return l, nil
}

func (r *fakeListingRepo) SetImageURLIfEmpty(ctx context.Context, id int, imageURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.items[id]
	if !ok {
		return nil
	}
	if l.ImageURL == nil || *l.ImageURL == "" {
		l.ImageURL = &imageURL
		r.items[id] = l
	}
	return nil
}

func (r *fakeListingRepo) Delete(ctx context.Context, id int) error {
	record(ctx, r.trace, "delete")
	r.mu.Lock()
	if _, ok := r.items[id]; !ok {
		r.mu.Unlock()
		return store.ErrNotFound
	}
	delete(r.items, id)
	r.mu.Unlock()
	if r.onDelete != nil {
		r.onDelete(id)
	}
	return nil
}

func (r *fakeListingRepo) Exists(ctx context.Context, id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[id]
	return ok, nil
}

func (r *fakeListingRepo) List(ctx context.Context, f types.ListingFilter) ([]types.Listing, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Listing
	for _, l := range r.items {
		if !f.IncludeInactive && !l.IsActive {
			continue
		}
		if f.Type != nil && l.Type != *f.Type {
			continue
		}
		if f.OwnerID != nil && !l.OwnedBy(f.OwnerID) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	if f.Offset >= len(out) {
		return []types.Listing{}, total, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (r *fakeListingRepo) takeFailure() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *fakeListingRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[int]types.Listing, len(r.items))
	for k, v := range r.items {
		saved[k] = v
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.items = saved
	}
}

type fakeNotificationRepo struct {
	mu         sync.Mutex
	items      map[int]types.Notification
	nextID     int
	failCreate error
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{items: map[int]types.Notification{}}
}

func (r *fakeNotificationRepo) Create(ctx context.Context, n types.Notification) (types.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return types.Notification{}, r.failCreate
	}
	r.nextID++
	n.ID = r.nextID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	r.items[n.ID] = n
	return n, nil
}

func (r *fakeNotificationRepo) GetByID(ctx context.Context, id int) (types.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok {
		return types.Notification{}, store.ErrNotFound
	}
	return n, nil
}

func (r *fakeNotificationRepo) ListByUser(ctx context.Context, userID int, unreadOnly bool) ([]types.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []types.Notification{}
	for _, n := range r.items {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *fakeNotificationRepo) CountUnread(ctx context.Context, userID int) (int, error) {
	items, _ := r.ListByUser(ctx, userID, true)
	return len(items), nil
}

func (r *fakeNotificationRepo) MarkRead(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok {
		return store.ErrNotFound
	}
	n.IsRead = true
	r.items[id] = n
	return nil
}

func (r *fakeNotificationRepo) MarkAllRead(ctx context.Context, userID int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var changed int64
	for id, n := range r.items {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			r.items[id] = n
			changed++
		}
	}
	return changed, nil
}

func (r *fakeNotificationRepo) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeNotificationRepo) DeleteRead(ctx context.Context, userID int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for id, n := range r.items {
		if n.UserID == userID && n.IsRead {
			delete(r.items, id)
			removed++
		}
	}
	return removed, nil
}

func (r *fakeNotificationRepo) forUser(userID int) []types.Notification {
	items, _ := r.ListByUser(context.Background(), userID, false)
	return items
}

func (r *fakeNotificationRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[int]types.Notification, len(r.items))
	for k, v := range r.items {
		saved[k] = v
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.items = saved
	}
}

type fakeImageRepo struct {
	mu     sync.Mutex
	items  map[int]types.ListingImage
	nextID int
	trace  *[]string
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{items: map[int]types.ListingImage{}}
}

func (r *fakeImageRepo) Create(ctx context.Context, image types.ListingImage) (types.ListingImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	image.ID = r.nextID
	image.CreatedAt = time.Now()
	r.items[image.ID] = image
	return image, nil
}

func (r *fakeImageRepo) Get(ctx context.Context, listingID, imageID int) (types.ListingImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	image, ok := r.items[imageID]
	if !ok || image.ListingID != listingID {
		return types.ListingImage{}, store.ErrNotFound
	}
	return image, nil
}

func (r *fakeImageRepo) ListByListing(ctx context.Context, listingID int) ([]types.ListingImage, error) {
	record(ctx, r.trace, "list")
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []types.ListingImage{}
	for _, image := range r.items {
		if image.ListingID == listingID {
			out = append(out, image)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeFavoriteRepo struct {
	mu       sync.Mutex
	pairs    map[[2]int]time.Time
	listings *fakeListingRepo
}

func newFakeFavoriteRepo(listings *fakeListingRepo) *fakeFavoriteRepo {
	return &fakeFavoriteRepo{pairs: map[[2]int]time.Time{}, listings: listings}
}

func (r *fakeFavoriteRepo) Add(ctx context.Context, userID, listingID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int{userID, listingID}
	if _, ok := r.pairs[key]; ok {
		return false, nil
	}
	r.pairs[key] = time.Now()
	return true, nil
}

func (r *fakeFavoriteRepo) Remove(ctx context.Context, userID, listingID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int{userID, listingID}
	if _, ok := r.pairs[key]; !ok {
		return false, nil
	}
	delete(r.pairs, key)
	return true, nil
}

// ListByUser joins with the listing fake the way the SQL inner join does.
func (r *fakeFavoriteRepo) ListByUser(ctx context.Context, userID int) ([]types.FavoriteListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []types.FavoriteListing{}
	for key, at := range r.pairs {
		if key[0] != userID {
			continue
		}
		l, err := r.listings.GetByID(ctx, key[1])
		if err != nil {
			continue
		}
		out = append(out, types.FavoriteListing{FavoritedAt: at, Listing: l})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FavoritedAt.After(out[j].FavoritedAt) })
	return out, nil
}

func (r *fakeFavoriteRepo) count(userID, listingID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pairs[[2]int{userID, listingID}]; ok {
		return 1
	}
	return 0
}

// cascade mimics ON DELETE CASCADE for a removed listing.
func (r *fakeFavoriteRepo) cascade(listingID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.pairs {
		if key[1] == listingID {
			delete(r.pairs, key)
		}
	}
}

type fakeUserRepo struct {
	mu     sync.Mutex
	items  map[int]types.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{items: map[int]types.User{}}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.items {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.User, 0, len(r.items))
	for _, u := range r.items {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *fakeUserRepo) Create(ctx context.Context, u types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.Email == u.Email {
			return types.User{}, store.ErrConflict
		}
	}
	r.nextID++
	u.ID = r.nextID
	r.items[u.ID] = u
	return u, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, u types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[u.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.items[u.ID] = u
	return u, nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

// fakeTx rolls the fakes back to their state at the start of the transaction
// when fn fails.
type fakeTx struct {
	participants []interface{ snapshot() func() }
	calls        int
}

type fakeTxKey struct{}

// record appends op to trace, suffixed with @tx when ctx is inside RunInTx.
func record(ctx context.Context, trace *[]string, op string) {
	if trace == nil {
		return
	}
	if inTx, _ := ctx.Value(fakeTxKey{}).(bool); inTx {
		op += "@tx"
	}
	*trace = append(*trace, op)
}

func (t *fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	ctx = context.WithValue(ctx, fakeTxKey{}, true)
	restores := make([]func(), 0, len(t.participants))
	for _, p := range t.participants {
		restores = append(restores, p.snapshot())
	}
	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []types.ListingEvent
	err    error
}

func (f *fakeEvents) PublishListingEvent(ctx context.Context, event types.ListingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}}
}

func (f *fakeObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjects) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func newTitle(title string) types.ListingInput {
	return types.ListingInput{Title: &title}
}
