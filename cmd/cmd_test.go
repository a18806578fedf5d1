package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/internal/fakeapi"
	"github.com/grovetools/bnb/pkg/models"
	"github.com/grovetools/bnb/testutil"
)

type harness struct {
	configPath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("BNB_HOME", dir)

	_, url := testutil.StartFakeAPI(t)
	return &harness{configPath: testutil.WriteConfig(t, dir, url)}
}

// run executes one bnb invocation against the fake backend. Every call
// builds a fresh command tree, like a separate process would.
func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append(args, "--config", h.configPath))
	err := root.Execute()
	return out.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, "", args...)
	require.NoError(t, err, "bnb %s", strings.Join(args, " "))
	return out
}

func (h *harness) login(t *testing.T, email string) {
	t.Helper()
	h.mustRun(t, "login", "--email", email, "--password", fakeapi.SeedPassword)
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "login", "-e", fakeapi.SeedGuestEmail, "-p", fakeapi.SeedPassword)
	assert.Contains(t, out, "Signed in as gus (guest)")

	who := decode[struct {
		Identity models.Identity `json:"identity"`
	}](t, h.mustRun(t, "whoami", "--json"))
	assert.Equal(t, fakeapi.SeedGuestEmail, who.Identity.Email)
	assert.Equal(t, models.RoleGuest, who.Identity.Role)

	assert.Contains(t, h.mustRun(t, "logout"), "Signed out")

	_, err := h.run(t, "", "whoami")
	require.Error(t, err)
	assert.Equal(t, errors.KindUnauthorized, errors.KindOf(err))
}

func TestLoginPrompts(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, fakeapi.SeedHostEmail+"\n"+fakeapi.SeedPassword+"\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as harriet (host)")
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "login", "-e", fakeapi.SeedGuestEmail, "-p", "nope")
	require.Error(t, err)
	assert.Equal(t, errors.KindUnauthorized, errors.KindOf(err))
}

func TestRegister(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "register", "-u", "hana", "-e", testutil.RandomEmail(), "-p", "s3cret-pass", "--role", "host")
	assert.Contains(t, out, "Signed in as hana (host)")

	_, err := h.run(t, "", "register", "-u", "eve", "-e", "eve@bnb.test", "-p", "pw", "--role", "admin")
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))
}

func TestListingsSearchAndShow(t *testing.T) {
	h := newHarness(t)

	found := decode[[]models.Listing](t, h.mustRun(t, "listings", "list", "--location", "amsterdam", "--json"))
	require.Len(t, found, 1)
	assert.Equal(t, int64(4), found[0].ID)

	table := h.mustRun(t, "listings", "list", "--max-price", "100")
	assert.Contains(t, table, "Mountain cabin")
	assert.NotContains(t, table, "Loft by the canal")

	_, err := h.run(t, "", "listings", "list", "--min-price", "200", "--max-price", "100")
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))

	shown := h.mustRun(t, "listings", "show", "5")
	assert.Contains(t, shown, "Banff")
	assert.Contains(t, shown, "no reviews")

	_, err = h.run(t, "", "listings", "show", "abc")
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))

	_, err = h.run(t, "", "listings", "show", "999")
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestHostManagesListings(t *testing.T) {
	h := newHarness(t)
	h.login(t, fakeapi.SeedHostEmail)

	created := decode[models.Listing](t, h.mustRun(t,
		"listings", "create", "--title", "Harbour flat", "--location", "Lisbon", "--price", "80", "--json"))
	assert.Equal(t, "Harbour flat", created.Title)
	assert.Equal(t, models.ListingPending, created.Status)

	id := itoa(created.ID)
	updated := decode[models.Listing](t, h.mustRun(t, "listings", "update", id, "--price", "85", "--json"))
	assert.Equal(t, 85.0, updated.PricePerNight)
	assert.Equal(t, "Lisbon", updated.Location)

	_, err := h.run(t, "", "listings", "update", id)
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))

	mine := decode[[]models.Listing](t, h.mustRun(t, "listings", "list", "--mine", "--json"))
	assert.Len(t, mine, 4)

	_, err = h.run(t, "", "listings", "status", id, "Approved")
	assert.Equal(t, errors.KindForbidden, errors.KindOf(err))

	assert.Contains(t, h.mustRun(t, "listings", "delete", id), "Deleted listing "+id)
}

func TestBookingFlow(t *testing.T) {
	h := newHarness(t)
	h.login(t, fakeapi.SeedGuestEmail)

	b := decode[models.Booking](t, h.mustRun(t,
		"bookings", "book", "4", "--check-in", "2026-11-02", "--check-out", "2026-11-05", "--json"))
	assert.Equal(t, 360.0, b.TotalPrice)
	assert.Equal(t, int64(4), b.ListingID)

	avail := decode[models.Availability](t, h.mustRun(t,
		"bookings", "availability", "4", "--check-in", "2026-11-03", "--check-out", "2026-11-04", "--json"))
	assert.False(t, avail.Available)

	free := h.mustRun(t, "bookings", "availability", "4", "--check-in", "2026-11-05", "--check-out", "2026-11-07")
	assert.Contains(t, free, "is available")

	_, err := h.run(t, "", "bookings", "book", "4", "--check-in", "2026-11-04", "--check-out", "2026-11-06")
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))

	_, err = h.run(t, "", "bookings", "book", "4", "--check-in", "2026-11-06", "--check-out", "2026-11-06")
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))

	_, err = h.run(t, "", "bookings", "book", "4", "--check-in", "tomorrow", "--check-out", "2026-11-06")
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))

	mine := decode[[]models.Booking](t, h.mustRun(t, "bookings", "list", "--json"))
	require.Len(t, mine, 1)
	assert.Equal(t, b.ID, mine[0].ID)

	assert.Contains(t, h.mustRun(t, "bookings", "cancel", itoa(b.ID)), "Cancelled booking")
	assert.Empty(t, decode[[]models.Booking](t, h.mustRun(t, "bookings", "list", "--json")))
}

func TestHostCompletesStay(t *testing.T) {
	h := newHarness(t)
	h.login(t, fakeapi.SeedGuestEmail)
	b := decode[models.Booking](t, h.mustRun(t,
		"bookings", "book", "5", "--check-in", "2026-12-01", "--check-out", "2026-12-03", "--json"))

	h.login(t, fakeapi.SeedHostEmail)
	hosted := decode[[]models.Booking](t, h.mustRun(t, "host", "bookings", "--json"))
	require.Len(t, hosted, 1)

	completed := decode[models.Booking](t, h.mustRun(t, "host", "status", itoa(b.ID), "completed", "--json"))
	assert.Equal(t, models.BookingCompleted, completed.Status)

	earned := decode[models.Earnings](t, h.mustRun(t, "host", "earnings", "--json"))
	assert.Equal(t, 190.0, earned.TotalEarnings)
	assert.Equal(t, 1, earned.Bookings)

	_, err := h.run(t, "", "host", "status", itoa(b.ID), "teleported")
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))
}

func TestFavoritesAndReviews(t *testing.T) {
	h := newHarness(t)
	h.login(t, fakeapi.SeedGuestEmail)

	fav := decode[models.Favorite](t, h.mustRun(t, "favorites", "add", "4", "--note", "anniversary", "--json"))
	assert.Equal(t, int64(4), fav.ListingID)

	list := h.mustRun(t, "favorites", "list")
	assert.Contains(t, list, "anniversary")

	assert.Contains(t, h.mustRun(t, "favorites", "remove", itoa(fav.ID)), "Removed favorite")

	r := decode[models.Review](t, h.mustRun(t, "reviews", "add", "4", "--rating", "4", "--comment", "Great views", "--json"))
	assert.Equal(t, 4, r.Rating)

	_, err := h.run(t, "", "reviews", "add", "4", "--rating", "9")
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))

	out := h.mustRun(t, "reviews", "list", "4")
	assert.Contains(t, out, "Great views")
	assert.Contains(t, out, "Average 4.0 from 1 reviews")

	assert.Contains(t, h.mustRun(t, "reviews", "delete", itoa(r.ID)), "Deleted review")
}

func TestAdminCommands(t *testing.T) {
	h := newHarness(t)

	h.login(t, fakeapi.SeedGuestEmail)
	_, err := h.run(t, "", "admin", "analytics")
	assert.Equal(t, errors.KindForbidden, errors.KindOf(err))

	h.login(t, fakeapi.SeedAdminEmail)
	users := decode[[]models.User](t, h.mustRun(t, "admin", "users", "--json"))
	assert.Len(t, users, 3)

	promoted := decode[models.User](t, h.mustRun(t, "admin", "role", "3", "host", "--json"))
	assert.Equal(t, models.RoleHost, promoted.Role)

	suspended := decode[models.User](t, h.mustRun(t, "admin", "status", "3", "Suspended", "--json"))
	assert.Equal(t, models.UserSuspended, suspended.Status)

	listings := decode[[]models.Listing](t, h.mustRun(t, "admin", "listings", "--approve", "6", "--json"))
	require.Len(t, listings, 3)
	for _, l := range listings {
		assert.Equal(t, models.ListingApproved, l.Status, l.Title)
	}

	a := decode[models.Analytics](t, h.mustRun(t, "admin", "analytics", "--json"))
	assert.Equal(t, 3, a.TotalUsers)
	assert.Equal(t, 3, a.TotalListings)

	view := h.mustRun(t, "admin", "analytics")
	assert.Contains(t, view, "Revenue")
	assert.Contains(t, view, "ROLE")
}

func TestDashboard(t *testing.T) {
	h := newHarness(t)

	anon := decode[dashboardView](t, h.mustRun(t, "dashboard", "--json"))
	assert.Empty(t, anon.User)
	assert.Equal(t, 3, anon.Listings)
	assert.Nil(t, anon.Favorites)

	h.login(t, fakeapi.SeedGuestEmail)
	guest := decode[dashboardView](t, h.mustRun(t, "dashboard", "--json"))
	assert.Equal(t, "gus", guest.User)
	require.NotNil(t, guest.Bookings)
	assert.Zero(t, *guest.Bookings)
	assert.Nil(t, guest.Users)

	h.login(t, fakeapi.SeedAdminEmail)
	admin := decode[dashboardView](t, h.mustRun(t, "dashboard", "--json"))
	require.NotNil(t, admin.Users)
	assert.Equal(t, 3, *admin.Users)
	assert.NotNil(t, admin.Revenue)

	table := h.mustRun(t, "dashboard")
	assert.Contains(t, table, "Signed in as")
	assert.Contains(t, table, "admin (admin)")
}

func TestConfigAndVersion(t *testing.T) {
	h := newHarness(t)

	shown := h.mustRun(t, "config", "show")
	assert.Contains(t, shown, "base_url")
	assert.Contains(t, shown, "# Source: "+h.configPath)

	assert.Contains(t, h.mustRun(t, "config", "schema"), `"base_url"`)

	info := decode[map[string]string](t, h.mustRun(t, "version", "--json"))
	assert.NotEmpty(t, info["version"])

	p := decode[PathsOutput](t, h.mustRun(t, "paths", "--json"))
	assert.Equal(t, filepath.Join(filepath.Dir(h.configPath), "state", "session.yml"), p.SessionFile)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
