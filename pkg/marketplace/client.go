package marketplace

import (
	"context"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/grovetools/bnb/config"
	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/logging"
	"github.com/grovetools/bnb/pkg/api"
	"github.com/grovetools/bnb/pkg/models"
	"github.com/grovetools/bnb/pkg/resource"
	"github.com/grovetools/bnb/pkg/session"
	"github.com/grovetools/bnb/state"
)

// Client is the process-wide entry point: one API client, one session and
// one store per entity kind, all sharing the session's credential.
type Client struct {
	API       *api.Client
	Session   *session.Holder
	Listings  *Listings
	Bookings  *Bookings
	Favorites *Favorites
	Reviews   *Reviews
	Admin     *Admin
	Host      *Host

	storage state.Storage
	logger  *logrus.Entry
	sub     <-chan session.Transition
	done    chan struct{}
	once    sync.Once
}

// Option configures New.
type Option func(*options)

type options struct {
	httpClient *http.Client
	storage    state.Storage
	logger     *logrus.Entry
}

// WithHTTPClient replaces the transport's http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithStorage overrides the storage backend selected by the config.
func WithStorage(s state.Storage) Option {
	return func(o *options) { o.storage = s }
}

func WithLogger(logger *logrus.Entry) Option {
	return func(o *options) { o.logger = logger }
}

// New builds a client from cfg and restores any persisted session. A nil
// cfg uses the defaults.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewLogger("marketplace")
	}

	c := config.Config{}
	if cfg != nil {
		c = *cfg
	}
	c.SetDefaults()

	storage := o.storage
	if storage == nil {
		s, err := state.Open(c.Storage)
		if err != nil {
			return nil, err
		}
		storage = s
	}

	apiOpts := []api.Option{
		api.WithTimeout(c.API.TimeoutDuration()),
		api.WithLogger(logging.NewLogger("api")),
	}
	if c.API.UserAgent != "" {
		apiOpts = append(apiOpts, api.WithUserAgent(c.API.UserAgent))
	}
	if c.API.RateLimit.RPS > 0 {
		apiOpts = append(apiOpts, api.WithRateLimit(c.API.RateLimit.RPS, c.API.RateLimit.Burst))
	}
	if o.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(o.httpClient))
	}
	transport := api.New(c.API.BaseURL, apiOpts...)

	storeOpts := []resource.Option{resource.WithLogger(logging.NewLogger("resource"))}
	client := &Client{
		API:       transport,
		Session:   session.New(transport, storage),
		Listings:  NewListings(transport, storeOpts...),
		Bookings:  NewBookings(transport, storeOpts...),
		Favorites: NewFavorites(transport, storeOpts...),
		Reviews:   NewReviews(transport, storeOpts...),
		Admin:     NewAdmin(transport, storeOpts...),
		Host:      NewHost(transport),
		storage:   storage,
		logger:    o.logger,
		done:      make(chan struct{}),
	}

	client.sub = client.Session.Subscribe()
	go client.watch()

	if s, ok := client.Session.Restore(); ok {
		o.logger.WithFields(logrus.Fields{
			"user_id": s.Identity.ID,
			"role":    s.Identity.Role,
		}).Debug("restored session")
	}
	return client, nil
}

// watch resets every store when the session ends, including when a request
// is rejected with 401.
func (c *Client) watch() {
	defer close(c.done)
	for t := range c.sub {
		if !t.Authenticated() {
			c.logger.WithField("reason", t.Reason).Debug("session ended, dropping cached data")
			c.ResetStores()
		}
	}
}

// ResetStores drops every cached collection.
func (c *Client) ResetStores() {
	c.Listings.Reset()
	c.Bookings.Reset()
	c.Favorites.Reset()
	c.Reviews.Reset()
	c.Admin.Reset()
	c.Host.Reset()
}

// Logout ends the session and drops cached data before returning.
func (c *Client) Logout(ctx context.Context) {
	c.Session.Logout(ctx)
	c.ResetStores()
}

// Identity returns the signed-in identity, or an UNAUTHORIZED error.
func (c *Client) Identity() (models.Identity, error) {
	s, ok := c.Session.Current()
	if !ok {
		return models.Identity{}, errors.New(errors.KindUnauthorized, "not logged in; run 'bnb login' first")
	}
	return s.Identity, nil
}

// Dashboard refreshes, concurrently, the stores relevant to the signed-in
// role and returns the first error. Anonymous callers only get listings.
// A failing store does not cancel the others; each keeps its own outcome.
func (c *Client) Dashboard(ctx context.Context) error {
	var g errgroup.Group

	g.Go(func() error {
		_, err := c.Listings.Search(ctx, c.Listings.SearchFilters())
		return err
	})

	s, ok := c.Session.Current()
	if !ok {
		return g.Wait()
	}
	id := s.Identity

	g.Go(func() error {
		_, err := c.Favorites.ForUser(ctx, id.ID)
		return err
	})

	switch {
	case id.Role.Is(models.RoleAdmin):
		g.Go(func() error {
			_, err := c.Admin.LoadUsers(ctx)
			return err
		})
		g.Go(func() error {
			_, err := c.Admin.LoadListings(ctx)
			return err
		})
		g.Go(func() error {
			_, err := c.Admin.Analytics(ctx)
			return err
		})
	case id.Role.Is(models.RoleHost):
		g.Go(func() error {
			_, err := c.Bookings.ForHost(ctx)
			return err
		})
		g.Go(func() error {
			_, err := c.Host.Earnings(ctx)
			return err
		})
	default:
		g.Go(func() error {
			_, err := c.Bookings.ForUser(ctx, id.ID)
			return err
		})
	}
	return g.Wait()
}

// Close stops the session watcher and releases the storage backend.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.Session.Unsubscribe(c.sub)
		<-c.done
		if closer, ok := c.storage.(state.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}
