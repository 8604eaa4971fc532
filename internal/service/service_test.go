package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/vadimbarashkov/shortly/internal/database"
	"github.com/vadimbarashkov/shortly/internal/models"
	"github.com/vadimbarashkov/shortly/internal/shortcode"
)

var errUnknown = errors.New("unknown error")

type MockLinkRepository struct {
	mock.Mock
}

func (r *MockLinkRepository) Create(ctx context.Context, shortCode, targetURL, title string) (*models.Link, error) {
	args := r.Called(ctx, shortCode, targetURL, title)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (r *MockLinkRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.Link, error) {
	args := r.Called(ctx, shortCode)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (r *MockLinkRepository) IncrementClicks(ctx context.Context, shortCode string, delta int64) error {
	args := r.Called(ctx, shortCode, delta)
	return args.Error(0)
}

func (r *MockLinkRepository) List(ctx context.Context, cursor string, limit int) ([]*models.Link, string, error) {
	args := r.Called(ctx, cursor, limit)
	links, _ := args.Get(0).([]*models.Link)
	return links, args.String(1), args.Error(2)
}

type MockCache struct {
	mock.Mock
}

func (c *MockCache) Get(ctx context.Context, key string) (string, error) {
	args := c.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (c *MockCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	args := c.Called(ctx, key, value, ttl)
	return args.Error(0)
}

type MockSafetyChecker struct {
	mock.Mock
}

func (c *MockSafetyChecker) IsSafe(ctx context.Context, url string) (bool, error) {
	args := c.Called(ctx, url)
	return args.Bool(0), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(repo LinkRepository, opts ...Option) *LinkService {
	gen := shortcode.NewGenerator(7)
	return NewLinkService(repo, gen, discardLogger(), opts...)
}

func TestNormalizeTargetURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"https kept", "https://example.com", "https://example.com"},
		{"http kept", "http://example.com", "http://example.com"},
		{"scheme-less prefixed", "example.com", "https://example.com"},
		{"protocol-relative prefixed", "//example.com", "https://example.com"},
		{"whitespace trimmed", "  example.com ", "https://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTargetURL(tt.raw))
		})
	}
}

func TestValidateTargetURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"https", "https://example.com", false},
		{"http", "http://example.com/path?q=1", false},
		{"ftp scheme", "ftp://example.com", true},
		{"no host", "https://", true},
		{"garbage", "://nope", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTargetURL(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTargetURL)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLinkService_CreateLink(t *testing.T) {
	t.Run("invalid target url", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := newTestService(repo)

		link, err := svc.CreateLink(context.TODO(), "ftp://example.com", "")

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidTargetURL)
		assert.Nil(t, link)
		repo.AssertNotCalled(t, "Create")
	})

	t.Run("scheme-less url is normalized", func(t *testing.T) {
		repo := new(MockLinkRepository)
		repo.On("Create", mock.Anything, mock.AnythingOfType("string"), "https://example.com", "").
			Return(&models.Link{ShortCode: "abcdefg", TargetURL: "https://example.com"}, nil).Once()
		svc := newTestService(repo)

		link, err := svc.CreateLink(context.TODO(), "example.com", "")

		assert.NoError(t, err)
		assert.Equal(t, "https://example.com", link.TargetURL)
		repo.AssertExpectations(t)
	})

	t.Run("retries on short code collision", func(t *testing.T) {
		repo := new(MockLinkRepository)
		repo.On("Create", mock.Anything, mock.AnythingOfType("string"), "https://example.com", "").
			Return(nil, database.ErrShortCodeExists).Twice()
		repo.On("Create", mock.Anything, mock.AnythingOfType("string"), "https://example.com", "").
			Return(&models.Link{ShortCode: "abcdefg", TargetURL: "https://example.com"}, nil).Once()
		svc := newTestService(repo)

		link, err := svc.CreateLink(context.TODO(), "https://example.com", "")

		assert.NoError(t, err)
		assert.NotNil(t, link)
		repo.AssertNumberOfCalls(t, "Create", 3)
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		repo := new(MockLinkRepository)
		repo.On("Create", mock.Anything, mock.AnythingOfType("string"), "https://example.com", "").
			Return(nil, database.ErrShortCodeExists)
		svc := newTestService(repo, WithMaxRetries(3))

		link, err := svc.CreateLink(context.TODO(), "https://example.com", "")

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
		assert.Nil(t, link)
		repo.AssertNumberOfCalls(t, "Create", 3)
	})

	t.Run("unsafe target url", func(t *testing.T) {
		repo := new(MockLinkRepository)
		safety := new(MockSafetyChecker)
		safety.On("IsSafe", mock.Anything, "https://evil.example").Return(false, nil).Once()
		svc := newTestService(repo, WithSafetyChecker(safety))

		link, err := svc.CreateLink(context.TODO(), "https://evil.example", "")

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsafeTargetURL)
		assert.Nil(t, link)
		repo.AssertNotCalled(t, "Create")
		safety.AssertExpectations(t)
	})

	t.Run("screening failure doesn't block create", func(t *testing.T) {
		repo := new(MockLinkRepository)
		repo.On("Create", mock.Anything, mock.AnythingOfType("string"), "https://example.com", "").
			Return(&models.Link{ShortCode: "abcdefg"}, nil).Once()
		safety := new(MockSafetyChecker)
		safety.On("IsSafe", mock.Anything, "https://example.com").Return(false, errUnknown).Once()
		svc := newTestService(repo, WithSafetyChecker(safety))

		link, err := svc.CreateLink(context.TODO(), "https://example.com", "")

		assert.NoError(t, err)
		assert.NotNil(t, link)
		repo.AssertExpectations(t)
	})

	t.Run("unknown store error", func(t *testing.T) {
		repo := new(MockLinkRepository)
		repo.On("Create", mock.Anything, mock.AnythingOfType("string"), "https://example.com", "").
			Return(nil, errUnknown).Once()
		svc := newTestService(repo)

		link, err := svc.CreateLink(context.TODO(), "https://example.com", "")

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, link)
	})
}

func TestLinkService_ResolveLink(t *testing.T) {
	t.Run("link not found", func(t *testing.T) {
		repo := new(MockLinkRepository)
		repo.On("GetByShortCode", mock.Anything, "missing1").
			Return(nil, database.ErrLinkNotFound).Once()
		svc := newTestService(repo)

		target, err := svc.ResolveLink(context.TODO(), "missing1")

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrLinkNotFound)
		assert.Empty(t, target)
		repo.AssertNotCalled(t, "IncrementClicks")
	})

	t.Run("success records visit", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		repo := new(MockLinkRepository)
		repo.On("GetByShortCode", mock.Anything, "abcdefg").
			Return(&models.Link{ShortCode: "abcdefg", TargetURL: "https://example.com"}, nil).Once()
		repo.On("IncrementClicks", mock.Anything, "abcdefg", int64(1)).
			Run(func(args mock.Arguments) { wg.Done() }).
			Return(nil).Once()
		svc := newTestService(repo)

		target, err := svc.ResolveLink(context.TODO(), "abcdefg")

		assert.NoError(t, err)
		assert.Equal(t, "https://example.com", target)

		wg.Wait()
		repo.AssertExpectations(t)
	})

	t.Run("increment failure doesn't fail the redirect", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		repo := new(MockLinkRepository)
		repo.On("GetByShortCode", mock.Anything, "abcdefg").
			Return(&models.Link{ShortCode: "abcdefg", TargetURL: "https://example.com"}, nil).Once()
		repo.On("IncrementClicks", mock.Anything, "abcdefg", int64(1)).
			Run(func(args mock.Arguments) { wg.Done() }).
			Return(errUnknown).Once()
		svc := newTestService(repo)

		target, err := svc.ResolveLink(context.TODO(), "abcdefg")

		assert.NoError(t, err)
		assert.Equal(t, "https://example.com", target)

		wg.Wait()
	})

	t.Run("count on resolve disabled", func(t *testing.T) {
		repo := new(MockLinkRepository)
		repo.On("GetByShortCode", mock.Anything, "abcdefg").
			Return(&models.Link{ShortCode: "abcdefg", TargetURL: "https://example.com"}, nil).Once()
		svc := newTestService(repo, WithCountOnResolve(false))

		target, err := svc.ResolveLink(context.TODO(), "abcdefg")

		assert.NoError(t, err)
		assert.Equal(t, "https://example.com", target)
		repo.AssertNotCalled(t, "IncrementClicks")
	})

	t.Run("cache hit skips the store read", func(t *testing.T) {
		repo := new(MockLinkRepository)
		c := new(MockCache)
		c.On("Get", mock.Anything, "abcdefg").Return("https://example.com", nil).Once()
		svc := newTestService(repo, WithCache(c), WithCountOnResolve(false))

		target, err := svc.ResolveLink(context.TODO(), "abcdefg")

		assert.NoError(t, err)
		assert.Equal(t, "https://example.com", target)
		repo.AssertNotCalled(t, "GetByShortCode")
		c.AssertExpectations(t)
	})

	t.Run("cache failure falls back to the store", func(t *testing.T) {
		repo := new(MockLinkRepository)
		repo.On("GetByShortCode", mock.Anything, "abcdefg").
			Return(&models.Link{ShortCode: "abcdefg", TargetURL: "https://example.com"}, nil).Once()
		c := new(MockCache)
		c.On("Get", mock.Anything, "abcdefg").Return("", errUnknown).Once()
		c.On("Set", mock.Anything, "abcdefg", "https://example.com", mock.Anything).Return(nil).Once()
		svc := newTestService(repo, WithCache(c), WithCountOnResolve(false))

		target, err := svc.ResolveLink(context.TODO(), "abcdefg")

		assert.NoError(t, err)
		assert.Equal(t, "https://example.com", target)
		repo.AssertExpectations(t)
		c.AssertExpectations(t)
	})
}

func TestLinkService_ListLinks(t *testing.T) {
	t.Run("empty store yields empty page", func(t *testing.T) {
		repo := new(MockLinkRepository)
		repo.On("List", mock.Anything, "", 10).
			Return([]*models.Link{}, "", nil).Once()
		svc := newTestService(repo)

		links, nextCursor, err := svc.ListLinks(context.TODO(), "", 10)

		assert.NoError(t, err)
		assert.Empty(t, links)
		assert.Empty(t, nextCursor)
	})

	t.Run("passes cursor through", func(t *testing.T) {
		repo := new(MockLinkRepository)
		repo.On("List", mock.Anything, "cursor1", 10).
			Return([]*models.Link{{ShortCode: "abcdefg"}}, "cursor2", nil).Once()
		svc := newTestService(repo)

		links, nextCursor, err := svc.ListLinks(context.TODO(), "cursor1", 10)

		assert.NoError(t, err)
		assert.Len(t, links, 1)
		assert.Equal(t, "cursor2", nextCursor)
	})

	t.Run("store error", func(t *testing.T) {
		repo := new(MockLinkRepository)
		repo.On("List", mock.Anything, "", 0).
			Return(nil, "", errUnknown).Once()
		svc := newTestService(repo)

		links, nextCursor, err := svc.ListLinks(context.TODO(), "", 0)

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, links)
		assert.Empty(t, nextCursor)
	})
}
