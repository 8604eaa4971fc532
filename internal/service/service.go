package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/vadimbarashkov/shortly/internal/cache"
	"github.com/vadimbarashkov/shortly/internal/database"
	"github.com/vadimbarashkov/shortly/internal/models"
	"github.com/vadimbarashkov/shortly/internal/shortcode"
)

var (
	// ErrInvalidTargetURL is returned when the target doesn't parse as an
	// absolute http/https URL. Nothing is persisted in that case.
	ErrInvalidTargetURL = errors.New("invalid target url")
	// ErrUnsafeTargetURL is returned when the target is flagged by the
	// Safe Browsing screening.
	ErrUnsafeTargetURL = errors.New("unsafe target url")
	// ErrMaxRetriesExceeded is returned when the maximum number of retries for generating a short code is exceeded.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")
)

// LinkRepository defines the interface for working with links at the business logic layer.
type LinkRepository interface {
	// Create inserts a new link, failing with database.ErrShortCodeExists
	// if the short code is already taken.
	Create(ctx context.Context, shortCode, targetURL, title string) (*models.Link, error)

	// GetByShortCode retrieves a link by its short code without mutating it.
	GetByShortCode(ctx context.Context, shortCode string) (*models.Link, error)

	// IncrementClicks atomically adds delta to the link's click counter.
	IncrementClicks(ctx context.Context, shortCode string, delta int64) error

	// List returns a page of links ordered by recency plus a cursor for
	// the next page ("" when exhausted).
	List(ctx context.Context, cursor string, limit int) ([]*models.Link, string, error)
}

// TitleFetcher retrieves a page title for a target URL.
type TitleFetcher interface {
	FetchTitle(ctx context.Context, url string) (string, error)
}

// SafetyChecker screens a target URL before it is persisted.
type SafetyChecker interface {
	IsSafe(ctx context.Context, url string) (bool, error)
}

const (
	defaultStoreTimeout = 3 * time.Second
	defaultFetchTimeout = 5 * time.Second
	defaultCacheTTL     = time.Hour
	defaultMaxRetries   = 5
)

type Option func(*LinkService)

// WithCache enables the read-through cache on the resolve path.
func WithCache(c cache.Cache) Option {
	return func(s *LinkService) {
		s.cache = c
	}
}

// WithTitleFetcher enables best-effort page title lookup on create for
// requests that don't supply one.
func WithTitleFetcher(f TitleFetcher) Option {
	return func(s *LinkService) {
		s.titles = f
	}
}

// WithSafetyChecker enables Safe Browsing screening on create.
func WithSafetyChecker(c SafetyChecker) Option {
	return func(s *LinkService) {
		s.safety = c
	}
}

// WithCacheTTL sets how long resolved targets stay cached.
func WithCacheTTL(d time.Duration) Option {
	return func(s *LinkService) {
		if d > 0 {
			s.cacheTTL = d
		}
	}
}

// WithStoreTimeout bounds each store interaction.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *LinkService) {
		s.storeTimeout = d
	}
}

// WithMaxRetries bounds short code allocation attempts.
func WithMaxRetries(n int) Option {
	return func(s *LinkService) {
		s.maxRetries = n
	}
}

// WithCountOnResolve toggles the synchronous best-effort click increment
// on the redirect path. When disabled, the analytics pipeline is the sole
// counter writer.
func WithCountOnResolve(enabled bool) Option {
	return func(s *LinkService) {
		s.countOnResolve = enabled
	}
}

// LinkService provides methods to create, resolve and list shortened links.
type LinkService struct {
	repo           LinkRepository
	gen            *shortcode.Generator
	logger         *slog.Logger
	cache          cache.Cache
	titles         TitleFetcher
	safety         SafetyChecker
	storeTimeout   time.Duration
	cacheTTL       time.Duration
	maxRetries     int
	countOnResolve bool
}

// NewLinkService creates a new LinkService with the provided repository and code generator.
func NewLinkService(repo LinkRepository, gen *shortcode.Generator, logger *slog.Logger, opts ...Option) *LinkService {
	s := &LinkService{
		repo:           repo,
		gen:            gen,
		logger:         logger,
		storeTimeout:   defaultStoreTimeout,
		cacheTTL:       defaultCacheTTL,
		maxRetries:     defaultMaxRetries,
		countOnResolve: true,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// NormalizeTargetURL prefixes scheme-less input with https://.
func NormalizeTargetURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}

	return "https://" + strings.TrimPrefix(raw, "//")
}

// ValidateTargetURL reports whether raw is an absolute http/https URL.
func ValidateTargetURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidTargetURL
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidTargetURL
	}

	return nil
}

// CreateLink validates the target URL, allocates a short code and persists
// the new link. Allocation collisions are detected by the store's
// conditional insert and retried with a fresh code up to a bounded count.
func (s *LinkService) CreateLink(ctx context.Context, targetURL, title string) (*models.Link, error) {
	const op = "service.LinkService.CreateLink"

	targetURL = NormalizeTargetURL(targetURL)
	if err := ValidateTargetURL(targetURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.safety != nil {
		safe, err := s.safety.IsSafe(ctx, targetURL)
		if err != nil {
			// Screening is advisory; an unavailable API must not block creates.
			s.logger.Error("safe browsing check failed", slog.Any("err", err))
		} else if !safe {
			return nil, fmt.Errorf("%s: %w", op, ErrUnsafeTargetURL)
		}
	}

	if title == "" && s.titles != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, defaultFetchTimeout)
		fetched, err := s.titles.FetchTitle(fetchCtx, targetURL)
		cancel()
		if err != nil {
			s.logger.Debug("title fetch failed", slog.Any("err", err))
		} else {
			title = fetched
		}
	}

	for i := 0; i < s.maxRetries; i++ {
		code, err := s.gen.New()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		link, err := s.repo.Create(storeCtx, code, targetURL, title)
		cancel()
		if err != nil {
			if errors.Is(err, database.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to create link: %w", op, err)
		}

		s.cacheTarget(ctx, link.ShortCode, link.TargetURL)

		return link, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// ResolveLink returns the target URL for a short code. On success it
// records the visit asynchronously: the redirect never waits for, and
// never fails because of, click accounting. The analytics pipeline is the
// durable source of truth for click totals.
func (s *LinkService) ResolveLink(ctx context.Context, shortCode string) (string, error) {
	const op = "service.LinkService.ResolveLink"

	if s.cache != nil {
		target, err := s.cache.Get(ctx, shortCode)
		if err != nil {
			s.logger.Error("cache lookup failed", slog.Any("err", err))
		} else if target != "" {
			s.recordVisit(shortCode)
			return target, nil
		}
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	link, err := s.repo.GetByShortCode(storeCtx, shortCode)
	if err != nil {
		return "", fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	s.cacheTarget(ctx, link.ShortCode, link.TargetURL)
	s.recordVisit(shortCode)

	return link.TargetURL, nil
}

// ListLinks returns links ordered by creation time descending.
func (s *LinkService) ListLinks(ctx context.Context, cursor string, limit int) ([]*models.Link, string, error) {
	const op = "service.LinkService.ListLinks"

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	links, nextCursor, err := s.repo.List(storeCtx, cursor, limit)
	if err != nil {
		return nil, "", fmt.Errorf("%s: failed to list links: %w", op, err)
	}

	return links, nextCursor, nil
}

// recordVisit fires the best-effort synchronous click increment. It runs
// detached from the request context so a slow store can't delay the
// redirect response.
func (s *LinkService) recordVisit(shortCode string) {
	if !s.countOnResolve {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout)
		defer cancel()

		if err := s.repo.IncrementClicks(ctx, shortCode, 1); err != nil {
			s.logger.Error("failed to record visit",
				slog.String("short_code", shortCode),
				slog.Any("err", err),
			)
		}
	}()
}

func (s *LinkService) cacheTarget(ctx context.Context, shortCode, targetURL string) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Set(ctx, shortCode, targetURL, s.cacheTTL); err != nil {
		s.logger.Error("cache set failed", slog.Any("err", err))
	}
}
