package images

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"webepub/content"
)

// AcquisitionError describes candidate for which no strategy produced an
// image. It is logged and never returned from Resolve.
type AcquisitionError struct {
	Ref string
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("unable to acquire image %s: %v", shortRef(e.Ref), e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// Resolver deduplicates candidates and acquires image data.
type Resolver struct {
	primary     Fetcher
	secondary   Fetcher
	concurrency int
	timeout     time.Duration
	transcoder  *Transcoder
	log         *zap.Logger
}

type ResolverOption func(*Resolver)

func WithConcurrency(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithTimeout bounds every single fetch attempt.
func WithTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithTranscoder(t *Transcoder) ResolverOption {
	return func(r *Resolver) {
		r.transcoder = t
	}
}

// NewResolver needs primary strategy, secondary may be nil.
func NewResolver(primary, secondary Fetcher, log *zap.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		primary:     primary,
		secondary:   secondary,
		concurrency: 4,
		timeout:     30 * time.Second,
		log:         log.Named("resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// unique is deduplicated candidate with all references seen for it.
type unique struct {
	cand Candidate
	key  string
	refs []string
}

func (u *unique) addRefs(refs ...string) {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		found := false
		for _, r := range u.refs {
			if r == ref {
				found = true
				break
			}
		}
		if !found {
			u.refs = append(u.refs, ref)
		}
	}
}

// Resolve returns acquired images in first-seen order of their identity.
// Failures are per candidate, result may be empty but is never an error.
func (r *Resolver) Resolve(ctx context.Context, candidates []Candidate, pageURL string) []content.ResolvedImage {
	list := r.dedup(candidates, pageURL)
	if len(list) == 0 {
		return nil
	}

	results := make([]*content.ResolvedImage, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range list {
		g.Go(func() error {
			img, err := r.acquire(gctx, list[i], pageURL)
			if err != nil {
				r.log.Warn("Image dropped", zap.Error(err))
				return nil
			}
			results[i] = img
			return nil
		})
	}
	_ = g.Wait()

	res := make([]content.ResolvedImage, 0, len(results))
	for _, img := range results {
		if img != nil {
			res = append(res, *img)
		}
	}
	r.log.Debug("Images resolved", zap.Int("candidates", len(candidates)), zap.Int("unique", len(list)), zap.Int("acquired", len(res)))
	return res
}

func (r *Resolver) dedup(candidates []Candidate, pageURL string) []*unique {
	var (
		list  []*unique
		index = make(map[string]*unique)
	)
	for _, c := range candidates {
		c.Resolved = ResolveRef(c.Original, pageURL)
		if c.Resolved == "" && c.Inline == "" {
			r.log.Debug("Unresolvable image reference dropped", zap.String("ref", shortRef(c.Original)))
			continue
		}
		key := IdentityKey(c.Original, c.Resolved)
		refs := []string{strings.TrimSpace(c.Original), c.Resolved, StripScheme(c.Resolved)}
		if u, ok := index[key]; ok {
			u.addRefs(refs...)
			if u.cand.Inline == "" && c.Inline != "" {
				u.cand.Inline = c.Inline
			}
			if u.cand.Alt == "" {
				u.cand.Alt = c.Alt
			}
			continue
		}
		u := &unique{cand: c, key: key}
		u.addRefs(refs...)
		index[key] = u
		list = append(list, u)
	}
	return list
}

func (r *Resolver) acquire(ctx context.Context, u *unique, pageURL string) (*content.ResolvedImage, error) {
	var (
		p   *Payload
		err error
	)
	if u.cand.Inline != "" {
		p, err = inline(u.cand.Inline)
		if err != nil {
			r.log.Debug("Inline image data rejected", zap.String("ref", shortRef(u.cand.Original)), zap.Error(err))
		}
	}
	if p == nil {
		p, err = r.fetch(ctx, u, pageURL)
		if err != nil {
			return nil, err
		}
	}

	if r.transcoder != nil {
		if mt, data, terr := r.transcoder.Convert(p.Data, p.MIME); terr != nil {
			r.log.Warn("Unable to transcode image, keeping original", zap.String("ref", shortRef(u.key)), zap.Error(terr))
		} else {
			p = &Payload{MIME: mt, Data: data}
		}
	}

	img := &content.ResolvedImage{
		Key:         u.key,
		OriginalRef: u.cand.Original,
		ResolvedRef: u.cand.Resolved,
		MIME:        p.MIME,
		Data:        p.Data,
		Alt:         u.cand.Alt,
		Width:       u.cand.Width,
		Height:      u.cand.Height,
	}
	img.AddRef(u.refs...)
	return img, nil
}

func inline(ref string) (*Payload, error) {
	mt, data, err := ParseDataURI(ref)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(mt, "image/") {
		return nil, fmt.Errorf("data URI is not an image: %s", mt)
	}
	return &Payload{MIME: mt, Data: data}, nil
}

// fetch walks paths sequentially, every path tries primary strategy first.
func (r *Resolver) fetch(ctx context.Context, u *unique, pageURL string) (*Payload, error) {
	var paths []string
	if !IsDataURI(u.cand.Resolved) && u.cand.Resolved != "" {
		paths = append(paths, u.cand.Resolved)
	}
	if orig := strings.TrimSpace(u.cand.Original); orig != u.cand.Resolved && absoluteHTTP(orig) {
		paths = append(paths, orig)
	}
	if len(paths) == 0 {
		return nil, &AcquisitionError{Ref: u.key, Err: errors.New("no fetchable reference")}
	}

	var errs error
	for _, path := range paths {
		for _, f := range []Fetcher{r.primary, r.secondary} {
			if f == nil {
				continue
			}
			p, err := r.attempt(ctx, f, path, pageURL)
			if err == nil {
				return p, nil
			}
			r.log.Debug("Fetch attempt failed", zap.String("strategy", f.Name()), zap.String("ref", shortRef(path)), zap.Error(err))
			errs = multierr.Append(errs, err)
			if ctx.Err() != nil {
				return nil, &AcquisitionError{Ref: u.key, Err: multierr.Append(errs, ctx.Err())}
			}
		}
	}
	return nil, &AcquisitionError{Ref: u.key, Err: errs}
}

func (r *Resolver) attempt(ctx context.Context, f Fetcher, ref, referer string) (*Payload, error) {
	actx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return f.Fetch(actx, ref, referer)
}

func absoluteHTTP(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && isHTTP(u)
}
