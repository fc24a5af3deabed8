package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/emandor/textconv/internal/cache"
	"github.com/emandor/textconv/internal/img"
	"github.com/emandor/textconv/internal/ocr"
	"github.com/emandor/textconv/internal/pdf"
	"github.com/emandor/textconv/internal/telemetry"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Rasterizer turns a PDF into one image per page, in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, path string, dpi int) ([]image.Image, error)
}

// Observer is told about every finished file: current runs 1..total.
type Observer func(current, total int)

type Options struct {
	DPI        int
	Workers    int
	FailFast   bool
	Extensions []string
}

type Extractor struct {
	engine ocr.Engine
	raster Rasterizer
	cache  cache.TextCache
	opts   Options
}

func New(engine ocr.Engine, raster Rasterizer, opts Options) *Extractor {
	if opts.DPI <= 0 {
		opts.DPI = 300
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Extractor{engine: engine, raster: raster, opts: opts}
}

// WithCache makes recognition look up and store text by page fingerprint.
func (x *Extractor) WithCache(c cache.TextCache) *Extractor {
	x.cache = c
	return x
}

// Page describes what Prepare did to one page.
type Page struct {
	Skew     float64
	Rotation ocr.Orientation
}

// Prepare runs normalization, deskew and orientation correction, in that
// order. Every page reaching recognition goes through here.
func (x *Extractor) Prepare(ctx context.Context, src image.Image) (*image.Gray, Page) {
	g := img.Normalize(src)
	g, skew := img.Deskew(g)
	g, rot := ocr.Correct(ctx, x.engine, g)
	return g, Page{Skew: skew, Rotation: rot}
}

// Run processes every supported file in dir and returns one record per file
// in listing order, whatever order the workers finish in. observe may be nil.
//
// A failing file yields a record with Err set and the batch goes on, unless
// FailFast is set, in which case the first failure cancels the rest and is
// returned.
func (x *Extractor) Run(ctx context.Context, dir string, observe Observer) ([]Record, error) {
	srcs, err := ListSources(dir, x.opts.Extensions)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	if len(srcs) == 0 {
		return nil, ErrNoSources
	}

	log := zerolog.Ctx(ctx)
	if log.GetLevel() == zerolog.Disabled {
		l := telemetry.L()
		log = &l
	}
	log.Info().Str("dir", dir).Int("files", len(srcs)).Int("workers", x.opts.Workers).Msg("batch_start")
	started := time.Now()

	recs := make([]Record, len(srcs))
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.opts.Workers)
	for i, src := range srcs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t0 := time.Now()
			rec := x.processFile(gctx, log, src)
			recs[i] = rec

			ev := log.Info()
			if rec.Err != nil {
				ev = log.Error().Err(rec.Err)
			}
			ev.Str("file", src.Name).Str("kind", src.Kind.String()).Int("pages", rec.Pages).
				Int("len", len(rec.Text)).Dur("took", time.Since(t0)).Msg("file_done")

			if rec.Err != nil && x.opts.FailFast {
				return fmt.Errorf("%s: %w", src.Name, rec.Err)
			}

			mu.Lock()
			done++
			if observe != nil {
				observe(done, len(srcs))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("batch_abort")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Info().Int("files", len(recs)).Int("failed", Failed(recs)).
		Dur("took", time.Since(started)).Msg("batch_done")
	return recs, nil
}

func (x *Extractor) processFile(ctx context.Context, log *zerolog.Logger, src Source) Record {
	rec := Record{Name: src.Name, Path: src.Path, Kind: src.Kind}
	if err := checkContent(src.Path); err != nil {
		rec.Err = err
		return rec
	}

	switch src.Kind {
	case KindPDF:
		pages, err := x.raster.Rasterize(ctx, src.Path, x.opts.DPI)
		if err != nil {
			rec.Err = fmt.Errorf("rasterize: %w", err)
			return rec
		}
		if len(pages) == 0 {
			rec.Err = pdf.ErrNoPages
			return rec
		}
		var b strings.Builder
		for n, page := range pages {
			g, info := x.Prepare(ctx, page)
			log.Debug().Str("file", src.Name).Int("page", n+1).Float64("angle", info.Skew).
				Int("rotate", int(info.Rotation)).Msg("page_prepared")
			txt, err := x.recognize(ctx, log, g)
			if err != nil {
				rec.Err = fmt.Errorf("page %d: %w", n+1, err)
				return rec
			}
			fmt.Fprintf(&b, "\n--- Page %d ---\n%s", n+1, txt)
		}
		rec.Pages = len(pages)
		rec.Preview = pages[0]
		rec.Text = b.String()

	default:
		im, err := img.Open(src.Path)
		if err != nil {
			rec.Err = fmt.Errorf("decode: %w", err)
			return rec
		}
		g, info := x.Prepare(ctx, im)
		log.Debug().Str("file", src.Name).Float64("angle", info.Skew).
			Int("rotate", int(info.Rotation)).Msg("page_prepared")
		txt, err := x.recognize(ctx, log, g)
		if err != nil {
			rec.Err = err
			return rec
		}
		rec.Pages = 1
		rec.Preview = g
		rec.Text = txt
	}
	return rec
}

func (x *Extractor) recognize(ctx context.Context, log *zerolog.Logger, g *image.Gray) (string, error) {
	var key string
	if x.cache != nil {
		key = img.Hash(g)
		if txt, ok := x.cache.Get(ctx, key); ok {
			log.Debug().Int("len", len(txt)).Msg("ocr_cache_hit")
			return txt, nil
		}
	}

	txt, err := x.engine.Text(ctx, g)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("ocr: %w", err)
	}

	if x.cache != nil && strings.TrimSpace(txt) != "" {
		if err := x.cache.Set(ctx, key, txt); err != nil {
			log.Warn().Err(err).Msg("ocr_cache_set_err")
		}
	}
	return txt, nil
}
