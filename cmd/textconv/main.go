package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/emandor/textconv/internal/api"
	"github.com/emandor/textconv/internal/cache"
	"github.com/emandor/textconv/internal/config"
	"github.com/emandor/textconv/internal/export"
	"github.com/emandor/textconv/internal/extract"
	"github.com/emandor/textconv/internal/middleware"
	"github.com/emandor/textconv/internal/ocr/tesseract"
	"github.com/emandor/textconv/internal/pdf"
	"github.com/emandor/textconv/internal/telemetry"
	"github.com/emandor/textconv/internal/ws"
)

func main() {
	dir := flag.String("dir", "", "folder of .jpg/.jpeg/.png/.pdf files to extract text from")
	serve := flag.Bool("serve", false, "serve the HTTP and websocket API instead of running one folder")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	tcfg, err := telemetry.FromEnv(config.GetEnv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	tlog := telemetry.Init(tcfg)
	tlog.Info().Str("env", cfg.AppEnv).Str("lang", cfg.OCRLang).Int("workers", cfg.Workers).Msg("booting textconv")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := tesseract.New(tesseract.Options{
		BinPath:     cfg.TesseractPath,
		TessdataDir: cfg.TessdataDir,
		Languages:   cfg.Languages(),
		OEM:         cfg.OCROEM,
		PSM:         cfg.OCRPSM,
		Timeout:     cfg.OCRTimeout,
		RPS:         cfg.OCRRPS,
	})
	if err := engine.Check(ctx); err != nil {
		tlog.Fatal().Err(err).Msg("tesseract_unavailable")
	}

	x := extract.New(engine, pdf.NewPoppler(cfg.PdftoppmPath), extract.Options{
		DPI:        cfg.PDFDPI,
		Workers:    cfg.Workers,
		FailFast:   cfg.FailFast,
		Extensions: cfg.AllowedFileExt,
	})
	if cfg.RedisAddr != "" {
		rdb := cache.MustConnect(cfg.RedisAddr, cfg.RedisDB)
		defer rdb.Close()
		x.WithCache(cache.NewRedisText(rdb, cfg.OCRCacheTTL, cache.Engine{
			Lang: cfg.OCRLang,
			OEM:  cfg.OCROEM,
			PSM:  cfg.OCRPSM,
		}))
		tlog.Info().Str("addr", cfg.RedisAddr).Msg("ocr_cache_enabled")
	}

	if *serve {
		if err := runServer(ctx, cfg, x, tlog); err != nil {
			tlog.Fatal().Err(err).Msg("server_exit")
		}
		return
	}

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "Please select a folder with -dir.")
		flag.Usage()
		os.Exit(2)
	}
	os.Exit(runOnce(ctx, x, *dir, tlog))
}

type result struct {
	recs []extract.Record
	err  error
}

type progress struct{ current, total int }

// runOnce runs the batch on a worker goroutine and reports progress from
// this one. Outputs are written only after the whole batch is back.
func runOnce(ctx context.Context, x *extract.Extractor, dir string, tlog zerolog.Logger) int {
	ctx = tlog.With().Str("dir", dir).Logger().WithContext(ctx)

	prog := make(chan progress, 16)
	done := make(chan result, 1)
	go func() {
		defer close(prog)
		recs, err := x.Run(ctx, dir, func(cur, total int) {
			prog <- progress{cur, total}
		})
		done <- result{recs, err}
	}()

	for p := range prog {
		fmt.Printf("Processing file %d of %d\n", p.current, p.total)
	}
	res := <-done

	switch {
	case errors.Is(res.err, extract.ErrNoSources):
		fmt.Println("No images or PDFs found in folder.")
		return 0
	case res.err != nil:
		fmt.Fprintf(os.Stderr, "Extraction failed: %v\n", res.err)
		return 1
	}

	out, err := export.WriteAll(dir, res.recs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Saving results failed: %v\n", err)
		return 1
	}

	fmt.Printf("Text extraction complete.\nSaved to:\n  %s\n  %s\n", out.Text, out.Docx)
	if n := extract.Failed(res.recs); n > 0 {
		fmt.Printf("%d of %d files could not be read:\n", n, len(res.recs))
		for _, r := range res.recs {
			if r.Err != nil {
				fmt.Printf("  %s: %v\n", r.Name, r.Err)
			}
		}
		return 1
	}
	return 0
}

func runServer(ctx context.Context, cfg *config.Config, x *extract.Extractor, tlog zerolog.Logger) error {
	hub := ws.NewHub()
	h := api.NewHandler(ctx, cfg, x, hub)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(middleware.RequestID())
	app.Use(middleware.Recover())
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecureHeaders())
	app.Use(middleware.RequestLog())
	app.Use(middleware.RateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	h.Mount(app.Group("/api/v1"))
	app.Get("/ws", middleware.WSUpgrade(), websocket.New(hub.HandleWS))

	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	tlog.Info().Str("port", cfg.AppPort).Msg("listening")
	return app.Listen(":" + cfg.AppPort)
}
