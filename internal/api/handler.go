package api

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emandor/textconv/internal/config"
	"github.com/emandor/textconv/internal/export"
	"github.com/emandor/textconv/internal/extract"
	"github.com/emandor/textconv/internal/img"
	"github.com/emandor/textconv/internal/middleware"
	"github.com/emandor/textconv/internal/telemetry"
)

const msgNoSources = "No images or PDFs found in folder."

// Runner is the batch pipeline; *extract.Extractor satisfies it.
type Runner interface {
	Run(ctx context.Context, dir string, observe extract.Observer) ([]extract.Record, error)
}

// Notifier receives batch lifecycle events; *ws.Hub satisfies it.
type Notifier interface {
	BatchStarted(batchID, folder string, total int)
	BatchProgress(batchID string, current, total int)
	BatchCompleted(batchID string, summary any)
	BatchError(batchID string, err error)
}

type Handler struct {
	cfg    *config.Config
	runner Runner
	notify Notifier
	reg    *Registry
	export func(dir string, recs []extract.Record) (export.Result, error)

	// batches outlive the request that started them
	ctx context.Context
}

func NewHandler(ctx context.Context, cfg *config.Config, runner Runner, notify Notifier) *Handler {
	return &Handler{
		cfg:    cfg,
		runner: runner,
		notify: notify,
		reg:    NewRegistry(),
		export: export.WriteAll,
		ctx:    ctx,
	}
}

// Mount registers the batch routes on r.
func (h *Handler) Mount(r fiber.Router) {
	r.Post("/batches", middleware.FolderValidator(), h.CreateBatch)
	r.Get("/batches/:id", h.GetBatch)
	r.Get("/batches/:id/records/:n", h.GetRecord)
	r.Get("/batches/:id/records/:n/preview", h.GetPreview)
	r.Get("/batches/:id/records/:n/original", h.GetOriginal)
}

func (h *Handler) CreateBatch(c *fiber.Ctx) error {
	folder := c.Locals(middleware.FolderKey).(string)
	log := zerolog.Ctx(c.UserContext())

	srcs, err := extract.ListSources(folder, h.cfg.AllowedFileExt)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "cannot read folder"})
	}
	if len(srcs) == 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": msgNoSources})
	}

	b := &Batch{
		ID:      uuid.New().String(),
		Folder:  folder,
		Status:  StatusRunning,
		Total:   len(srcs),
		Started: time.Now(),
	}
	if id, ok := h.reg.add(b); !ok {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "folder is already being processed", "id": id})
	}
	log.Info().Str("batch_id", b.ID).Str("folder", folder).Int("files", len(srcs)).Msg("batch_created")

	h.notify.BatchStarted(b.ID, folder, len(srcs))
	go h.process(b)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":     b.ID,
		"status": StatusRunning,
		"total":  len(srcs),
	})
}

func (h *Handler) process(b *Batch) {
	log := telemetry.L().With().Str("batch_id", b.ID).Logger()
	defer h.reg.release(b)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("batch_panic")
			err := errors.New("internal error")
			b.finish(StatusFailed, nil, export.Result{}, err)
			h.notify.BatchError(b.ID, err)
		}
	}()

	ctx := log.WithContext(h.ctx)
	recs, err := h.runner.Run(ctx, b.Folder, func(cur, total int) {
		b.progress(cur, total)
		h.notify.BatchProgress(b.ID, cur, total)
	})
	switch {
	case errors.Is(err, extract.ErrNoSources):
		b.finish(StatusEmpty, nil, export.Result{}, errors.New(msgNoSources))
		h.notify.BatchError(b.ID, err)
		return
	case err != nil:
		log.Error().Err(err).Msg("batch_fail")
		b.finish(StatusFailed, nil, export.Result{}, err)
		h.notify.BatchError(b.ID, err)
		return
	}

	out, err := h.export(b.Folder, recs)
	if err != nil {
		log.Error().Err(err).Msg("export_fail")
		b.finish(StatusFailed, recs, export.Result{}, err)
		h.notify.BatchError(b.ID, err)
		return
	}

	log.Info().Str("text", out.Text).Str("docx", out.Docx).Msg("export_done")
	b.finish(StatusDone, recs, out, nil)
	h.notify.BatchCompleted(b.ID, b.View())
}

func (h *Handler) GetBatch(c *fiber.Ctx) error {
	b, ok := h.reg.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "batch not found"})
	}
	return c.JSON(b.View())
}

type RecordView struct {
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Label   string `json:"label"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Pages   int    `json:"pages"`
	Text    string `json:"text"`
	Error   string `json:"error,omitempty"`
	HasPrev bool   `json:"has_prev"`
	HasNext bool   `json:"has_next"`
}

func (h *Handler) GetRecord(c *fiber.Ctx) error {
	rec, cur, ferr := h.lookup(c)
	if ferr != nil {
		return fail(c, ferr)
	}
	v := RecordView{
		Index:   cur.Index() + 1,
		Total:   cur.Len(),
		Label:   cur.Label(),
		Name:    rec.Name,
		Kind:    rec.Kind.String(),
		Pages:   rec.Pages,
		Text:    rec.Text,
		HasPrev: cur.HasPrev(),
		HasNext: cur.HasNext(),
	}
	if rec.Err != nil {
		v.Error = rec.Err.Error()
	}
	return c.JSON(v)
}

// GetPreview serves the processed page (first raw page for PDFs) as a
// bounded PNG thumbnail.
func (h *Handler) GetPreview(c *fiber.Ctx) error {
	rec, _, ferr := h.lookup(c)
	if ferr != nil {
		return fail(c, ferr)
	}
	if rec.Preview == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no preview"})
	}
	return h.sendThumbnail(c, rec.Preview)
}

// GetOriginal serves the source image as it was read from disk. PDFs have
// no separate original and answer with their first page.
func (h *Handler) GetOriginal(c *fiber.Ctx) error {
	rec, _, ferr := h.lookup(c)
	if ferr != nil {
		return fail(c, ferr)
	}
	if rec.Kind == extract.KindPDF {
		if rec.Preview == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no preview"})
		}
		return h.sendThumbnail(c, rec.Preview)
	}
	im, err := img.Open(rec.Path)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "original unavailable"})
	}
	return h.sendThumbnail(c, im)
}

func (h *Handler) sendThumbnail(c *fiber.Ctx, src image.Image) error {
	b, err := img.EncodePNG(img.Thumbnail(src, h.cfg.PreviewMax))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "encode fail"})
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(b)
}

// lookup resolves :id and the 1-based :n against a finished batch.
func (h *Handler) lookup(c *fiber.Ctx) (extract.Record, *extract.Cursor, *fiber.Error) {
	b, ok := h.reg.Get(c.Params("id"))
	if !ok {
		return extract.Record{}, nil, fiber.NewError(fiber.StatusNotFound, "batch not found")
	}
	recs, done := b.records()
	if !done {
		return extract.Record{}, nil, fiber.NewError(fiber.StatusConflict, "batch not finished")
	}
	n, err := c.ParamsInt("n")
	cur := extract.NewCursor(recs)
	if err != nil || !cur.Seek(n-1) {
		return extract.Record{}, nil, fiber.NewError(fiber.StatusNotFound, "record not found")
	}
	rec, _ := cur.Current()
	return rec, cur, nil
}

func fail(c *fiber.Ctx, e *fiber.Error) error {
	return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
}
