// Package server serves an asset directory over the enumerate/get API that
// remote.HTTPClient consumes.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/aweris/assetsync"
	"github.com/aweris/assetsync/internal/catalog"
	"github.com/aweris/assetsync/internal/remote"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/sirupsen/logrus"
)

// APIPrefix is where the API is mounted.
const APIPrefix = "/api"

// Options controls what the server exposes.
type Options struct {
	Dir        string
	Extensions []string
	Logger     *logrus.Logger
}

// NewApp builds a Fiber application serving opts.Dir.
func NewApp(opts Options) (*fiber.App, error) {
	if opts.Dir == "" {
		return nil, errors.New("asset directory is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = catalog.DefaultExtensions
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestLogger(opts.Logger))

	h := &handler{opts: opts}
	api := app.Group(APIPrefix)
	api.Get("/"+remote.EnumeratePath, h.enumerate)
	api.Get("/"+remote.GetPath, h.get)

	return app, nil
}

type handler struct {
	opts Options
}

func (h *handler) enumerate(c fiber.Ctx) error {
	entries, err := catalog.Scan(c.Context(), h.opts.Dir, h.opts.Extensions)
	if err != nil {
		h.opts.Logger.WithFields(logrus.Fields{
			"action": "enumerate",
			"dir":    h.opts.Dir,
		}).WithError(err).Error("scan failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "scan_failed"})
	}
	return c.JSON(remote.EnumerateResponse{Resources: catalog.Descriptors(entries)})
}

func (h *handler) get(c fiber.Ctx) error {
	name := c.Query("name")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name_required"})
	}
	if !catalog.Allowed(name, h.opts.Extensions) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "resource_not_found"})
	}

	data, err := catalog.Read(h.opts.Dir, name)
	if err != nil {
		if errors.Is(err, assetsync.ErrResourceNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "resource_not_found"})
		}
		h.opts.Logger.WithFields(logrus.Fields{
			"action":   "get",
			"resource": name,
		}).WithError(err).Error("read failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "read_failed"})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Send(data)
}

func requestLogger(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.WithFields(logrus.Fields{
			"action":   "request",
			"method":   c.Method(),
			"path":     c.Path(),
			"status":   c.Response().StatusCode(),
			"duration": time.Since(start).String(),
		}).Debug("handled request")
		return err
	}
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, app *fiber.App, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}
