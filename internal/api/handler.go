package api

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/contract-note-reconciler/internal/aggregate"
	"github.com/insightdelivered/contract-note-reconciler/internal/broker"
	"github.com/insightdelivered/contract-note-reconciler/internal/config"
	"github.com/insightdelivered/contract-note-reconciler/internal/extractor"
	"github.com/insightdelivered/contract-note-reconciler/internal/sheet"
	"github.com/insightdelivered/contract-note-reconciler/internal/writer"
)

// Version is reported by the health endpoint.
const Version = "2.0.0"

// ReconcileResponse is the JSON response from the /api/reconcile endpoint.
type ReconcileResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Report  *broker.Report `json:"report,omitempty"`
	CSV     string         `json:"csv,omitempty"`
	Version string         `json:"version,omitempty"`
}

// BrokerInfo describes a registered broker.
type BrokerInfo struct {
	Key           string   `json:"key"`
	Name          string   `json:"name"`
	Fields        []string `json:"fields"`
	TrailingPages int      `json:"trailingPages"`
	Policy        string   `json:"selectionPolicy"`
	OnError       string   `json:"onError"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Config    *config.Config
	Extractor extractor.TableExtractor
	StaticDir string

	log zerolog.Logger
	// one run at a time: runs rewrite the aggregate files
	mu sync.Mutex
}

// NewHandler returns a Handler running reconciliations with cfg and ext.
func NewHandler(cfg *config.Config, ext extractor.TableExtractor, log zerolog.Logger) *Handler {
	return &Handler{Config: cfg, Extractor: ext, log: log}
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", HandleHealth)
	app.Get("/api/brokers", h.HandleBrokers)
	app.Post("/api/reconcile/:broker", h.HandleReconcile)

	if h.StaticDir != "" {
		app.Static("/", h.StaticDir)
	}
}

// HandleHealth reports liveness.
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": Version,
	})
}

// HandleBrokers lists the brokers with their configured policies.
func (h *Handler) HandleBrokers(c *fiber.Ctx) error {
	infos := make([]BrokerInfo, 0, len(broker.Names()))
	for _, key := range broker.Names() {
		def, _ := broker.Lookup(key)
		cfg, err := broker.NewConfig(def, h.Config, h.Config.Broker(key))
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, err.Error())
		}
		infos = append(infos, BrokerInfo{
			Key:           key,
			Name:          cfg.Name,
			Fields:        cfg.Fields,
			TrailingPages: cfg.TrailingPages,
			Policy:        cfg.Policy.String(),
			OnError:       cfg.OnError.String(),
		})
	}
	return c.JSON(infos)
}

// HandleReconcile runs a reconciliation for the broker in the path. Query
// parameters start, end, dry_run and max override the configured run.
func (h *Handler) HandleReconcile(c *fiber.Ctx) (err error) {
	// Recover from any panics to prevent server crash
	defer func() {
		if rec := recover(); rec != nil {
			err = writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("Internal server error (recovered from crash): %v", rec))
		}
	}()

	key := c.Params("broker")
	maxCount := c.QueryInt("max", 0)
	if maxCount < 0 {
		return writeError(c, fiber.StatusBadRequest, "max must not be negative")
	}
	opts := broker.RunOptions{
		StartDate: c.Query("start", h.Config.StartDate),
		EndDate:   c.Query("end", h.Config.EndDate),
		DryRun:    c.QueryBool("dry_run", false),
		MaxCount:  maxCount,
	}

	b, err := broker.Open(key, h.Config, h.Extractor, h.log)
	switch {
	case errors.Is(err, broker.ErrUnknownBroker):
		return writeError(c, fiber.StatusNotFound, err.Error())
	case err != nil:
		return writeError(c, fiber.StatusBadRequest, err.Error())
	}

	h.mu.Lock()
	rep, err := b.ComputeAll(opts)
	h.mu.Unlock()
	if err != nil {
		status := fiber.StatusUnprocessableEntity
		if errors.Is(err, aggregate.ErrFolderNotFound) || errors.Is(err, sheet.ErrFileNotFound) {
			status = fiber.StatusNotFound
		}
		h.log.Error().Err(err).Str("broker", key).Msg("reconciliation failed")
		return writeError(c, status, err.Error())
	}

	var csvBuf bytes.Buffer
	csvWriter := &writer.CSVWriter{IncludeHeader: c.QueryBool("header", true)}
	if err := csvWriter.Write(&csvBuf, rep); err != nil {
		return writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("CSV generation failed: %v", err))
	}

	return c.JSON(ReconcileResponse{
		Success: true,
		Report:  rep,
		CSV:     csvBuf.String(),
		Version: Version,
	})
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ReconcileResponse{
		Success: false,
		Error:   msg,
	})
}
