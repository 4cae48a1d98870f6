package server

import (
	"context"

	"github.com/onnwee/chanop/bot"
	"github.com/onnwee/chanop/db"
)

// Controller is the part of bot.Controller the HTTP API drives.
type Controller interface {
	IsConnected() bool
	Status(ctx context.Context) (bot.Status, error)
	Reload()
	Update()
}

// AuditReader lists recent audit records.
type AuditReader interface {
	Recent(ctx context.Context, channel string, limit int) ([]db.AuditRow, error)
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctl   Controller
	audit AuditReader
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctl Controller, audit AuditReader) *Handlers {
	return &Handlers{ctl: ctl, audit: audit}
}
