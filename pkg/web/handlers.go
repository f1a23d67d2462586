package web

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-fishid/pkg/media"
	"github.com/teslashibe/go-fishid/pkg/protocol"
	"github.com/teslashibe/go-fishid/pkg/recognize"
	"github.com/teslashibe/go-fishid/pkg/segment"
)

// IdentifyResponse is returned by the upload and capture endpoints.
type IdentifyResponse struct {
	Results    string            `json:"results"`
	Document   *segment.Document `json:"document"`
	Ticket     uint64            `json:"ticket"`
	Superseded bool              `json:"superseded"`
}

// CaptureRequest is the body of the capture endpoints.
type CaptureRequest struct {
	PreferMobile bool   `json:"prefer_mobile"`
	SessionID    string `json:"session_id"`
}

// CaptureResponse describes an opened capture session.
type CaptureResponse struct {
	SessionID string `json:"session_id"`
	Facing    string `json:"facing"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// handleHealth reports liveness and what is wired.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	m := fiber.Map{
		"status":   "ok",
		"viewers":  s.results.ClientCount(),
		"sessions": s.sessions.Len(),
		"capture":  "disabled",
	}
	if s.acquirer != nil {
		m["capture"] = s.acquirer.State().String()
	}
	if s.relay != nil {
		m["cameras"] = s.relay.CameraCount()
	}
	return c.JSON(m)
}

func (s *Server) handleMethodNotAllowed(c *fiber.Ctx) error {
	c.Set(fiber.HeaderAllow, fiber.MethodPost)
	return errorJSON(c, fiber.StatusMethodNotAllowed, "Method Not Allowed")
}

// handleRecognize identifies an uploaded image (multipart field "file").
func (s *Server) handleRecognize(c *fiber.Ctx) error {
	fh, err := c.FormFile(recognize.FileField)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "No file uploaded")
	}
	f, err := fh.Open()
	if err != nil {
		s.logger.Error("open upload", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Error parsing file")
	}
	defer f.Close()

	p, err := media.SelectFile(f, fh.Header.Get(fiber.HeaderContentType))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, media.UserMessage(err))
	}
	return s.identify(c, p)
}

// handleCaptureOpen opens the live camera.
func (s *Server) handleCaptureOpen(c *fiber.Ctx) error {
	if s.acquirer == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, media.UserMessage(media.ErrCameraUnavailable))
	}
	var req CaptureRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.config.OpenTimeout)
	defer cancel()

	sess, err := s.acquirer.OpenCapture(ctx, req.PreferMobile)
	if err != nil {
		return s.mediaError(c, err)
	}
	cons := sess.Constraints()
	return c.Status(fiber.StatusCreated).JSON(CaptureResponse{
		SessionID: sess.ID(),
		Facing:    string(cons.Facing),
		Width:     cons.Width,
		Height:    cons.Height,
	})
}

// handleCaptureFrame snapshots the open session and identifies the frame.
func (s *Server) handleCaptureFrame(c *fiber.Ctx) error {
	if s.acquirer == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, media.UserMessage(media.ErrCameraUnavailable))
	}
	var req CaptureRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	sess := s.acquirer.Active()
	if sess == nil || (req.SessionID != "" && req.SessionID != sess.ID()) {
		return s.mediaError(c, media.ErrNoActiveSession)
	}

	p, err := s.acquirer.CaptureFrame(c.UserContext(), sess)
	if err != nil {
		return s.mediaError(c, err)
	}
	return s.identify(c, p)
}

// handleCaptureClose releases the open session. Always 204.
func (s *Server) handleCaptureClose(c *fiber.Ctx) error {
	if s.acquirer != nil {
		var req CaptureRequest
		if len(c.Body()) > 0 {
			c.BodyParser(&req)
		}
		if sess := s.acquirer.Active(); sess != nil && (req.SessionID == "" || req.SessionID == sess.ID()) {
			s.acquirer.CloseCapture(sess)
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleResult returns the identification currently displayed for the
// caller's session.
func (s *Server) handleResult(c *fiber.Ctx) error {
	r, ok := s.sessions.Get(c.Get(SessionHeader)).Current()
	if !ok {
		return errorJSON(c, fiber.StatusNotFound, "No result yet")
	}
	return c.JSON(r)
}

// identify recognizes p for the caller's session. Only the newest
// submission of a session is displayed and broadcast; older ones still get
// their answer back, marked superseded.
func (s *Server) identify(c *fiber.Ctx, p media.Payload) error {
	session := c.Get(SessionHeader)
	if session == "" {
		session = recognize.DefaultSession
	}
	latest := s.sessions.Get(session)
	ticket := latest.Begin()

	raw, err := s.orchestrator.Recognize(c.UserContext(), p)
	if err != nil {
		if errors.Is(err, media.ErrEmptyInput) {
			return errorJSON(c, fiber.StatusBadRequest, media.UserMessage(err))
		}
		return errorJSON(c, fiber.StatusBadGateway, recognize.UserMessage(err))
	}

	doc := s.orchestrator.Segment(raw)
	superseded := !latest.Commit(ticket, raw, doc)
	if superseded {
		s.logger.Info("result superseded", "session", session, "ticket", ticket)
	} else if msg, err := protocol.NewResultMessage(session, ticket, raw, doc); err == nil {
		s.results.BroadcastMessage(msg)
	}

	return c.JSON(IdentifyResponse{
		Results:    raw,
		Document:   doc,
		Ticket:     ticket,
		Superseded: superseded,
	})
}

// mediaError maps an acquisition failure to a status and its user message.
func (s *Server) mediaError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, media.ErrPermissionDenied):
		status = fiber.StatusForbidden
	case errors.Is(err, media.ErrDeviceNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, media.ErrDeviceBusy), errors.Is(err, media.ErrNoActiveSession):
		status = fiber.StatusConflict
	case errors.Is(err, media.ErrCameraUnavailable), errors.Is(err, media.ErrShutdown):
		status = fiber.StatusServiceUnavailable
	}
	s.logger.Warn("capture failed", "status", status, "error", err)
	return errorJSON(c, status, media.UserMessage(err))
}
