package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-integrity/internal/middleware"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/response"
	"github.com/stemsi/exstem-integrity/internal/scope"
	"github.com/stemsi/exstem-integrity/internal/service"
	"github.com/stemsi/exstem-integrity/internal/validator"
	ws "github.com/stemsi/exstem-integrity/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams an attempt: autosave, submit and proctoring signals
// over one connection. Only one connection per submission may stream; a
// second one is itself recorded as a multiple_sessions signal.
type WSHandler struct {
	submissionService *service.SubmissionService
	integrityService  *service.IntegrityService
	log               zerolog.Logger
	upgrader          websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	submissionService *service.SubmissionService,
	integrityService *service.IntegrityService,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		submissionService: submissionService,
		integrityService:  integrityService,
		log:               log.With().Str("component", "ws_handler").Logger(),
		upgrader:          buildUpgrader(allowedOrigins),
	}
}

// SubmissionStream godoc
// WS /ws/v1/student/submissions/:submission_id/stream
func (h *WSHandler) SubmissionStream(c *gin.Context) {
	sc := middleware.GetScope(c)
	submissionID, ok := uuidParam(c, "submission_id")
	if !ok {
		return
	}

	// Ownership is checked before the upgrade so failures are plain HTTP.
	sub, err := h.submissionService.Get(c.Request.Context(), sc, submissionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !sc.Can(scope.TakeExam) || !sc.Owns(sub.StudentID) {
		writeError(c, service.ErrForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	connID := uuid.NewString()
	wsLog := h.log.With().
		Str("submission_id", submissionID.String()).
		Str("student_id", sc.UserID.String()).
		Str("conn_id", connID).
		Logger()

	claimed, err := h.integrityService.ClaimStream(ctx, submissionID, connID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Stream claim failed")
		_ = ws.WriteError(conn, string(response.ErrInternal), response.GetMessage(response.ErrInternal))
		return
	}
	if !claimed {
		h.rejectDuplicate(ctx, conn, wsLog, sc, submissionID, c.ClientIP())
		return
	}
	defer func() {
		// Release must run even if the request context is already cancelled.
		if err := h.integrityService.ReleaseStream(context.WithoutCancel(ctx), submissionID, connID); err != nil {
			wsLog.Warn().Err(err).Msg("Stream release failed")
		}
	}()

	wsLog.Info().Msg("Student connected")

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		held, err := h.integrityService.RefreshStream(ctx, submissionID, connID)
		if err != nil {
			wsLog.Warn().Err(err).Msg("Stream refresh failed")
		} else if !held {
			h.rejectDuplicate(ctx, conn, wsLog, sc, submissionID, c.ClientIP())
			return
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(ctx, conn, sc, submissionID, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(ctx, conn, wsLog, sc, submissionID, &msg)
		case ws.ActionEvent:
			h.handleEvent(ctx, conn, sc, submissionID, &msg, c.ClientIP())
		case ws.ActionPing:
			_ = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
	}
}

// rejectDuplicate records the concurrent connection as evidence and closes it.
func (h *WSHandler) rejectDuplicate(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, sc *scope.Scope, submissionID uuid.UUID, ip string) {
	_, err := h.integrityService.RecordEvent(ctx, sc, submissionID, service.EventInput{
		EventType: model.EventMultipleSessions,
		Metadata:  model.EventMetadata{IPAddress: ip, Source: "stream"},
	})
	if err != nil && !errors.Is(err, service.ErrLateEvent) {
		wsLog.Error().Err(err).Msg("Recording multiple_sessions failed")
	}
	wsLog.Warn().Msg("Second stream for submission rejected")

	_ = ws.WriteError(conn, string(response.ErrConflict), "another connection is already streaming this attempt")
	ws.Close(conn, websocket.ClosePolicyViolation, "multiple sessions")
}

func (h *WSHandler) handleAutosave(ctx context.Context, conn *websocket.Conn, sc *scope.Scope, submissionID uuid.UUID, msg *ws.RequestPayload) {
	req := model.AutosaveRequest{DraftAnswers: msg.DraftAnswers}
	if fields := validator.Validate(&req); fields != nil {
		_ = ws.WriteError(conn, string(response.ErrValidation), response.GetMessage(response.ErrValidation))
		return
	}

	res, err := h.submissionService.Autosave(ctx, sc, submissionID, req.DraftAnswers)
	if err != nil {
		writeWSError(conn, err)
		return
	}
	evt := ws.EventSaved
	if res.Superseded {
		evt = ws.EventSuperseded
	}
	_ = ws.WriteTyped(conn, ws.SavedResponse{Event: evt, LastAutoSaveAt: res.LastAutoSaveAt})
}

func (h *WSHandler) handleSubmit(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, sc *scope.Scope, submissionID uuid.UUID, msg *ws.RequestPayload) {
	if msg.Answers != nil {
		if fields := validator.Validate(&model.SubmitRequest{Answers: msg.Answers}); fields != nil {
			_ = ws.WriteError(conn, string(response.ErrValidation), response.GetMessage(response.ErrValidation))
			return
		}
	}

	sub, err := h.submissionService.Submit(ctx, sc, submissionID, msg.Answers)
	if err != nil {
		writeWSError(conn, err)
		return
	}
	wsLog.Info().Msg("Attempt submitted over stream")
	_ = ws.WriteTyped(conn, ws.SubmittedResponse{
		Event:       ws.EventSubmitted,
		Status:      string(sub.Status),
		SubmittedAt: sub.SubmittedAt,
	})
}

func (h *WSHandler) handleEvent(ctx context.Context, conn *websocket.Conn, sc *scope.Scope, submissionID uuid.UUID, msg *ws.RequestPayload, ip string) {
	req := model.RecordEventRequest{
		EventType:       msg.EventType,
		QuestionID:      msg.QuestionID,
		ClientTimestamp: msg.ClientTimestamp,
		Metadata:        msg.Metadata,
	}
	if fields := validator.Validate(&req); fields != nil {
		_ = ws.WriteError(conn, string(response.ErrValidation), response.GetMessage(response.ErrValidation))
		return
	}
	if req.Metadata.IPAddress == "" {
		req.Metadata.IPAddress = ip
	}

	e, err := h.integrityService.RecordEvent(ctx, sc, submissionID, service.EventInput{
		EventType:       req.EventType,
		QuestionID:      req.QuestionID,
		ClientTimestamp: req.ClientTimestamp,
		Metadata:        req.Metadata,
	})
	if err != nil && !errors.Is(err, service.ErrLateEvent) {
		writeWSError(conn, err)
		return
	}
	_ = ws.WriteTyped(conn, ws.RecordedResponse{
		Event:    ws.EventRecorded,
		EventID:  e.ID.String(),
		Severity: string(e.Severity),
		Late:     e.Late,
		At:       e.OccurredAt,
	})
}

// writeWSError reports a service error with the same codes the REST API uses.
func writeWSError(conn *websocket.Conn, err error) {
	code := response.ErrInternal
	if m, ok := classify(err); ok {
		code = m.code
	}
	_ = ws.WriteError(conn, string(code), response.GetMessage(code))
}
