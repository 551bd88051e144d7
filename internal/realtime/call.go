package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/intervue/backend/internal/call"
	"github.com/intervue/backend/internal/middleware"
	"github.com/intervue/backend/internal/models"
	"github.com/intervue/backend/internal/voice"
	"github.com/intervue/backend/pkg/response"
)

// EndAbandoned marks call logs whose socket closed before the call finished.
const EndAbandoned = "abandoned"

const dbTimeout = 5 * time.Second

// InterviewLoader loads the interview a call runs.
type InterviewLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Interview, error)
}

// FeedbackLookup finds an earlier assessment to replace.
type FeedbackLookup interface {
	GetByInterviewAndUser(ctx context.Context, interviewID, userID uuid.UUID) (*models.Feedback, error)
}

// CallRecorder writes call log rows.
type CallRecorder interface {
	Start(ctx context.Context, l *models.CallLog) error
	Finish(ctx context.Context, id uuid.UUID, endedAt time.Time, reason string, turns int) error
}

// CallServerConfig wires a CallServer. Feedback lookups and call logs are optional.
type CallServerConfig struct {
	Hub         *Hub
	Interviews  InterviewLoader
	Existing    FeedbackLookup
	Calls       CallRecorder
	Feedback    call.FeedbackCreator
	NewProvider func() voice.Provider
	Call        call.Config
	// CommandRate and CommandBurst limit inbound commands per connection.
	CommandRate  rate.Limit
	CommandBurst int
	Logger       *zap.Logger
}

// CallServer upgrades browser connections and runs one call session per connection.
type CallServer struct {
	cfg    CallServerConfig
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewCallServer builds the call endpoint.
func NewCallServer(cfg CallServerConfig) *CallServer {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.CommandRate == 0 {
		cfg.CommandRate = 5
	}
	if cfg.CommandBurst == 0 {
		cfg.CommandBurst = 10
	}
	return &CallServer{cfg: cfg, logger: cfg.Logger}
}

type statusPayload struct {
	InterviewID string      `json:"interview_id,omitempty"`
	Mode        call.Mode   `json:"mode"`
	Status      call.Status `json:"status"`
}

// ServeCall handles GET /ws/call?mode=interview&interview_id=... (or mode=generate).
// It must run behind middleware.JWTQuery.
func (s *CallServer) ServeCall(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	params, err := s.params(c, userID)
	if err != nil {
		return
	}

	client := newClient(userID, s.cfg.Hub, rate.NewLimiter(s.cfg.CommandRate, s.cfg.CommandBurst), s.logger)
	var (
		logID    uuid.UUID
		finished atomic.Bool
	)
	ctrl, err := call.NewController(params, s.cfg.Call, call.Dependencies{
		Provider:  s.cfg.NewProvider(),
		Feedback:  s.cfg.Feedback,
		Navigator: client,
		Logger:    s.logger,
		Hooks: call.Hooks{
			OnStatus: func(st call.Status) {
				s.cfg.Hub.Publish(userID, EventCallStatus, statusPayload{InterviewID: params.InterviewID, Mode: params.Mode, Status: st})
			},
			OnTurn: func(t models.TranscriptTurn) {
				client.Send(EventTranscript, t)
			},
			OnFinish: func(sum call.Summary) {
				finished.Store(true)
				client.Send(EventCallEnded, gin.H{"reason": sum.Reason, "turns": sum.Turns})
				id := logID
				go s.finishLog(id, sum.EndedAt, string(sum.Reason), sum.Turns)
			},
			OnProviderError: func(err error) {
				client.Send(EventCallError, gin.H{"message": err.Error()})
			},
		},
	})
	if err != nil {
		if errors.Is(err, call.ErrInvalidParams) {
			response.BadRequest(c, err.Error())
		} else {
			s.logger.Error("call setup failed", zap.Error(err))
			response.Internal(c, "failed to set up call")
		}
		return
	}
	client.ctrl = ctrl
	client.onStart = func() error {
		if s.cfg.Calls == nil {
			return nil
		}
		l := &models.CallLog{UserID: userID, Mode: string(params.Mode), StartedAt: time.Now()}
		if params.InterviewID != "" {
			if id, err := uuid.Parse(params.InterviewID); err == nil {
				l.InterviewID = &id
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()
		if err := s.cfg.Calls.Start(ctx, l); err != nil {
			return err
		}
		logID = l.ID
		return nil
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		ctrl.Close()
		return
	}
	client.conn = conn
	s.cfg.Hub.Register(client)
	go client.writePump()
	client.readPump()

	turns := 0
	if snap, ok := ctrl.Snapshot(); ok {
		turns = len(snap.Transcript)
	}
	ctrl.Close()
	if !finished.Load() && logID != uuid.Nil {
		s.finishLog(logID, time.Now(), EndAbandoned, turns)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctrl.Wait()
	}()
}

func (s *CallServer) params(c *gin.Context, userID uuid.UUID) (call.Params, error) {
	params := call.Params{
		UserID:   userID.String(),
		UserName: middleware.GetUserName(c),
		Mode:     call.Mode(c.DefaultQuery("mode", string(call.ModeInterview))),
	}
	if params.Mode != call.ModeInterview {
		return params, nil
	}

	interviewID, err := uuid.Parse(c.Query("interview_id"))
	if err != nil {
		response.BadRequest(c, "invalid interview_id")
		return params, err
	}
	ctx := c.Request.Context()
	iv, err := s.cfg.Interviews.GetByID(ctx, interviewID)
	if err != nil {
		response.Internal(c, "failed to load interview")
		return params, err
	}
	if iv == nil {
		response.NotFound(c, "interview not found")
		return params, errors.New("interview not found")
	}
	params.InterviewID = iv.ID.String()
	params.Questions = iv.Questions

	if s.cfg.Existing != nil {
		f, err := s.cfg.Existing.GetByInterviewAndUser(ctx, interviewID, userID)
		if err != nil {
			s.logger.Warn("existing feedback lookup failed", zap.String("interview_id", params.InterviewID), zap.Error(err))
		} else if f != nil {
			params.FeedbackID = f.ID.String()
		}
	}
	return params, nil
}

func (s *CallServer) finishLog(id uuid.UUID, endedAt time.Time, reason string, turns int) {
	if s.cfg.Calls == nil || id == uuid.Nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	if err := s.cfg.Calls.Finish(ctx, id, endedAt, reason, turns); err != nil {
		s.logger.Warn("call log finish failed", zap.String("call_id", id.String()), zap.Error(err))
	}
}

// Wait blocks until feedback submissions of closed calls complete.
func (s *CallServer) Wait() {
	s.wg.Wait()
}
