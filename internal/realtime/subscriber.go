package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"task-board-sync/internal/board"
	"task-board-sync/internal/models"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Subscriber keeps a board in step with the changes every client makes,
// this user's other clients included.
type Subscriber struct {
	baseURL   string
	projectID string
	token     func() string
	board     *board.Store
	dialer    *websocket.Dialer
	log       *log.Logger

	// OnNotification, when set, receives notifications addressed to us.
	OnNotification func(models.Notification)
}

// NewSubscriber follows projectID's topic on the server at baseURL. Echoes
// of this client's own commits are applied like any other change; they carry
// the server copy the commit already adopted.
func NewSubscriber(baseURL, projectID string, token func() string, b *board.Store, logger *log.Logger) *Subscriber {
	if logger == nil {
		panic("realtime.NewSubscriber: logger is nil")
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &Subscriber{
		baseURL:   baseURL,
		projectID: projectID,
		token:     token,
		board:     b,
		dialer:    websocket.DefaultDialer,
		log:       logger,
	}
}

func (s *Subscriber) endpoint() (string, error) {
	u, err := url.Parse(strings.TrimRight(s.baseURL, "/") + "/api/ws")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if s.projectID != "" {
		q := u.Query()
		q.Set("projectId", s.projectID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Run reads events until ctx is done or the connection drops. A cancelled
// ctx returns nil.
func (s *Subscriber) Run(ctx context.Context) error {
	endpoint, err := s.endpoint()
	if err != nil {
		return err
	}
	header := http.Header{}
	if tok := s.token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}
	conn, resp, err := s.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial: %s: %w", resp.Status, err)
		}
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	s.log.WithField("project", s.projectID).Debug("board subscription open")
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
				return nil
			}
			return fmt.Errorf("websocket read: %w", err)
		}
		s.Apply(ev)
	}
}

// Apply folds one event into the board. It reports whether anything changed.
func (s *Subscriber) Apply(ev Event) bool {
	entry := s.log.WithFields(log.Fields{"type": ev.Type, "task": ev.TaskID})
	if ev.Type == EventNotificationCreated {
		if ev.Notification != nil && s.OnNotification != nil {
			s.OnNotification(*ev.Notification)
		}
		return false
	}
	if s.projectID != "" && ev.ProjectID != "" && ev.ProjectID != s.projectID {
		return false
	}
	switch ev.Type {
	case EventTaskCreated, EventTaskUpdated:
		if ev.Task == nil {
			return false
		}
		s.board.Upsert(*ev.Task)
		entry.Debug("remote change applied")
		return true
	case EventTaskDeleted:
		_, ok := s.board.Remove(ev.TaskID)
		return ok
	default:
		entry.Debug("unknown event")
		return false
	}
}
