package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/logger"
	"github.com/shopstr-eng/shopstr-cache/internal/ratelimit"
	"github.com/shopstr-eng/shopstr-cache/internal/source"
)

// Message labels of the relay subscription protocol
const (
	labelReq    = "REQ"
	labelEvent  = "EVENT"
	labelEOSE   = "EOSE"
	labelClose  = "CLOSE"
	labelClosed = "CLOSED"
	labelNotice = "NOTICE"
)

// Config holds the settings of one relay connection
type Config struct {
	URL string
	// FetchLimit caps the records requested when the filter sets no limit
	FetchLimit   int
	DialTimeout  time.Duration
	MaxFrameSize int64
}

// reqFilter is the wire form of a subscription filter
type reqFilter struct {
	Kinds []domain.Kind `json:"kinds,omitempty"`
	Since *int64        `json:"since,omitempty"`
	Limit int           `json:"limit,omitempty"`
}

type relaySource struct {
	cfg    Config
	proxy  ratelimit.Proxy
	dialer *websocket.Dialer
}

// NewSource creates a Source that reads stored records from a relay.
// Each Fetch opens a connection, subscribes, collects records until the
// relay signals end of stored events, then closes the subscription.
func NewSource(cfg Config, proxy ratelimit.Proxy) source.Source {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &relaySource{
		cfg:   cfg,
		proxy: proxy,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.DialTimeout,
		},
	}
}

// NewSources creates one relay source per URL sharing cfg and proxy
func NewSources(urls []string, cfg Config, proxy ratelimit.Proxy) []source.Source {
	sources := make([]source.Source, 0, len(urls))
	for _, url := range urls {
		c := cfg
		c.URL = url
		sources = append(sources, NewSource(c, proxy))
	}
	return sources
}

func (s *relaySource) Name() string {
	return s.cfg.URL
}

// Fetch subscribes with filter and returns the stored records the relay sends.
// Any transport failure is reported as domain.ErrSourceUnreachable.
func (s *relaySource) Fetch(ctx context.Context, filter source.Filter) ([]domain.Record, error) {
	records, err := ratelimit.Request(ctx, s.proxy, s.cfg.URL, func(ctx context.Context) ([]domain.Record, error) {
		return s.fetch(ctx, filter)
	})
	if err != nil {
		if errors.Is(err, domain.ErrSourceUnreachable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnreachable, s.cfg.URL, err)
	}
	return records, nil
}

func (s *relaySource) fetch(ctx context.Context, filter source.Filter) ([]domain.Record, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrSourceUnreachable, s.cfg.URL, err)
	}
	defer conn.Close()

	if s.cfg.MaxFrameSize > 0 {
		conn.SetReadLimit(s.cfg.MaxFrameSize)
	}

	// unblock the read loop when the caller gives up
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	subID := strings.ToLower(ulid.Make().String())
	if err := conn.WriteJSON([]interface{}{labelReq, subID, s.wireFilter(filter)}); err != nil {
		return nil, s.transportError(ctx, "send subscription", err)
	}

	var records []domain.Record
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, s.transportError(ctx, "read", err)
		}

		var frame []json.RawMessage
		if err := json.Unmarshal(data, &frame); err != nil || len(frame) == 0 {
			logger.DebugCtx(ctx, "Ignoring malformed relay frame", zap.String("relay", s.cfg.URL))
			continue
		}

		var label string
		if err := json.Unmarshal(frame[0], &label); err != nil {
			continue
		}

		switch label {
		case labelEvent:
			rec, ok := s.decodeEvent(ctx, subID, frame)
			if ok {
				records = append(records, rec)
			}

		case labelEOSE:
			if !sameSub(frame, subID) {
				continue
			}
			if err := conn.WriteJSON([]interface{}{labelClose, subID}); err != nil {
				logger.DebugCtx(ctx, "Failed to close relay subscription", zap.String("relay", s.cfg.URL), zap.Error(err))
			}
			return records, nil

		case labelClosed:
			if !sameSub(frame, subID) {
				continue
			}
			return nil, fmt.Errorf("%w: %s closed the subscription: %s", domain.ErrSourceUnreachable, s.cfg.URL, frameString(frame, 2))

		case labelNotice:
			logger.WarnCtx(ctx, "Relay notice",
				zap.String("relay", s.cfg.URL),
				zap.String("notice", frameString(frame, 1)),
			)
		}
	}
}

// decodeEvent extracts the record of an EVENT frame for subID
func (s *relaySource) decodeEvent(ctx context.Context, subID string, frame []json.RawMessage) (domain.Record, bool) {
	if len(frame) < 3 || !sameSub(frame, subID) {
		return domain.Record{}, false
	}

	var rec domain.Record
	if err := json.Unmarshal(frame[2], &rec); err != nil {
		logger.DebugCtx(ctx, "Ignoring undecodable relay event",
			zap.String("relay", s.cfg.URL),
			zap.Error(err),
		)
		return domain.Record{}, false
	}
	rec.SeenOn = []string{s.cfg.URL}
	return rec, true
}

func (s *relaySource) wireFilter(filter source.Filter) reqFilter {
	f := reqFilter{Kinds: filter.Kinds, Limit: filter.Limit}
	if f.Limit <= 0 {
		f.Limit = s.cfg.FetchLimit
	}
	if filter.Since != nil {
		since := filter.Since.Unix()
		f.Since = &since
	}
	return f
}

func (s *relaySource) transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return fmt.Errorf("%w: %s %s: %v", domain.ErrSourceUnreachable, op, s.cfg.URL, err)
}

// sameSub reports whether the frame's subscription id is subID
func sameSub(frame []json.RawMessage, subID string) bool {
	return frameString(frame, 1) == subID
}

// frameString returns element i of frame as a string, or "" if absent
func frameString(frame []json.RawMessage, i int) string {
	if len(frame) <= i {
		return ""
	}
	var s string
	_ = json.Unmarshal(frame[i], &s)
	return s
}
