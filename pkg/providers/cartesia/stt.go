// Package cartesia streams audio to the Cartesia Ink-Whisper realtime
// speech-to-text endpoint. Audio travels as binary websocket frames; a
// text "done" command flushes and ends the session.
package cartesia

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sttbench/sttbench/pkg/errorsx"
	"github.com/sttbench/sttbench/pkg/frames"
	"github.com/sttbench/sttbench/pkg/logging"
	"github.com/sttbench/sttbench/pkg/session"
)

type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Encoding string

	SampleRate int

	// MinVolume is the VAD threshold in [0, 1].
	MinVolume float64

	// MaxSilenceDurationS sets the endpointing silence boundary.
	MaxSilenceDurationS float64
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "wss://api.cartesia.ai/stt/websocket"
	}
	if c.Model == "" {
		c.Model = "ink-whisper"
	}
	if c.Encoding == "" {
		c.Encoding = "pcm_s16le"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.MinVolume == 0 {
		c.MinVolume = 0.15
	}
	return c
}

type Session struct {
	cfg    Config
	logger *slog.Logger

	state   *session.Tracker
	conn    *websocket.Conn
	writeMu sync.Mutex

	events    chan frames.TranscriptEvent
	done      chan struct{}
	closeOnce sync.Once
}

func New(cfg Config, logger *slog.Logger) *Session {
	return &Session{
		cfg:    cfg.withDefaults(),
		logger: logging.NewComponentLogger(logger, "cartesia_stt"),
		state:  session.NewTracker(),
		events: make(chan frames.TranscriptEvent, 256),
		done:   make(chan struct{}),
	}
}

func (s *Session) Name() string { return "cartesia" }

func (s *Session) endpoint() string {
	q := url.Values{}
	q.Set("model", s.cfg.Model)
	q.Set("language", s.cfg.Language)
	q.Set("encoding", s.cfg.Encoding)
	q.Set("sample_rate", strconv.Itoa(s.cfg.SampleRate))
	q.Set("min_volume", strconv.FormatFloat(s.cfg.MinVolume, 'f', -1, 64))
	q.Set("max_silence_duration_secs", strconv.FormatFloat(s.cfg.MaxSilenceDurationS, 'f', -1, 64))
	return s.cfg.BaseURL + "?" + q.Encode()
}

// Open dials the endpoint. There is no handshake message; the first
// server message is already a transcript or acknowledgement.
func (s *Session) Open(ctx context.Context) error {
	header := http.Header{"X-API-Key": []string{s.cfg.APIKey}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.endpoint(), header)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("cartesia dial: %w", err), errorsx.ReasonConnect)
	}
	s.conn = conn
	if err := s.state.Transition(session.StateConnected); err != nil {
		conn.Close()
		return err
	}
	s.logger.Info("session started", slog.String("model", s.cfg.Model))

	go s.recvLoop()
	return nil
}

func (s *Session) SendAudio(frame frames.AudioFrame) error {
	if err := s.state.MarkStreaming(); err != nil {
		return err
	}
	s.writeMu.Lock()
	err := s.conn.WriteMessage(websocket.BinaryMessage, frame.RawPayload())
	s.writeMu.Unlock()
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("cartesia send: %w", err), errorsx.ReasonSend)
	}
	return nil
}

// EndAudio sends the "done" command. The server flushes remaining
// audio, replies with the last transcripts and a done message, then
// closes.
func (s *Session) EndAudio() error {
	already, err := s.state.MarkFinalizing()
	if err != nil || already {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, []byte("done"))
}

func (s *Session) Events() <-chan frames.TranscriptEvent { return s.events }

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.state.MarkClosed()
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close()
		} else {
			close(s.events)
		}
	})
	return nil
}

func (s *Session) recvLoop() {
	defer close(s.events)
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && s.state.State() != session.StateClosed {
				s.logger.Warn("connection closed unexpectedly", slog.String("error", err.Error()))
			}
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}
		ev, ok, done, perr := parseServerMessage(data)
		if perr != nil {
			s.logger.Error("server error", slog.String("error", perr.Error()))
			return
		}
		if done {
			return
		}
		if !ok {
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

type serverMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
	Error   string `json:"error"`
}

// parseServerMessage maps one server JSON message to a transcript
// event. done reports the end-of-stream acknowledgement; err is set
// for server-reported failures.
func parseServerMessage(data []byte) (ev frames.TranscriptEvent, ok, done bool, err error) {
	var msg serverMessage
	if uerr := json.Unmarshal(data, &msg); uerr != nil {
		return ev, false, false, fmt.Errorf("malformed server message: %w", uerr)
	}
	switch {
	case msg.Type == "transcript" && msg.IsFinal:
		return frames.NewFinalEvent(msg.Text), true, false, nil
	case msg.Type == "transcript":
		return frames.NewPartialEvent(msg.Text), true, false, nil
	case msg.Type == "flush_done":
		return ev, false, false, nil
	case msg.Type == "done":
		return ev, false, true, nil
	case msg.Error != "":
		return ev, false, false, fmt.Errorf("cartesia error (%s): %s", msg.Type, msg.Error)
	default:
		return ev, false, false, nil
	}
}

var _ session.RealtimeSession = (*Session)(nil)
