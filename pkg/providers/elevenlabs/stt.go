// Package elevenlabs streams audio to the ElevenLabs realtime
// speech-to-text endpoint. Audio travels as base64 inside JSON text
// messages; transcripts come back as partial_transcript and
// committed_transcript messages.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sttbench/sttbench/pkg/errorsx"
	"github.com/sttbench/sttbench/pkg/frames"
	"github.com/sttbench/sttbench/pkg/logging"
	"github.com/sttbench/sttbench/pkg/session"
)

const (
	msgSessionStarted        = "session_started"
	msgPartialTranscript     = "partial_transcript"
	msgCommittedTranscript   = "committed_transcript"
	msgCommittedTranscriptTS = "committed_transcript_with_timestamps"
)

// errorMessageTypes are server message types that terminate the session.
var errorMessageTypes = map[string]bool{
	"scribeError":              true,
	"scribeAuthError":          true,
	"scribeQuotaExceededError": true,
	"queue_overflow":           true,
}

type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string

	SampleRate     int
	CommitStrategy string

	VADSilenceThresholdS float64
	VADThreshold         float64
	MinSilenceDurationMS int
	MinSpeechDurationMS  int
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "wss://api.elevenlabs.io/v1/speech-to-text/realtime"
	}
	if c.Model == "" {
		c.Model = "scribe_v2_realtime"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.CommitStrategy == "" {
		c.CommitStrategy = "vad"
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
		logger: logging.NewComponentLogger(logger, "elevenlabs_stt"),
		state:  session.NewTracker(),
		events: make(chan frames.TranscriptEvent, 256),
		done:   make(chan struct{}),
	}
}

func (s *Session) Name() string { return "elevenlabs" }

func (s *Session) endpoint() string {
	q := url.Values{}
	q.Set("model_id", s.cfg.Model)
	q.Set("audio_format", fmt.Sprintf("pcm_%d", s.cfg.SampleRate))
	q.Set("commit_strategy", s.cfg.CommitStrategy)
	q.Set("language_code", s.cfg.Language)
	q.Set("vad_silence_threshold_secs", strconv.FormatFloat(s.cfg.VADSilenceThresholdS, 'f', -1, 64))
	q.Set("vad_threshold", strconv.FormatFloat(s.cfg.VADThreshold, 'f', -1, 64))
	q.Set("min_silence_duration_ms", strconv.Itoa(s.cfg.MinSilenceDurationMS))
	q.Set("min_speech_duration_ms", strconv.Itoa(s.cfg.MinSpeechDurationMS))
	return s.cfg.BaseURL + "?" + q.Encode()
}

// Open dials the endpoint and verifies the session_started handshake
// before any audio flows.
func (s *Session) Open(ctx context.Context) error {
	header := http.Header{"xi-api-key": []string{s.cfg.APIKey}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.endpoint(), header)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("elevenlabs dial: %w", err), errorsx.ReasonConnect)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return errorsx.Wrap(fmt.Errorf("elevenlabs handshake read: %w", err), errorsx.ReasonConnect)
	}
	var hello serverMessage
	if err := json.Unmarshal(data, &hello); err != nil || hello.MessageType != msgSessionStarted {
		conn.Close()
		return errorsx.Wrap(
			fmt.Errorf("elevenlabs session did not start: %s", string(data)),
			errorsx.ReasonConnect,
		)
	}
	_ = conn.SetReadDeadline(time.Time{})

	s.conn = conn
	if err := s.state.Transition(session.StateConnected); err != nil {
		conn.Close()
		return err
	}
	s.logger.Info("session started", slog.String("model", s.cfg.Model))

	go s.recvLoop()
	return nil
}

type audioChunk struct {
	MessageType string `json:"message_type"`
	AudioBase64 string `json:"audio_base_64"`
	SampleRate  int    `json:"sample_rate"`
}

func (s *Session) SendAudio(frame frames.AudioFrame) error {
	if err := s.state.MarkStreaming(); err != nil {
		return err
	}
	payload, err := json.Marshal(audioChunk{
		MessageType: "input_audio_chunk",
		AudioBase64: base64.StdEncoding.EncodeToString(frame.RawPayload()),
		SampleRate:  frame.Rate(),
	})
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	err = s.conn.WriteMessage(websocket.TextMessage, payload)
	s.writeMu.Unlock()
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("elevenlabs send: %w", err), errorsx.ReasonSend)
	}
	return nil
}

// EndAudio starts a graceful close handshake. The server flushes any
// pending commit before completing it; the receive loop keeps draining
// until the connection closes.
func (s *Session) EndAudio() error {
	already, err := s.state.MarkFinalizing()
	if err != nil || already {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(5*time.Second),
	)
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
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && s.state.State() != session.StateClosed {
				s.logger.Warn("connection closed unexpectedly", slog.String("error", err.Error()))
			}
			return
		}
		ev, ok, perr := parseServerMessage(data)
		if perr != nil {
			s.logger.Error("server error", slog.String("error", perr.Error()))
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
	MessageType string `json:"message_type"`
	Text        string `json:"text"`
	Message     string `json:"message"`
}

// parseServerMessage maps one server JSON message to a transcript
// event. ok is false for handshake and housekeeping messages; err is
// set for terminal error messages.
func parseServerMessage(data []byte) (ev frames.TranscriptEvent, ok bool, err error) {
	var msg serverMessage
	if uerr := json.Unmarshal(data, &msg); uerr != nil {
		return ev, false, fmt.Errorf("malformed server message: %w", uerr)
	}
	switch {
	case msg.MessageType == msgPartialTranscript:
		return frames.NewPartialEvent(msg.Text), true, nil
	case msg.MessageType == msgCommittedTranscript, msg.MessageType == msgCommittedTranscriptTS:
		return frames.NewFinalEvent(msg.Text), true, nil
	case errorMessageTypes[msg.MessageType]:
		detail := msg.Message
		if detail == "" {
			detail = string(data)
		}
		return ev, false, fmt.Errorf("elevenlabs error (%s): %s", msg.MessageType, detail)
	default:
		return ev, false, nil
	}
}

var _ session.RealtimeSession = (*Session)(nil)
