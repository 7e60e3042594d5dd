// Package speechmatics streams audio to the Speechmatics realtime
// transcription endpoint. The client opens with StartRecognition,
// sends binary AddAudio frames counted by a sequence number, and ends
// with EndOfStream carrying the last sequence number.
package speechmatics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sttbench/sttbench/pkg/errorsx"
	"github.com/sttbench/sttbench/pkg/frames"
	"github.com/sttbench/sttbench/pkg/logging"
	"github.com/sttbench/sttbench/pkg/session"
)

type Config struct {
	APIKey   string
	BaseURL  string
	Language string
	Encoding string

	SampleRate int

	// MaxDelayS controls how quickly final segments are committed.
	// The service accepts 0.7 to 4.0 seconds; values outside are
	// clamped.
	MaxDelayS float64

	// EndOfUtteranceSilenceS asks the server to detect utterance ends
	// on silence.
	EndOfUtteranceSilenceS float64

	EnablePartials bool
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "wss://eu.rt.speechmatics.com/v2/"
	}
	if c.Encoding == "" {
		c.Encoding = "pcm_s16le"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	return c
}

func (c Config) clampedMaxDelay() float64 {
	switch {
	case c.MaxDelayS < 0.7:
		return 0.7
	case c.MaxDelayS > 4.0:
		return 4.0
	default:
		return c.MaxDelayS
	}
}

type Session struct {
	cfg    Config
	logger *slog.Logger

	state   *session.Tracker
	conn    *websocket.Conn
	writeMu sync.Mutex
	seqNo   int

	events    chan frames.TranscriptEvent
	done      chan struct{}
	closeOnce sync.Once
}

func New(cfg Config, logger *slog.Logger) *Session {
	return &Session{
		cfg:    cfg.withDefaults(),
		logger: logging.NewComponentLogger(logger, "speechmatics_stt"),
		state:  session.NewTracker(),
		events: make(chan frames.TranscriptEvent, 256),
		done:   make(chan struct{}),
	}
}

func (s *Session) Name() string { return "speechmatics" }

type startRecognition struct {
	Message             string              `json:"message"`
	AudioFormat         audioFormat         `json:"audio_format"`
	TranscriptionConfig transcriptionConfig `json:"transcription_config"`
}

type audioFormat struct {
	Type       string `json:"type"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type transcriptionConfig struct {
	Language           string             `json:"language"`
	EnablePartials     bool               `json:"enable_partials"`
	MaxDelay           float64            `json:"max_delay"`
	ConversationConfig conversationConfig `json:"conversation_config"`
}

type conversationConfig struct {
	EndOfUtteranceSilenceTrigger float64 `json:"end_of_utterance_silence_trigger"`
}

// Open dials the endpoint, sends StartRecognition and blocks until the
// server acknowledges with RecognitionStarted.
func (s *Session) Open(ctx context.Context) error {
	header := http.Header{"Authorization": []string{"Bearer " + s.cfg.APIKey}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.BaseURL, header)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("speechmatics dial: %w", err), errorsx.ReasonConnect)
	}

	start := startRecognition{
		Message: "StartRecognition",
		AudioFormat: audioFormat{
			Type:       "raw",
			Encoding:   s.cfg.Encoding,
			SampleRate: s.cfg.SampleRate,
		},
		TranscriptionConfig: transcriptionConfig{
			Language:       s.cfg.Language,
			EnablePartials: s.cfg.EnablePartials,
			MaxDelay:       s.cfg.clampedMaxDelay(),
			ConversationConfig: conversationConfig{
				EndOfUtteranceSilenceTrigger: s.cfg.EndOfUtteranceSilenceS,
			},
		},
	}
	if err := conn.WriteJSON(start); err != nil {
		conn.Close()
		return errorsx.Wrap(fmt.Errorf("speechmatics start recognition: %w", err), errorsx.ReasonConnect)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return errorsx.Wrap(fmt.Errorf("speechmatics handshake read: %w", err), errorsx.ReasonConnect)
		}
		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			conn.Close()
			return errorsx.Wrap(fmt.Errorf("speechmatics handshake: %s", string(data)), errorsx.ReasonConnect)
		}
		if msg.Message == "RecognitionStarted" {
			break
		}
		if msg.Message == "Error" {
			conn.Close()
			return errorsx.Wrap(
				fmt.Errorf("speechmatics error (%s): %s", msg.Type, msg.Reason),
				errorsx.ReasonConnect,
			)
		}
		// Info and Warning messages may precede the acknowledgement.
	}
	_ = conn.SetReadDeadline(time.Time{})

	s.conn = conn
	if err := s.state.Transition(session.StateConnected); err != nil {
		conn.Close()
		return err
	}
	s.logger.Info("recognition started", slog.String("language", s.cfg.Language))

	go s.recvLoop()
	return nil
}

func (s *Session) SendAudio(frame frames.AudioFrame) error {
	if err := s.state.MarkStreaming(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame.RawPayload()); err != nil {
		return errorsx.Wrap(fmt.Errorf("speechmatics send: %w", err), errorsx.ReasonSend)
	}
	s.seqNo++
	return nil
}

type endOfStream struct {
	Message   string `json:"message"`
	LastSeqNo int    `json:"last_seq_no"`
}

// EndAudio sends EndOfStream with the count of AddAudio frames sent.
// The server finishes transcribing and replies with EndOfTranscript.
func (s *Session) EndAudio() error {
	already, err := s.state.MarkFinalizing()
	if err != nil || already {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.logger.Debug("end of stream", slog.Int("last_seq_no", s.seqNo))
	return s.conn.WriteJSON(endOfStream{Message: "EndOfStream", LastSeqNo: s.seqNo})
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
		ev, ok, done, perr := parseServerMessage(data)
		if perr != nil {
			s.logger.Error("server error", slog.String("error", perr.Error()))
			return
		}
		if done {
			s.logger.Debug("end of transcript")
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
	Message string `json:"message"`
	Type    string `json:"type"`
	Reason  string `json:"reason"`
	Results []struct {
		Alternatives []struct {
			Content string `json:"content"`
		} `json:"alternatives"`
	} `json:"results"`
}

// parseServerMessage maps one server JSON message to a transcript
// event. done reports EndOfTranscript; err is set for server-reported
// failures.
func parseServerMessage(data []byte) (ev frames.TranscriptEvent, ok, done bool, err error) {
	var msg serverMessage
	if uerr := json.Unmarshal(data, &msg); uerr != nil {
		return ev, false, false, fmt.Errorf("malformed server message: %w", uerr)
	}
	switch msg.Message {
	case "AddTranscript":
		if text := firstContent(msg); text != "" {
			return frames.NewFinalEvent(text), true, false, nil
		}
		return ev, false, false, nil
	case "AddPartialTranscript":
		if text := firstContent(msg); text != "" {
			return frames.NewPartialEvent(text), true, false, nil
		}
		return ev, false, false, nil
	case "EndOfTranscript":
		return ev, false, true, nil
	case "Error":
		return ev, false, false, fmt.Errorf("speechmatics error (%s): %s", msg.Type, msg.Reason)
	default:
		// AudioAdded, Info, Warning, EndOfUtterance and friends.
		return ev, false, false, nil
	}
}

func firstContent(msg serverMessage) string {
	if len(msg.Results) == 0 || len(msg.Results[0].Alternatives) == 0 {
		return ""
	}
	return msg.Results[0].Alternatives[0].Content
}

var _ session.RealtimeSession = (*Session)(nil)
