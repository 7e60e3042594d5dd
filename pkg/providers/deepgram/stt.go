// Package deepgram streams audio to Deepgram's live transcription API
// through the official SDK. Audio is piped into the SDK's streaming
// writer; transcript callbacks are translated into ordered events.
package deepgram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/sttbench/sttbench/pkg/errorsx"
	"github.com/sttbench/sttbench/pkg/frames"
	"github.com/sttbench/sttbench/pkg/logging"
	"github.com/sttbench/sttbench/pkg/session"
)

type Config struct {
	APIKey   string
	Model    string
	Language string
	Encoding string

	SampleRate int
	Interim    bool

	// UtteranceEndMS enables native utterance-end detection.
	UtteranceEndMS int

	// FlushGrace is how long to keep the connection open after the last
	// audio so pending finals can arrive before the stream is stopped.
	FlushGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "nova-2"
	}
	if c.Encoding == "" {
		c.Encoding = "linear16"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.FlushGrace == 0 {
		c.FlushGrace = 3 * time.Second
	}
	return c
}

type Session struct {
	cfg    Config
	logger *slog.Logger

	state    *session.Tracker
	dgClient *client.WSCallback
	cancel   context.CancelFunc

	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter

	events    chan frames.TranscriptEvent
	done      chan struct{}
	closeOnce sync.Once
	eventsEnd sync.Once
}

func New(cfg Config, logger *slog.Logger) *Session {
	return &Session{
		cfg:    cfg.withDefaults(),
		logger: logging.NewComponentLogger(logger, "deepgram_stt"),
		state:  session.NewTracker(),
		events: make(chan frames.TranscriptEvent, 256),
		done:   make(chan struct{}),
	}
}

func (s *Session) Name() string { return "deepgram" }

// Open creates the SDK client, connects and starts the pipe copier
// that forwards audio into the websocket.
func (s *Session) Open(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.pipeReader, s.pipeWriter = io.Pipe()

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          s.cfg.Model,
		Language:       s.cfg.Language,
		Encoding:       s.cfg.Encoding,
		SampleRate:     s.cfg.SampleRate,
		InterimResults: s.cfg.Interim,
		SmartFormat:    true,
	}
	if s.cfg.UtteranceEndMS > 0 {
		transcriptOptions.UtteranceEndMs = fmt.Sprintf("%d", s.cfg.UtteranceEndMS)
	}

	cb := &callback{parent: s}
	dgClient, err := client.NewWSUsingCallback(ctx, s.cfg.APIKey, clientOptions, transcriptOptions, cb)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("deepgram client: %w", err), errorsx.ReasonConnect)
	}
	s.dgClient = dgClient

	if connected := s.dgClient.Connect(); !connected {
		return errorsx.Wrap(fmt.Errorf("deepgram connection failed"), errorsx.ReasonConnect)
	}
	if err := s.state.Transition(session.StateConnected); err != nil {
		s.dgClient.Stop()
		return err
	}
	s.logger.Info("session started", slog.String("model", s.cfg.Model))

	go func() {
		if err := s.dgClient.Stream(s.pipeReader); err != nil && ctx.Err() == nil {
			s.logger.Warn("stream ended", slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (s *Session) SendAudio(frame frames.AudioFrame) error {
	if err := s.state.MarkStreaming(); err != nil {
		return err
	}
	if _, err := s.pipeWriter.Write(frame.RawPayload()); err != nil {
		return errorsx.Wrap(fmt.Errorf("deepgram send: %w", err), errorsx.ReasonSend)
	}
	return nil
}

// EndAudio closes the audio pipe and schedules the connection stop
// after the flush grace, giving the server time to commit the last
// utterance.
func (s *Session) EndAudio() error {
	already, err := s.state.MarkFinalizing()
	if err != nil || already {
		return err
	}
	if err := s.pipeWriter.Close(); err != nil {
		return err
	}
	go func() {
		select {
		case <-time.After(s.cfg.FlushGrace):
		case <-s.done:
			return
		}
		_ = s.Close()
	}()
	return nil
}

func (s *Session) Events() <-chan frames.TranscriptEvent { return s.events }

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.state.MarkClosed()
		close(s.done)
		if s.pipeWriter != nil {
			_ = s.pipeWriter.Close()
		}
		if s.dgClient != nil {
			s.dgClient.Stop()
		}
		if s.cancel != nil {
			s.cancel()
		}
	})
	return nil
}

// endEvents closes the event stream. Only ever invoked on the SDK
// reader goroutine so it cannot race an in-flight emit.
func (s *Session) endEvents() {
	s.eventsEnd.Do(func() { close(s.events) })
}

func (s *Session) emit(ev frames.TranscriptEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// callback receives SDK events on the websocket reader goroutine.
type callback struct {
	parent *Session
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.parent.logger.Debug("connection opened")
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	transcript := mr.Channel.Alternatives[0].Transcript
	if transcript == "" {
		return nil
	}
	if mr.IsFinal || mr.SpeechFinal {
		c.parent.logger.Debug("transcript committed", slog.String("text", transcript))
		c.parent.emit(frames.NewFinalEvent(transcript))
	} else {
		c.parent.emit(frames.NewPartialEvent(transcript))
	}
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	c.parent.logger.Debug("metadata", slog.String("request_id", md.RequestID))
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	c.parent.logger.Debug("utterance end")
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.parent.logger.Debug("connection closed")
	c.parent.endEvents()
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.logger.Error("server error",
		slog.String("code", er.ErrCode),
		slog.String("message", er.ErrMsg))
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("unhandled event", slog.String("data", string(byData)))
	return nil
}

var _ session.RealtimeSession = (*Session)(nil)
