package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
	"github.com/kirillkom/vinuni-assistant/internal/infrastructure/resilience"
)

// AnswerHandler resolves one question. It must not fail; failures are part
// of the returned result.
type AnswerHandler func(ctx context.Context, question string) domain.ResolutionResult

// AskRequest is the request payload on the questions subject. A payload that
// is not JSON is treated as the question text itself.
type AskRequest struct {
	RequestID string `json:"request_id,omitempty"`
	Question  string `json:"question"`
}

// Transport carries questions to workers using NATS request-reply.
type Transport struct {
	conn           *nats.Conn
	subject        string
	queueGroup     string
	requestTimeout time.Duration
	handlerTimeout time.Duration
	executor       *resilience.Executor
	logger         *slog.Logger
}

type Options struct {
	QueueGroup           string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	RequestTimeout       time.Duration
	HandlerTimeout       time.Duration
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string) (*Transport, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Transport, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("vinuni-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return newTransport(conn, subject, options, logger), nil
}

func newTransport(conn *nats.Conn, subject string, options Options, logger *slog.Logger) *Transport {
	queueGroup := strings.TrimSpace(options.QueueGroup)
	if queueGroup == "" {
		queueGroup = "answer-workers"
	}
	requestTimeout := options.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 90 * time.Second
	}
	handlerTimeout := options.HandlerTimeout
	if handlerTimeout <= 0 {
		handlerTimeout = 2 * time.Minute
	}
	return &Transport{
		conn:           conn,
		subject:        subject,
		queueGroup:     queueGroup,
		requestTimeout: requestTimeout,
		handlerTimeout: handlerTimeout,
		executor:       options.ResilienceExecutor,
		logger:         logger,
	}
}

func (t *Transport) Close() {
	if t.conn != nil {
		t.conn.Close()
	}
}

// Ask sends a question and waits for a worker's result.
func (t *Transport) Ask(ctx context.Context, question string) (domain.ResolutionResult, error) {
	payload, err := json.Marshal(AskRequest{Question: question})
	if err != nil {
		return domain.ResolutionResult{}, fmt.Errorf("marshal ask request: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.requestTimeout)
		defer cancel()
	}

	var reply *nats.Msg
	call := func(callCtx context.Context) error {
		msg, err := t.conn.RequestWithContext(callCtx, t.subject, payload)
		if err != nil {
			return fmt.Errorf("nats request: %w", err)
		}
		reply = msg
		return nil
	}

	if t.executor != nil {
		err = t.executor.Execute(ctx, "nats.request", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.ResolutionResult{}, wrapTemporaryIfNeeded("nats request", err)
	}

	var result domain.ResolutionResult
	if err := json.Unmarshal(reply.Data, &result); err != nil {
		return domain.ResolutionResult{}, domain.WrapError(domain.ErrMalformedResponse, "decode answer reply", err)
	}
	if result.Citations == nil {
		result.Citations = []domain.EnrichedCitation{}
	}
	return result, nil
}

// Serve answers questions on the subject as part of the queue group until ctx
// is canceled, then drains the subscription.
func (t *Transport) Serve(ctx context.Context, handler AnswerHandler) error {
	sub, err := t.conn.QueueSubscribe(t.subject, t.queueGroup, func(msg *nats.Msg) {
		t.handle(ctx, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := t.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := t.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (t *Transport) handle(ctx context.Context, msg *nats.Msg, handler AnswerHandler) {
	if msg.Reply == "" {
		t.logger.Warn("nats_request_without_reply_subject", "subject", msg.Subject)
		return
	}

	requestID, body := t.answer(ctx, msg.Data, handler)
	if err := msg.Respond(body); err != nil {
		t.logger.Error("nats_reply_failed", "request_id", requestID, "error", err)
	}
}

// answer builds the reply body for one request. Requests still pending
// once ctx is done (the subscription is draining) get the generic error
// answer, so requesters do not wait out their timeout.
func (t *Transport) answer(ctx context.Context, data []byte, handler AnswerHandler) (string, []byte) {
	request := DecodeAskRequest(data)

	result := domain.TextResult(domain.GenericErrorMessage)
	if ctx.Err() != nil {
		t.logger.Warn("nats_request_rejected_shutting_down", "request_id", request.RequestID)
	} else {
		handlerCtx, cancel := context.WithTimeout(ctx, t.handlerTimeout)
		result = handler(handlerCtx, request.Question)
		cancel()
	}

	body, err := json.Marshal(result)
	if err != nil {
		t.logger.Error("nats_reply_marshal_failed", "request_id", request.RequestID, "error", err)
		body, _ = json.Marshal(domain.TextResult(domain.GenericErrorMessage))
	}
	return request.RequestID, body
}

func DecodeAskRequest(data []byte) AskRequest {
	var request AskRequest
	if err := json.Unmarshal(data, &request); err != nil {
		return AskRequest{Question: string(data)}
	}
	return request
}
