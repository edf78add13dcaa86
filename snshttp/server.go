// Package snshttp serves an SNS HTTP(S) subscription endpoint that feeds
// notifications into a notifier.Handler.
//
// SNS retries delivery when the endpoint answers with a 5xx status, so store
// and mailer failures are reported as 500. Malformed and debounced
// notifications are acknowledged with 200.
//
// Every message must carry a valid SNS signature (SignatureVersion 1 or 2),
// checked against the signing certificate SNS hosts at SigningCertURL.
// Unsigned or tampered messages are rejected with 403 before the topic
// allow-list is consulted.
package snshttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"github.com/BboySticker/serverless/notifier"
	"github.com/gin-gonic/gin"
	"github.com/slackmgr/types"
)

// SNS message types, as sent in the x-amz-sns-message-type header.
const (
	TypeSubscriptionConfirmation = "SubscriptionConfirmation"
	TypeNotification             = "Notification"
	TypeUnsubscribeConfirmation  = "UnsubscribeConfirmation"

	messageTypeHeader = "x-amz-sns-message-type"
)

var snsHostRegex = regexp.MustCompile(`^sns\.[a-z0-9-]+\.amazonaws\.com(\.cn)?$`)

// MessageHandler processes the Message field of an SNS notification.
type MessageHandler interface {
	Handle(ctx context.Context, raw string) (notifier.Outcome, error)
}

// Message is the JSON document SNS posts to HTTP subscribers.
type Message struct {
	Type             string `json:"Type"             binding:"required"`
	MessageID        string `json:"MessageId"        binding:"required"`
	TopicArn         string `json:"TopicArn"         binding:"required"`
	Subject          string `json:"Subject"`
	Message          string `json:"Message"`
	Timestamp        string `json:"Timestamp"`
	SubscribeURL     string `json:"SubscribeURL"`
	Token            string `json:"Token"`
	Signature        string `json:"Signature"`
	SignatureVersion string `json:"SignatureVersion"`
	SigningCertURL   string `json:"SigningCertURL"`
}

// Server routes SNS deliveries to a MessageHandler.
type Server struct {
	handler MessageHandler
	logger  types.Logger
	opts    *Options
	certs   *certCache
}

func New(handler MessageHandler, logger types.Logger, opts ...Option) (*Server, error) {
	if handler == nil {
		return nil, errors.New("message handler cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("invalid SNS HTTP options: %w", err)
	}

	if options.httpClient == nil {
		options.httpClient = &http.Client{Timeout: options.confirmTimeout}
	}

	return &Server{
		handler: handler,
		logger:  logger.WithField("component", "snshttp"),
		opts:    options,
		certs:   newCertCache(),
	}, nil
}

// Router creates a gin engine with the SNS and health routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(s.opts.mode)

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(AccessLog(s.logger))

	r.GET("/healthz", healthCheck)
	s.RegisterRoutes(r)

	return r
}

// RegisterRoutes adds POST /sns to r.
func (s *Server) RegisterRoutes(r gin.IRoutes) {
	r.POST("/sns", s.receive)
}

func (s *Server) receive(c *gin.Context) {
	var msg Message

	// SNS posts JSON with a text/plain content type.
	if err := c.ShouldBindJSON(&msg); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid SNS message: "+err.Error())
		return
	}

	if header := c.GetHeader(messageTypeHeader); header != "" && header != msg.Type {
		errorResponse(c, http.StatusBadRequest, "message type header does not match body")
		return
	}

	logger := s.logger.
		WithField("sns_message_id", msg.MessageID).
		WithField("topic_arn", msg.TopicArn).
		WithField("request_id", c.GetString(requestIDKey))

	if s.opts.verifySignatures && knownType(msg.Type) {
		if err := s.verifySignature(c.Request.Context(), &msg); err != nil {
			if errors.Is(err, ErrInvalidSignature) {
				logger.Infof("Rejected SNS message with invalid signature: %v", err)
				errorResponse(c, http.StatusForbidden, "invalid signature")

				return
			}

			logger.Errorf("Failed to verify SNS message signature: %v", err)
			errorResponse(c, http.StatusBadGateway, "signature verification unavailable")

			return
		}
	}

	if !s.topicAllowed(msg.TopicArn) {
		logger.Info("Rejected SNS message from topic not in the allow-list")
		errorResponse(c, http.StatusForbidden, "topic not allowed")

		return
	}

	switch msg.Type {
	case TypeSubscriptionConfirmation:
		if err := s.confirmSubscription(c.Request.Context(), msg.SubscribeURL); err != nil {
			logger.Errorf("Failed to confirm SNS subscription: %v", err)
			errorResponse(c, http.StatusBadGateway, "subscription confirmation failed")

			return
		}

		logger.Info("SNS subscription confirmed")
		successResponse(c, gin.H{"type": msg.Type})

	case TypeNotification:
		outcome, err := s.handler.Handle(c.Request.Context(), msg.Message)
		if err != nil {
			logger.Errorf("Failed to handle SNS notification: %v", err)
			errorResponse(c, http.StatusInternalServerError, "notification processing failed")

			return
		}

		successResponse(c, gin.H{"type": msg.Type, "outcome": outcome.String()})

	default:
		logger.Infof("Ignoring SNS message of type %s", msg.Type)
		successResponse(c, gin.H{"type": msg.Type})
	}
}

func knownType(t string) bool {
	switch t {
	case TypeNotification, TypeSubscriptionConfirmation, TypeUnsubscribeConfirmation:
		return true
	default:
		return false
	}
}

func (s *Server) topicAllowed(arn string) bool {
	if len(s.opts.allowedTopics) == 0 {
		return true
	}

	_, ok := s.opts.allowedTopics[arn]

	return ok
}

func (s *Server) confirmSubscription(ctx context.Context, subscribeURL string) error {
	if err := validateSubscribeURL(subscribeURL); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.confirmTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, subscribeURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build subscription confirmation request: %w", err)
	}

	resp, err := s.opts.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to visit SubscribeURL: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SubscribeURL returned status %d", resp.StatusCode)
	}

	return nil
}

func validateSubscribeURL(raw string) error {
	if raw == "" {
		return errors.New("SubscribeURL is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid SubscribeURL: %w", err)
	}

	if u.Scheme != "https" {
		return fmt.Errorf("SubscribeURL must use https, got %q", u.Scheme)
	}

	if !snsHostRegex.MatchString(u.Hostname()) {
		return fmt.Errorf("SubscribeURL host %q is not an SNS endpoint", u.Hostname())
	}

	return nil
}

func healthCheck(c *gin.Context) {
	successResponse(c, gin.H{"status": "ok"})
}
