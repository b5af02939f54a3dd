// Package portrait wires the client stack from a Config. Most callers only
// need NewStack followed by Stack.NewController.
package portrait

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/message"

	"github.com/goliatone/go-portrait/internal/logging"
	"github.com/goliatone/go-portrait/pkg/api"
	"github.com/goliatone/go-portrait/pkg/config"
	"github.com/goliatone/go-portrait/pkg/contract"
	"github.com/goliatone/go-portrait/pkg/messages"
	"github.com/goliatone/go-portrait/pkg/wizard"
)

// Error aliases api.Error for callers that only import the root package.
type Error = api.Error

// Kind aliases api.Kind.
type Kind = api.Kind

// Session aliases wizard.Session.
type Session = wizard.Session

// KindOf reports the classification carried by err.
func KindOf(err error) Kind {
	return api.KindOf(err)
}

// Stack holds the components built from a Config.
type Stack struct {
	Config   config.Config
	Contract *contract.Contract
	Client   *api.Client
	Messages *messages.Bundle
	Printer  *message.Printer
	Logger   logrus.FieldLogger
}

// NewStack loads the API contract and message catalogs and builds the HTTP
// client. logger may be nil.
func NewStack(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (*Stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	doc, err := contract.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("portrait: load contract: %w", err)
	}
	bundle, err := messages.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("portrait: load messages: %w", err)
	}
	client, err := api.New(cfg.BaseURL,
		api.WithLogger(logger.WithField("component", "api")),
		api.WithResponseValidator(doc),
		api.WithRequestTimeout(cfg.RequestTimeout),
		api.WithGenerateTimeout(cfg.GenerateTimeout),
	)
	if err != nil {
		return nil, err
	}

	return &Stack{
		Config:   cfg,
		Contract: doc,
		Client:   client,
		Messages: bundle,
		Printer:  bundle.Printer(cfg.Locale),
		Logger:   logger,
	}, nil
}

// NewController builds a wizard controller bound to surface using the stack's
// configuration. Extra options are applied last.
func (s *Stack) NewController(surface wizard.Surface, options ...wizard.Option) (*wizard.Controller, error) {
	base := []wizard.Option{
		wizard.WithCodeLength(s.Config.CodeLength),
		wizard.WithMaxImageBytes(s.Config.MaxImageBytes),
		wizard.WithExhaustedPolicy(wizard.ExhaustedPolicy(s.Config.ZeroRemainingPolicy)),
		wizard.WithCatalog(s.Contract.Catalog()),
		wizard.WithPrinter(s.Printer),
		wizard.WithLogger(s.Logger.WithField("component", "wizard")),
	}
	return wizard.New(s.Client, surface, append(base, options...)...)
}
