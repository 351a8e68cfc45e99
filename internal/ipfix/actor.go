package ipfix

import (
	"context"

	"firestige.xyz/otus/internal/log"
	"firestige.xyz/otus/internal/metrics"
)

// TemplateCommand is sent on the Decoder's template channel by the
// Template Source actor (§4.3 "Inputs").
type TemplateCommand interface{ isTemplateCommand() }

// Upsert binds a session's object-name list and template bundle
// (§4.3 "Template handling (Upsert)").
type Upsert struct {
	SessionKey  string
	ObjectNames []string
	Bundle      []byte
}

func (Upsert) isTemplateCommand() {}

// Delete retires a session (§4.3 "Template handling (Delete)").
type Delete struct {
	SessionKey string
}

func (Delete) isTemplateCommand() {}

// Actor runs the IPFIX Decoder: a single-threaded cooperative task that
// selects between its template channel and payload channel (§4.3, §5 —
// task-local template state that must never migrate between workers).
type Actor struct {
	decoder   *Decoder
	templates <-chan TemplateCommand
	payloads  <-chan []byte
	sinks     []chan<- StatBatch
}

// NewActor wires a decoder over the given channels. sinks receives
// every stats batch, fanned out in order (§4.3 "Emission").
func NewActor(templates <-chan TemplateCommand, payloads <-chan []byte, sinks ...chan<- StatBatch) *Actor {
	return &Actor{
		decoder:   NewDecoder(NewRegistry()),
		templates: templates,
		payloads:  payloads,
		sinks:     sinks,
	}
}

// Run loops until ctx is cancelled or both channels are closed and
// drained, decoding payloads against the currently known templates and
// fanning out every resulting batch (§5 "Cancellation").
func (a *Actor) Run(ctx context.Context) error {
	templates := a.templates
	payloads := a.payloads
	for {
		if templates == nil && payloads == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-templates:
			if !ok {
				templates = nil
				continue
			}
			a.applyCommand(cmd)
		case payload, ok := <-payloads:
			if !ok {
				payloads = nil
				continue
			}
			for _, batch := range a.decoder.DecodePayload(payload) {
				metrics.DecodeRecordsTotal.WithLabelValues("ok").Inc()
				a.fanOut(batch)
			}
		}
	}
}

func (a *Actor) applyCommand(cmd TemplateCommand) {
	switch c := cmd.(type) {
	case Upsert:
		a.decoder.registry.Upsert(c.SessionKey, c.ObjectNames, c.Bundle)
	case Delete:
		a.decoder.registry.Delete(c.SessionKey)
	}
}

func (a *Actor) fanOut(batch StatBatch) {
	for _, sink := range a.sinks {
		select {
		case sink <- batch:
		default:
			log.GetLogger().Warn("stats sink channel full, applying backpressure")
			sink <- batch
		}
	}
}
