package controller

import (
	"github.com/oshokin/squ-clock/internal/domain/clock"
	"github.com/oshokin/squ-clock/internal/service/adaptor"
	"github.com/oshokin/squ-clock/internal/service/generator"
)

// source is the active clock source: internalSource or externalSource.
type source interface {
	kind() clock.SourceKind
	// stop returns once the source can no longer emit events.
	stop()
}

// internalSource wraps the tempo driven generator.
type internalSource struct {
	gen *generator.Generator
}

func (internalSource) kind() clock.SourceKind { return clock.Internal }

func (s internalSource) stop() { s.gen.Stop() }

// externalSource wraps the MIDI realtime adaptor.
type externalSource struct {
	adp *adaptor.Adaptor
}

func (externalSource) kind() clock.SourceKind { return clock.External }

func (s externalSource) stop() { s.adp.Stop() }
