// Package pipeline imports weighbridge slips: it fetches a slip from object
// storage, has Gemini read it and stores the validated trades and payments.
package pipeline

import (
	"context"
	"fmt"
	"time"

	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
	"github.com/dvloznov/trade-ledger/internal/logger"
)

// Pipeline executes a sequence of steps in order. Once a parsing run exists,
// a failing step marks it and the import FAILED.
type Pipeline struct {
	repo  Repository
	steps []PipelineStep
}

// NewPipeline creates a pipeline with the given steps.
func NewPipeline(repo Repository, steps ...PipelineStep) *Pipeline {
	return &Pipeline{repo: repo, steps: steps}
}

// Execute runs all steps sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	for i, step := range p.steps {
		start := time.Now()
		if err := step.Execute(ctx, state); err != nil {
			p.fail(ctx, state, err)
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
		log.Debug().
			Int("step", i+1).
			Str("step_type", fmt.Sprintf("%T", step)).
			Dur("duration", time.Since(start)).
			Msg("pipeline step done")
	}
	return nil
}

func (p *Pipeline) fail(ctx context.Context, state *PipelineState, err error) {
	if state.ParsingRunID != "" {
		p.repo.MarkParsingRunFailed(ctx, state.ParsingRunID, err)
	}
	if state.ImportID != "" {
		if uerr := p.repo.UpdateImportStatus(ctx, state.ImportID, bq.RunStatusFailed, 0); uerr != nil {
			log := logger.FromContext(ctx)
			log.Warn().
				Err(uerr).
				Str("import_id", state.ImportID).
				Msg("import status not updated")
		}
	}
}

// NewSlipImportPipeline creates the standard import pipeline.
func NewSlipImportPipeline(repo Repository, storage StorageService, parser AIParser) *Pipeline {
	return NewPipeline(repo,
		&FetchSlipStep{Storage: storage},
		&CreateImportStep{Repo: repo, Storage: storage},
		&StartParsingRunStep{Repo: repo},
		&ParseSlipStep{Repo: repo, Parser: parser},
		&TransformRecordsStep{},
		&ValidateRecordsStep{},
		&InsertTransactionsStep{Repo: repo},
		&MarkSuccessStep{Repo: repo},
	)
}

// ImportSlipFromGCSWithDeps imports one slip for the owner and returns the
// final pipeline state.
func ImportSlipFromGCSWithDeps(ctx context.Context, ownerID, gcsURI string, repo Repository, storage StorageService, parser AIParser) (*PipelineState, error) {
	state := &PipelineState{OwnerID: ownerID, GCSURI: gcsURI}
	log := logger.ForOwner(logger.FromContext(ctx), ownerID)
	ctx = logger.WithContext(ctx, log)

	if err := NewSlipImportPipeline(repo, storage, parser).Execute(ctx, state); err != nil {
		return state, err
	}

	log.Info().
		Str("import_id", state.ImportID).
		Str("parsing_run_id", state.ParsingRunID).
		Int("transactions", len(state.Transactions)).
		Msg("slip imported")
	return state, nil
}

// PreviewSlip reads a local slip and validates its records against the
// owner's contacts. Nothing is stored and no import is recorded.
func PreviewSlip(ctx context.Context, ownerID string, slip []byte, repo Repository, parser AIParser) (*PipelineState, error) {
	state := &PipelineState{OwnerID: ownerID, SlipBytes: slip, MimeType: detectMimeType(slip)}

	p := NewPipeline(repo,
		&ParseSlipStep{Repo: repo, Parser: parser},
		&TransformRecordsStep{},
		&ValidateRecordsStep{},
	)
	if err := p.Execute(ctx, state); err != nil {
		return state, err
	}
	return state, nil
}
