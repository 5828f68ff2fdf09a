package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/trade-ledger/internal/ledger"
	"github.com/dvloznov/trade-ledger/internal/pipeline"
)

// NewImportSlipHandler returns a JobHandler that runs the slip import
// pipeline. Duplicate slips and validation failures are permanent.
func NewImportSlipHandler(repo pipeline.Repository, storage pipeline.StorageService, parser pipeline.AIParser) JobHandler {
	return func(ctx context.Context, job Job) error {
		j, ok := job.(*ImportSlipJob)
		if !ok {
			return Permanent(fmt.Errorf("unexpected job type %T", job))
		}

		state, err := pipeline.ImportSlipFromGCSWithDeps(ctx, j.OwnerID, j.GCSURI, repo, storage, parser)
		if state != nil {
			j.ImportID = state.ImportID
			j.ParsingRunID = state.ParsingRunID
			j.TransactionCount = len(state.Transactions)
		}
		if err == nil {
			return nil
		}

		var ve *ledger.ValidationError
		if errors.Is(err, pipeline.ErrDuplicateImport) || errors.As(err, &ve) {
			return Permanent(err)
		}
		return err
	}
}
