package jobs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/trade-ledger/internal/domain"
	"github.com/dvloznov/trade-ledger/internal/infra/memory"
	"github.com/dvloznov/trade-ledger/internal/jobs"
)

type stubStorage struct{ err error }

func (s stubStorage) FetchFromGCS(ctx context.Context, uri string) ([]byte, error) {
	return []byte("slip " + uri), s.err
}
func (s stubStorage) ExtractFilenameFromGCSURI(uri string) string { return "slip.jpg" }

type stubParser struct {
	out map[string]interface{}
	err error
}

func (p stubParser) ParseSlip(ctx context.Context, slip []byte, mime string, cs []*domain.Contact) (map[string]interface{}, error) {
	return p.out, p.err
}

func TestImportSlipHandler(t *testing.T) {
	payment := map[string]interface{}{
		"records": []interface{}{map[string]interface{}{
			"type": "payment", "date": "2024-05-03", "name": "Rahim", "amount": 100, "paymentType": "received",
		}},
	}
	unknown := map[string]interface{}{
		"records": []interface{}{map[string]interface{}{
			"type": "payment", "date": "2024-05-03", "name": "Nobody", "amount": 100, "paymentType": "received",
		}},
	}

	tests := []struct {
		name          string
		storage       stubStorage
		parser        stubParser
		wantErr       bool
		wantPermanent bool
		wantCount     int
	}{
		{name: "success", parser: stubParser{out: payment}, wantCount: 1},
		{name: "validation failure is permanent", parser: stubParser{out: unknown}, wantErr: true, wantPermanent: true},
		{name: "model failure is retried", parser: stubParser{err: errors.New("503")}, wantErr: true},
		{name: "fetch failure is retried", storage: stubStorage{err: errors.New("timeout")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			_ = store.SaveContact(context.Background(), "o1", &domain.Contact{ID: "c1", Name: "Rahim", Type: domain.ContactBuyer})

			handler := jobs.NewImportSlipHandler(store, tt.storage, tt.parser)
			job := &jobs.ImportSlipJob{JobID: "j1", OwnerID: "o1", GCSURI: "gs://b/" + tt.name}
			err := handler(context.Background(), job)

			if (err != nil) != tt.wantErr {
				t.Fatalf("handler error = %v, wantErr %v", err, tt.wantErr)
			}
			if jobs.IsPermanent(err) != tt.wantPermanent {
				t.Errorf("IsPermanent(%v) = %v, want %v", err, !tt.wantPermanent, tt.wantPermanent)
			}
			if job.TransactionCount != tt.wantCount {
				t.Errorf("TransactionCount = %d, want %d", job.TransactionCount, tt.wantCount)
			}
			if !tt.wantErr && job.ImportID == "" {
				t.Error("ImportID not recorded on job")
			}
		})
	}

	t.Run("duplicate is permanent", func(t *testing.T) {
		store := memory.NewStore()
		_ = store.SaveContact(context.Background(), "o1", &domain.Contact{ID: "c1", Name: "Rahim", Type: domain.ContactBuyer})
		handler := jobs.NewImportSlipHandler(store, stubStorage{}, stubParser{out: payment})

		if err := handler(context.Background(), &jobs.ImportSlipJob{OwnerID: "o1", GCSURI: "gs://b/x"}); err != nil {
			t.Fatal(err)
		}
		err := handler(context.Background(), &jobs.ImportSlipJob{OwnerID: "o1", GCSURI: "gs://b/x"})
		if !jobs.IsPermanent(err) {
			t.Errorf("duplicate import error = %v, want permanent", err)
		}
	})
}
