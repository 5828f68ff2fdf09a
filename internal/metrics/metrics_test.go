package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestInitAndObserve(t *testing.T) {
	Init()
	Init()

	ObserveHTTP("/api/summary", "GET", 200, time.Millisecond)
	ObserveStatementExport("pdf", "", 10*time.Millisecond)
	IncValidationFailure("supplierTotal")
	IncAggregation(ResultInvalid)
	IncImportJob("completed")
	AddNotionSync("created", 2)
	AddNotionSync("updated", 0)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`ledger_http_requests_total{code="200",method="GET",route="/api/summary"} 1`,
		`ledger_statement_exports_total{format="pdf",result="success"} 1`,
		`ledger_validation_failures_total{field="supplierTotal"} 1`,
		`ledger_aggregations_total{result="invalid"} 1`,
		`ledger_import_jobs_total{status="completed"} 1`,
		`ledger_notion_sync_pages_total{action="created"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
	if strings.Contains(body, `action="updated"`) {
		t.Error("zero-valued notion sync should not create a series")
	}
}
