package http

import (
	"bytes"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/freightquote-backend/internal/data/aggregates"
	"github.com/yungbote/freightquote-backend/internal/data/repos"
	repotest "github.com/yungbote/freightquote-backend/internal/data/repos/testutil"
	httpH "github.com/yungbote/freightquote-backend/internal/http/handlers"
	httpMW "github.com/yungbote/freightquote-backend/internal/http/middleware"
	"github.com/yungbote/freightquote-backend/internal/modules/negotiation"
	"github.com/yungbote/freightquote-backend/internal/services"
)

type apiHarness struct {
	t       *testing.T
	engine  *gin.Engine
	auth    services.AuthService
	client  string
	carrier string
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	log := repotest.Logger(t)
	set := repos.NewSet(tx, log)
	base := aggregates.BaseDeps{DB: tx, Log: log, Runner: aggregates.NewGormTxRunner(tx), CASGuard: aggregates.NewCASGuard(tx)}
	policy := negotiation.DefaultPolicy()
	quoteAgg := aggregates.NewQuoteAggregate(aggregates.QuoteAggregateDeps{
		Base: base, Quotes: set.Quotes, Responses: set.Responses, Settlements: set.Settlements,
	})
	negAgg := aggregates.NewNegotiationAggregate(aggregates.NegotiationAggregateDeps{
		Base: base, Quotes: set.Quotes, Threads: set.Threads, Messages: set.Messages,
		Receipts: set.Receipts, Settlements: set.Settlements, Policy: policy,
	})
	auth := services.NewAuthService(log, "router-secret", "freightquote")
	engine := NewRouter(RouterConfig{
		Log:                log,
		AuthMiddleware:     httpMW.NewAuthMiddleware(log, auth),
		HealthHandler:      httpH.NewHealthHandler(nil),
		QuoteHandler:       httpH.NewQuoteHandler(services.NewQuoteService(log, set.Quotes, set.Responses, quoteAgg)),
		NegotiationHandler: httpH.NewNegotiationHandler(services.NewNegotiationService(log, set.Threads, set.Messages, negAgg, nil, nil, policy)),
	})
	h := &apiHarness{t: t, engine: engine, auth: auth}
	h.client = h.token("client", uuid.New())
	h.carrier = h.token("carrier", uuid.New())
	return h
}

func (h *apiHarness) token(role string, id uuid.UUID) string {
	h.t.Helper()
	tok, err := h.auth.IssueToken(role, id, time.Hour)
	if err != nil {
		h.t.Fatalf("IssueToken: %v", err)
	}
	return tok
}

func (h *apiHarness) do(method, path, token string, body any, headers ...string) (int, map[string]any) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	out := map[string]any{}
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			h.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func field(m map[string]any, path ...string) any {
	var cur any = m
	for _, p := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[p]
	}
	return cur
}

func errorCode(m map[string]any) string {
	s, _ := field(m, "error", "code").(string)
	return s
}

func TestNegotiationOverHTTP(t *testing.T) {
	h := newAPIHarness(t)

	if code, _ := h.do(nethttp.MethodGet, "/healthcheck", "", nil); code != nethttp.StatusOK {
		t.Fatalf("healthcheck: %d", code)
	}
	if code, _ := h.do(nethttp.MethodPost, "/api/quotes", "", map[string]any{}); code != nethttp.StatusUnauthorized {
		t.Fatalf("anonymous create: %d", code)
	}

	code, body := h.do(nethttp.MethodPost, "/api/quotes", h.client, map[string]any{
		"product_info":           "frozen poultry, 22 pallets",
		"weight":                 "18000",
		"declared_invoice_value": "210000.00",
		"origin":                 "Chapeco/SC",
		"destination":            "Recife/PE",
	})
	if code != nethttp.StatusCreated {
		t.Fatalf("create quote: %d %v", code, body)
	}
	quoteID := field(body, "quote", "id").(string)

	if code, body := h.do(nethttp.MethodPost, "/api/quotes", h.carrier, map[string]any{"product_info": "x"}); code != nethttp.StatusForbidden {
		t.Fatalf("carrier create: %d %v", code, body)
	}

	code, body = h.do(nethttp.MethodPost, "/api/quotes/"+quoteID+"/responses", h.carrier, map[string]any{
		"base_value":     "9000.00",
		"surcharges":     []map[string]any{{"label": "toll", "amount": "1000.00"}},
		"lead_time_days": 4,
	})
	if code != nethttp.StatusCreated || field(body, "total_value") != "10000" {
		t.Fatalf("bid: %d %v", code, body)
	}
	responseID := field(body, "response_id").(string)

	if code, body := h.do(nethttp.MethodPost, "/api/quotes/"+quoteID+"/responses/"+responseID+"/accept", h.client, nil); code != nethttp.StatusOK {
		t.Fatalf("accept: %d %v", code, body)
	}
	if code, body := h.do(nethttp.MethodPost, "/api/quotes/"+quoteID+"/pickup", h.carrier, nil); code != nethttp.StatusOK {
		t.Fatalf("pickup: %d %v", code, body)
	}

	code, body = h.do(nethttp.MethodPost, "/api/quotes/"+quoteID+"/declared-value", h.carrier, map[string]any{
		"value":        "11500.00",
		"reason":       "second drop added at Caruaru",
		"document_ref": "cte-2026-0042",
		"cte_key":      "42260300111222000133570010000000421000000428",
	})
	if code != nethttp.StatusCreated || field(body, "quote_status") != "awaiting_value_approval" {
		t.Fatalf("declare: %d %v", code, body)
	}
	threadID := field(body, "thread_id").(string)

	code, body = h.do(nethttp.MethodGet, "/api/quotes/"+quoteID+"/negotiation", h.client, nil)
	if code != nethttp.StatusOK || field(body, "thread", "thread_id") != threadID || field(body, "thread", "version") != float64(1) {
		t.Fatalf("thread by quote: %d %v", code, body)
	}
	if code, _ := h.do(nethttp.MethodGet, "/api/negotiations/"+threadID, h.token("client", uuid.New()), nil); code != nethttp.StatusNotFound {
		t.Fatalf("outsider read: %d", code)
	}

	reject := map[string]any{"decision": "reject", "reason": "contract says door to door"}
	decisionURL := "/api/negotiations/" + threadID + "/client-decision"
	if code, body := h.do(nethttp.MethodPost, decisionURL, h.client, reject); code != nethttp.StatusBadRequest || errorCode(body) != "invalid_sequence" {
		t.Fatalf("missing sequence: %d %v", code, body)
	}
	code, body = h.do(nethttp.MethodPost, decisionURL, h.client, reject, "Idempotency-Key", "1")
	if code != nethttp.StatusOK || field(body, "result", "to_status") != "awaiting_carrier" {
		t.Fatalf("reject: %d %v", code, body)
	}
	code, body = h.do(nethttp.MethodPost, decisionURL, h.client, reject, "Idempotency-Key", "1")
	if code != nethttp.StatusOK || field(body, "result", "replayed") != true {
		t.Fatalf("replayed reject: %d %v", code, body)
	}
	if code, body := h.do(nethttp.MethodPost, decisionURL, h.client, map[string]any{"decision": "approve", "sequence": 1}); code != nethttp.StatusUnprocessableEntity || errorCode(body) != "idempotency_mismatch" {
		t.Fatalf("reused sequence: %d %v", code, body)
	}

	carrierURL := "/api/negotiations/" + threadID + "/carrier-decision"
	if code, body := h.do(nethttp.MethodPost, carrierURL, h.client, map[string]any{"decision": "give_up", "sequence": 2}); code != nethttp.StatusForbidden {
		t.Fatalf("client on carrier endpoint: %d %v", code, body)
	}
	if code, body := h.do(nethttp.MethodPost, carrierURL, h.carrier, map[string]any{"decision": "counter_propose", "sequence": 1, "value": "11000.00", "reason": "x"}); code != nethttp.StatusConflict || errorCode(body) != "concurrent_modification" {
		t.Fatalf("stale sequence: %d %v", code, body)
	}
	code, body = h.do(nethttp.MethodPost, carrierURL, h.carrier, map[string]any{"decision": "counter_propose", "sequence": 2, "value": "11000.00", "reason": "dropped the extra helper"})
	if code != nethttp.StatusOK || field(body, "result", "carrier_retry_count") != float64(1) {
		t.Fatalf("counter: %d %v", code, body)
	}

	code, body = h.do(nethttp.MethodGet, "/api/negotiations?status=awaiting_client", h.client, nil)
	inbox, _ := field(body, "threads").([]any)
	if code != nethttp.StatusOK || len(inbox) != 1 {
		t.Fatalf("client inbox: %d %v", code, body)
	}
	row, _ := inbox[0].(map[string]any)
	if field(row, "thread_id") != threadID || field(row, "unread") != true || field(row, "delta") != "1000" || field(row, "current_proposed_value") != "11000" {
		t.Fatalf("client inbox row: %v", row)
	}
	code, body = h.do(nethttp.MethodGet, "/api/negotiations?status=awaiting_carrier", h.carrier, nil)
	if waiting, _ := field(body, "threads").([]any); code != nethttp.StatusOK || len(waiting) != 0 {
		t.Fatalf("carrier inbox awaiting_carrier: %d %v", code, body)
	}
	code, body = h.do(nethttp.MethodGet, "/api/negotiations", h.carrier, nil)
	if all, _ := field(body, "threads").([]any); code != nethttp.StatusOK || len(all) != 1 {
		t.Fatalf("carrier inbox: %d %v", code, body)
	}
	code, body = h.do(nethttp.MethodGet, "/api/negotiations", h.token("client", uuid.New()), nil)
	if others, _ := field(body, "threads").([]any); code != nethttp.StatusOK || len(others) != 0 {
		t.Fatalf("outsider inbox: %d %v", code, body)
	}

	if code, _ := h.do(nethttp.MethodPost, "/api/negotiations/"+threadID+"/read", h.client, nil); code != nethttp.StatusNoContent {
		t.Fatalf("read: %d", code)
	}
	code, body = h.do(nethttp.MethodPost, decisionURL, h.client, map[string]any{"decision": "approve", "sequence": 3})
	if code != nethttp.StatusOK || field(body, "result", "to_status") != "approved" || field(body, "result", "quote_status") != "in_transit" {
		t.Fatalf("approve: %d %v", code, body)
	}
	if code, body := h.do(nethttp.MethodPost, decisionURL, h.client, map[string]any{"decision": "reject", "sequence": 4, "reason": "late"}); code != nethttp.StatusConflict || errorCode(body) != "invalid_transition" {
		t.Fatalf("action on terminal thread: %d %v", code, body)
	}

	code, body = h.do(nethttp.MethodPost, "/api/quotes/"+quoteID+"/deliver", h.carrier, nil)
	if code != nethttp.StatusOK || field(body, "quote", "status") != "settled" {
		t.Fatalf("deliver: %d %v", code, body)
	}
	code, body = h.do(nethttp.MethodGet, "/api/quotes/"+quoteID, h.client, nil)
	if code != nethttp.StatusOK || field(body, "quote", "carrier_declared_value") != "11000" {
		t.Fatalf("final quote: %d %v", code, body)
	}
}

func TestBadPathParams(t *testing.T) {
	h := newAPIHarness(t)
	code, body := h.do(nethttp.MethodGet, "/api/negotiations/not-a-uuid", h.client, nil)
	if code != nethttp.StatusBadRequest || errorCode(body) != "invalid_id" {
		t.Fatalf("bad id: %d %v", code, body)
	}
	code, body = h.do(nethttp.MethodPost, "/api/negotiations/"+uuid.NewString()+"/client-decision", h.client,
		map[string]any{"decision": "approve"}, "Idempotency-Key", strconv.Itoa(-3))
	if code != nethttp.StatusBadRequest || errorCode(body) != "invalid_sequence" {
		t.Fatalf("negative key: %d %v", code, body)
	}
}

func TestNegotiationInboxRejectsBadQuery(t *testing.T) {
	h := newAPIHarness(t)
	code, body := h.do(nethttp.MethodGet, "/api/negotiations?status=aguardando_cliente", h.client, nil)
	if code != nethttp.StatusBadRequest || errorCode(body) != "validation" {
		t.Fatalf("unknown status: %d %v", code, body)
	}
	code, body = h.do(nethttp.MethodGet, "/api/negotiations?limit=many", h.client, nil)
	if code != nethttp.StatusBadRequest || errorCode(body) != "invalid_limit" {
		t.Fatalf("bad limit: %d %v", code, body)
	}
	if code, _ := h.do(nethttp.MethodGet, "/api/negotiations", "", nil); code != nethttp.StatusUnauthorized {
		t.Fatalf("anonymous inbox: %d", code)
	}
}
