package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"reservas-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStripe records the requests it receives and answers like the Stripe REST API.
type fakeStripe struct {
	mu              sync.Mutex
	existingEmail   string
	declineToken    string
	idempotencyKeys map[string]string
	refundForms     []map[string]string
}

func (f *fakeStripe) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/customers", func(w http.ResponseWriter, r *http.Request) {
		data := "[]"
		if r.URL.Query().Get("email") == f.existingEmail {
			data = `[{"id":"cus_existing","object":"customer","email":"` + f.existingEmail + `"}]`
		}
		fmt.Fprintf(w, `{"object":"list","url":"/v1/customers","has_more":false,"data":%s}`, data)
	})

	mux.HandleFunc("POST /v1/customers", func(w http.ResponseWriter, r *http.Request) {
		f.record("create_customer", r)
		_ = r.ParseForm()
		fmt.Fprintf(w, `{"id":"cus_new","object":"customer","email":%q}`, r.PostForm.Get("email"))
	})

	mux.HandleFunc("POST /v1/customers/{id}/sources", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("source") == f.declineToken {
			w.Header().Set("Request-Id", "req_decline")
			w.WriteHeader(http.StatusPaymentRequired)
			fmt.Fprint(w, `{"error":{"type":"card_error","code":"card_declined","decline_code":"generic_decline","message":"Your card was declined."}}`)
			return
		}
		fmt.Fprintf(w, `{"id":"card_1","object":"card","customer":%q,"brand":"Visa","last4":"4242","exp_month":12,"exp_year":2030}`, r.PathValue("id"))
	})

	mux.HandleFunc("POST /v1/refunds", func(w http.ResponseWriter, r *http.Request) {
		f.record("refund", r)
		_ = r.ParseForm()
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		f.mu.Lock()
		f.refundForms = append(f.refundForms, form)
		f.mu.Unlock()
		fmt.Fprintf(w, `{"id":"re_1","object":"refund","amount":%s,"status":"succeeded"}`, r.PostForm.Get("amount"))
	})

	return mux
}

func (f *fakeStripe) record(op string, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idempotencyKeys[op] = r.Header.Get("Idempotency-Key")
}

func newTestProcessor(t *testing.T) (*StripeProcessor, *fakeStripe) {
	t.Helper()
	fake := &fakeStripe{existingEmail: "known@example.com", declineToken: "tok_chargeDeclined", idempotencyKeys: map[string]string{}}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	return NewStripeProcessor(StripeOptions{SecretKey: "sk_test_123", BackendURL: srv.URL}), fake
}

func TestStripeProcessor_FindCustomerByEmail(t *testing.T) {
	p, _ := newTestProcessor(t)
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		id, found, err := p.FindCustomerByEmail(ctx, "known@example.com")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "cus_existing", id)
	})

	t.Run("Not found", func(t *testing.T) {
		id, found, err := p.FindCustomerByEmail(ctx, "new@example.com")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, id)
	})
}

func TestStripeProcessor_CreateCustomer(t *testing.T) {
	p, fake := newTestProcessor(t)

	id, err := p.CreateCustomer(context.Background(), CustomerParams{UserID: "u1", Email: "new@example.com", IdempotencyKey: "customer:u1"})
	require.NoError(t, err)
	assert.Equal(t, "cus_new", id)
	assert.Equal(t, "customer:u1", fake.idempotencyKeys["create_customer"])
}

func TestStripeProcessor_AttachCard(t *testing.T) {
	p, _ := newTestProcessor(t)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		card, err := p.AttachCard(ctx, "cus_existing", "tok_visa")
		require.NoError(t, err)
		assert.Equal(t, &domain.Card{ID: "card_1", Brand: "Visa", Last4: "4242", ExpiryMonth: 12, ExpiryYear: 2030}, card)
	})

	t.Run("Declined", func(t *testing.T) {
		_, err := p.AttachCard(ctx, "cus_existing", "tok_chargeDeclined")
		var gw *domain.UpstreamGatewayError
		require.True(t, errors.As(err, &gw))
		assert.Equal(t, "Your card was declined.", gw.Message)
		assert.Equal(t, http.StatusPaymentRequired, gw.StatusCode)
		assert.Equal(t, "card_declined", gw.Code)
		assert.Equal(t, "req_decline", gw.RequestID)
		assert.Equal(t, "generic_decline", gw.Payload["decline_code"])
	})
}

func TestStripeProcessor_Refund(t *testing.T) {
	p, fake := newTestProcessor(t)
	ctx := context.Background()

	t.Run("Payment intent", func(t *testing.T) {
		r, err := p.Refund(ctx, "pi_123", 1000, "refund-key-1")
		require.NoError(t, err)
		assert.Equal(t, &domain.Refund{ID: "re_1", Amount: 1000, Status: "succeeded"}, r)
		assert.Equal(t, "refund-key-1", fake.idempotencyKeys["refund"])
		assert.Equal(t, "pi_123", fake.refundForms[0]["payment_intent"])
		assert.Equal(t, "1000", fake.refundForms[0]["amount"])
	})

	t.Run("Charge", func(t *testing.T) {
		_, err := p.Refund(ctx, "ch_456", 500, "refund-key-2")
		require.NoError(t, err)
		assert.Equal(t, "ch_456", fake.refundForms[1]["charge"])
	})
}

func TestStripeProcessor_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewStripeProcessor(StripeOptions{SecretKey: "sk_test_123", BackendURL: url})
	_, err := p.Refund(context.Background(), "pi_123", 1000, "k")

	var gw *domain.UpstreamGatewayError
	require.True(t, errors.As(err, &gw))
	assert.Equal(t, "refund", gw.Operation)
	assert.Zero(t, gw.StatusCode)
}
