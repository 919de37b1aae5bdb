package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/Priya8975/payment-notification-core/internal/signature"
	"github.com/Priya8975/payment-notification-core/internal/worker"
)

var (
	requestCount  atomic.Int64
	verifiedCount atomic.Int64
	rejectedCount atomic.Int64
)

// A mock merchant endpoint. Set MOCK_SECRET to the secret_key returned by
// subscribe to have every request's signature checked.
func main() {
	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}
	secret := os.Getenv("MOCK_SECRET")

	// Successful endpoint: returns 200, or 401 if the signature doesn't verify
	http.HandleFunc("/webhook/success", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		body, _ := io.ReadAll(r.Body)

		if !checkSignature(r, body, secret) {
			logRequest(r, count, http.StatusUnauthorized, body)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		logRequest(r, count, http.StatusOK, body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "received"})
	})

	// Slow endpoint: delays 3 seconds before responding
	http.HandleFunc("/webhook/slow", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		body, _ := io.ReadAll(r.Body)
		time.Sleep(3 * time.Second)
		logRequest(r, count, http.StatusOK, body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "received (slow)"})
	})

	// Failing endpoint: always returns 500
	http.HandleFunc("/webhook/fail", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		body, _ := io.ReadAll(r.Body)
		logRequest(r, count, http.StatusInternalServerError, body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
	})

	// Stats endpoint: shows request and verification counts
	http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{
			"total_requests": requestCount.Load(),
			"verified":       verifiedCount.Load(),
			"rejected":       rejectedCount.Load(),
		})
	})

	log.Printf("Mock merchant endpoint starting on :%s (signature check: %t)", port, secret != "")
	log.Printf("  POST /webhook/success  -> 200 OK (401 on bad signature)")
	log.Printf("  POST /webhook/slow     -> 200 OK (3s delay)")
	log.Printf("  POST /webhook/fail     -> 500 Error")
	log.Printf("  GET  /stats            -> request counts")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func checkSignature(r *http.Request, body []byte, secret string) bool {
	if secret == "" {
		return true
	}
	if signature.Verify(body, r.Header.Get(worker.HeaderSignature), secret) {
		verifiedCount.Add(1)
		return true
	}
	rejectedCount.Add(1)
	return false
}

func logRequest(r *http.Request, count int64, status int, body []byte) {
	var event struct {
		PaymentID string `json:"payment_id"`
		Amount    string `json:"amount"`
		Currency  string `json:"currency"`
	}
	_ = json.Unmarshal(body, &event)

	fmt.Printf("[#%d] %s %s -> %d | sig=%s event=%s id=%s payment=%s %s %s\n",
		count,
		r.Method,
		r.URL.Path,
		status,
		truncate(r.Header.Get(worker.HeaderSignature), 16),
		r.Header.Get(worker.HeaderEvent),
		truncate(r.Header.Get(worker.HeaderEventID), 12),
		event.PaymentID,
		event.Amount,
		event.Currency,
	)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
