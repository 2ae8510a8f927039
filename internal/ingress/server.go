// Package ingress implements the Signed Ingress: the HTTP entrypoint that
// verifies webhook signatures and classifies events before handing raw
// bodies to the Event Normalizer.
package ingress

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/octobot-dev/octobot/internal/signing"
	"github.com/octobot-dev/octobot/models"
)

// EventHeader and SignatureHeader name the headers the hosting platform
// attaches to every webhook delivery.
const (
	EventHeader     = "X-GitHub-Event"
	SignatureHeader = "X-Hub-Signature"
)

// Dispatcher hands a classified, signature-verified webhook body to the
// Event Normalizer and reports the HTTP status to respond with.
type Dispatcher interface {
	Dispatch(kind models.EventKind, body []byte) int
}

// Server is the http.Handler for POST /.
type Server struct {
	secret       []byte
	maxBodyBytes int64
	dispatcher   Dispatcher
	log          *slog.Logger
}

// New builds a Server. maxBodyBytes <= 0 disables the size cap.
func New(secret string, maxBodyBytes int64, dispatcher Dispatcher) *Server {
	return &Server{
		secret:       []byte(secret),
		maxBodyBytes: maxBodyBytes,
		dispatcher:   dispatcher,
		log:          slog.Default(),
	}
}

// ServeHTTP implements the Signed Ingress contract: bad signature → 403,
// unknown event → 200 "Unhandled event", known event → the Normalizer's
// status, oversize body → 413.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := s.readBody(r)
	if err != nil {
		s.log.Warn("webhook body rejected", "error", err)
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	if !signing.Verify(s.secret, body, r.Header.Get(SignatureHeader)) {
		s.log.Warn("webhook signature mismatch", "remote", r.RemoteAddr)
		http.Error(w, "signature mismatch", http.StatusForbidden)
		return
	}

	kind := models.EventKind(r.Header.Get(EventHeader))
	if !knownEventKind(kind) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Unhandled event"))
		return
	}

	status := s.dispatcher.Dispatch(kind, body)
	w.WriteHeader(status)
}

func (s *Server) readBody(r *http.Request) ([]byte, error) {
	if s.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, s.maxBodyBytes)
	}
	return io.ReadAll(r.Body)
}

func knownEventKind(kind models.EventKind) bool {
	switch kind {
	case models.EventPing, models.EventPush, models.EventPullRequest,
		models.EventPullRequestReview, models.EventPullRequestReviewComm,
		models.EventIssueComment, models.EventCommitComment, models.EventStatus:
		return true
	default:
		return false
	}
}
