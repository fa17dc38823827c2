package server

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/titaev-lv/keyguard-service/internal/enforce"
)

// Authorizer is the decision engine behind the /authorize endpoint.
type Authorizer interface {
	AuthorizeOperation(purpose enforce.Purpose, keyID enforce.KeyID,
		keyPolicy, operationParams enforce.AuthorizationSet,
		opHandle uint64, isBegin bool) error
	TableStats() (rateLimited, useCounted int)
}

// Request/Response types

// ParamJSON is the wire form of one tag/value entry. Only the value field
// matching the tag's kind is consulted.
type ParamJSON struct {
	Tag  string  `json:"tag"`
	Enum *uint32 `json:"enum,omitempty"`
	Uint *uint32 `json:"uint,omitempty"`
	Long *uint64 `json:"long,omitempty"`
	Blob string  `json:"blob,omitempty"` // base64
	Date *uint64 `json:"date,omitempty"`
}

type AuthorizeRequest struct {
	Purpose         string      `json:"purpose"`
	KeyBlob         string      `json:"key_blob,omitempty"` // base64; key_id is derived from it
	KeyID           *uint64     `json:"key_id,omitempty"`   // alternative to key_blob
	KeyPolicy       []ParamJSON `json:"key_policy"`
	OperationParams []ParamJSON `json:"operation_params,omitempty"`
	OperationHandle uint64      `json:"operation_handle,omitempty"`
	IsBegin         bool        `json:"is_begin"`
}

type AuthorizeResponse struct {
	Decision  string `json:"decision"` // "ALLOW" or "DENY"
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status             string `json:"status"`
	RateLimitedEntries int    `json:"rate_limited_entries"`
	UseCountedEntries  int    `json:"use_counted_entries"`
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// decodeParams converts wire entries into an authorization set, preserving
// order. A tag name the engine does not know becomes TagInvalid so the
// decision is a deny, not a silent skip.
func decodeParams(entries []ParamJSON) (enforce.AuthorizationSet, error) {
	set := make(enforce.AuthorizationSet, 0, len(entries))
	for _, e := range entries {
		tag, ok := enforce.ParseTag(e.Tag)
		if !ok {
			tag = enforce.TagInvalid
		}
		p := enforce.Param{Tag: tag}
		if e.Enum != nil {
			p.Enum = *e.Enum
		}
		if e.Uint != nil {
			p.Uint = *e.Uint
		}
		if e.Long != nil {
			p.Long = *e.Long
		}
		if e.Date != nil {
			p.Date = *e.Date
		}
		if e.Blob != "" {
			blob, err := base64.StdEncoding.DecodeString(e.Blob)
			if err != nil {
				return nil, err
			}
			p.Blob = blob
		}
		set = append(set, p)
	}
	return set, nil
}

// AuthorizeHandler handles /authorize requests. A deny is a successful
// decision and is reported with HTTP 200; non-200 statuses mean the
// request itself could not be evaluated.
func AuthorizeHandler(engine Authorizer, aclChecker *ACLChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Only accept POST
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "only POST allowed")
			return
		}

		// Limit request body size (DoS protection)
		const maxRequestSize = 1 * 1024 * 1024 // 1MB
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)

		// 1. Parse request
		var req AuthorizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Warn("invalid JSON in authorize request", "error", err)
			respondError(w, http.StatusBadRequest, "invalid JSON")
			return
		}

		purpose, ok := enforce.ParsePurpose(req.Purpose)
		if !ok {
			respondError(w, http.StatusBadRequest, "unknown purpose")
			return
		}

		// 2. Extract client certificate
		if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
			respondError(w, http.StatusUnauthorized, "no client certificate")
			return
		}
		clientCert := r.TLS.PeerCertificates[0]
		clientCN := clientCert.Subject.CommonName

		// 3. ACL check
		if err := aclChecker.CheckAccess(clientCert, purpose.String()); err != nil {
			slog.Warn("ACL check failed",
				"client_cn", clientCN,
				"purpose", purpose.String(),
				"error", err,
			)
			RecordACLFailure()
			RecordRequest("/authorize", clientCN, "forbidden")
			respondError(w, http.StatusForbidden, err.Error())
			return
		}

		// 4. Resolve the key identifier
		var keyID enforce.KeyID
		switch {
		case req.KeyBlob != "":
			material, err := base64.StdEncoding.DecodeString(req.KeyBlob)
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid base64 key_blob")
				return
			}
			keyID = enforce.CreateKeyID(material)
		case req.KeyID != nil:
			keyID = enforce.KeyID(*req.KeyID)
		default:
			respondError(w, http.StatusBadRequest, "key_blob or key_id is required")
			return
		}

		// 5. Decode policy and operation parameters
		keyPolicy, err := decodeParams(req.KeyPolicy)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid base64 in key_policy")
			return
		}
		opParams, err := decodeParams(req.OperationParams)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid base64 in operation_params")
			return
		}

		// 6. Evaluate
		decision := engine.AuthorizeOperation(purpose, keyID, keyPolicy, opParams,
			req.OperationHandle, req.IsBegin)

		rateLimited, useCounted := engine.TableStats()
		RecordTableOccupancy(rateLimited, useCounted)

		// 7. Respond
		if decision == nil {
			RecordDecision(purpose.String(), "ALLOW")
			RecordRequest("/authorize", clientCN, "allow")
			respondJSON(w, http.StatusOK, AuthorizeResponse{Decision: "ALLOW"})
			return
		}

		code, ok := decision.(enforce.ErrorCode)
		if !ok {
			slog.Error("authorize returned unexpected error type", "error", decision)
			respondError(w, http.StatusInternalServerError, "evaluation failed")
			return
		}

		if code == enforce.ErrKeyUserNotAuthenticated {
			RecordAuthFailure()
		}
		RecordDecision(purpose.String(), code.Code())
		RecordRequest("/authorize", clientCN, "deny")

		slog.Info("operation denied",
			"client_cn", clientCN,
			"purpose", purpose.String(),
			"key_id", uint64(keyID),
			"error_code", code.Code(),
		)

		respondJSON(w, http.StatusOK, AuthorizeResponse{
			Decision:  "DENY",
			ErrorCode: code.Code(),
			Message:   code.Error(),
		})
	}
}

// HealthHandler handles /health requests
func HealthHandler(engine Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rateLimited, useCounted := engine.TableStats()

		status := HealthResponse{
			Status:             "healthy",
			RateLimitedEntries: rateLimited,
			UseCountedEntries:  useCounted,
		}

		respondJSON(w, http.StatusOK, status)
	}
}
