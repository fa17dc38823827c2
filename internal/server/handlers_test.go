package server

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/titaev-lv/keyguard-service/internal/enforce"
)

// fakeEngine records the last call and returns a canned decision.
type fakeEngine struct {
	decision error

	gotPurpose enforce.Purpose
	gotKeyID   enforce.KeyID
	gotPolicy  enforce.AuthorizationSet
	gotParams  enforce.AuthorizationSet
	gotHandle  uint64
	gotIsBegin bool
	calls      int
}

func (f *fakeEngine) AuthorizeOperation(purpose enforce.Purpose, keyID enforce.KeyID,
	keyPolicy, operationParams enforce.AuthorizationSet,
	opHandle uint64, isBegin bool) error {
	f.calls++
	f.gotPurpose = purpose
	f.gotKeyID = keyID
	f.gotPolicy = keyPolicy
	f.gotParams = operationParams
	f.gotHandle = opHandle
	f.gotIsBegin = isBegin
	return f.decision
}

func (f *fakeEngine) TableStats() (int, int) { return 0, 0 }

func newAuthorizeRequest(t *testing.T, body interface{}, cert *x509.Certificate) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/authorize", bytes.NewReader(data))
	if cert != nil {
		req.TLS = &tls.ConnectionState{PeerCertificates: []*x509.Certificate{cert}}
	}
	return req
}

func signCN(t *testing.T) *x509.Certificate {
	t.Helper()
	return createTestCert("pay-svc", "Payments")
}

func aclForTests(t *testing.T) *ACLChecker {
	t.Helper()
	return newTestACLChecker(t, "revoked: []", map[string][]string{
		"Payments": {"SIGN", "VERIFY"},
	})
}

func enumParam(tag string, v uint32) ParamJSON { return ParamJSON{Tag: tag, Enum: &v} }

func TestAuthorizeHandler_Allow(t *testing.T) {
	engine := &fakeEngine{decision: nil}
	handler := AuthorizeHandler(engine, aclForTests(t))

	blob := []byte("key material")
	body := AuthorizeRequest{
		Purpose: "SIGN",
		KeyBlob: base64.StdEncoding.EncodeToString(blob),
		KeyPolicy: []ParamJSON{
			enumParam("PURPOSE", uint32(enforce.PurposeSign)),
		},
		OperationHandle: 77,
		IsBegin:         true,
	}

	rec := httptest.NewRecorder()
	handler(rec, newAuthorizeRequest(t, body, signCN(t)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp AuthorizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Decision != "ALLOW" {
		t.Errorf("decision = %s, want ALLOW", resp.Decision)
	}

	if engine.calls != 1 {
		t.Fatalf("engine called %d times, want 1", engine.calls)
	}
	if engine.gotPurpose != enforce.PurposeSign {
		t.Errorf("purpose = %v, want SIGN", engine.gotPurpose)
	}
	if engine.gotKeyID != enforce.CreateKeyID(blob) {
		t.Errorf("key ID not derived from key_blob")
	}
	if engine.gotHandle != 77 || !engine.gotIsBegin {
		t.Errorf("handle/isBegin = (%d, %v), want (77, true)", engine.gotHandle, engine.gotIsBegin)
	}
	if len(engine.gotPolicy) != 1 || engine.gotPolicy[0].Tag != enforce.TagPurpose {
		t.Errorf("policy not decoded: %+v", engine.gotPolicy)
	}
}

func TestAuthorizeHandler_DenyIsHTTP200(t *testing.T) {
	engine := &fakeEngine{decision: enforce.ErrKeyRateLimitExceeded}
	handler := AuthorizeHandler(engine, aclForTests(t))

	body := AuthorizeRequest{
		Purpose: "SIGN",
		KeyID:   uint64Ptr(1234),
	}

	rec := httptest.NewRecorder()
	handler(rec, newAuthorizeRequest(t, body, signCN(t)))

	// A deny is a successful decision, not a transport failure
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp AuthorizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Decision != "DENY" {
		t.Errorf("decision = %s, want DENY", resp.Decision)
	}
	if resp.ErrorCode != "KEY_RATE_LIMIT_EXCEEDED" {
		t.Errorf("error_code = %s, want KEY_RATE_LIMIT_EXCEEDED", resp.ErrorCode)
	}
	if engine.gotKeyID != 1234 {
		t.Errorf("key ID = %d, want 1234 from key_id field", engine.gotKeyID)
	}
}

func uint64Ptr(v uint64) *uint64 { return &v }

func TestAuthorizeHandler_MethodNotAllowed(t *testing.T) {
	handler := AuthorizeHandler(&fakeEngine{}, aclForTests(t))

	req := httptest.NewRequest(http.MethodGet, "/authorize", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestAuthorizeHandler_InvalidJSON(t *testing.T) {
	handler := AuthorizeHandler(&fakeEngine{}, aclForTests(t))

	req := httptest.NewRequest(http.MethodPost, "/authorize", bytes.NewReader([]byte("{not json")))
	req.TLS = &tls.ConnectionState{PeerCertificates: []*x509.Certificate{signCN(t)}}
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAuthorizeHandler_UnknownPurpose(t *testing.T) {
	handler := AuthorizeHandler(&fakeEngine{}, aclForTests(t))

	body := AuthorizeRequest{Purpose: "WRAP", KeyID: uint64Ptr(1)}
	rec := httptest.NewRecorder()
	handler(rec, newAuthorizeRequest(t, body, signCN(t)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAuthorizeHandler_NoClientCert(t *testing.T) {
	handler := AuthorizeHandler(&fakeEngine{}, aclForTests(t))

	body := AuthorizeRequest{Purpose: "SIGN", KeyID: uint64Ptr(1)}
	rec := httptest.NewRecorder()
	handler(rec, newAuthorizeRequest(t, body, nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthorizeHandler_ACLDenied(t *testing.T) {
	engine := &fakeEngine{}
	handler := AuthorizeHandler(engine, aclForTests(t))

	body := AuthorizeRequest{Purpose: "SIGN", KeyID: uint64Ptr(1)}
	rec := httptest.NewRecorder()
	handler(rec, newAuthorizeRequest(t, body, createTestCert("other-svc", "Engineering")))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if engine.calls != 0 {
		t.Error("engine must not be consulted when the ACL denies the client")
	}
}

func TestAuthorizeHandler_MissingKey(t *testing.T) {
	handler := AuthorizeHandler(&fakeEngine{}, aclForTests(t))

	body := AuthorizeRequest{Purpose: "SIGN"}
	rec := httptest.NewRecorder()
	handler(rec, newAuthorizeRequest(t, body, signCN(t)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAuthorizeHandler_UnknownTagBecomesInvalid(t *testing.T) {
	engine := &fakeEngine{decision: enforce.ErrInvalidKeyBlob}
	handler := AuthorizeHandler(engine, aclForTests(t))

	body := AuthorizeRequest{
		Purpose: "SIGN",
		KeyID:   uint64Ptr(1),
		KeyPolicy: []ParamJSON{
			enumParam("PURPOSE", uint32(enforce.PurposeSign)),
			{Tag: "FUTURE_TAG"},
		},
	}
	rec := httptest.NewRecorder()
	handler(rec, newAuthorizeRequest(t, body, signCN(t)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(engine.gotPolicy) != 2 || engine.gotPolicy[1].Tag != enforce.TagInvalid {
		t.Errorf("unknown tag should decode to INVALID, got %+v", engine.gotPolicy)
	}
}

func TestAuthorizeHandler_BadBase64Blob(t *testing.T) {
	handler := AuthorizeHandler(&fakeEngine{}, aclForTests(t))

	body := AuthorizeRequest{
		Purpose: "SIGN",
		KeyID:   uint64Ptr(1),
		OperationParams: []ParamJSON{
			{Tag: "AUTH_TOKEN", Blob: "%%%not-base64%%%"},
		},
	}
	rec := httptest.NewRecorder()
	handler(rec, newAuthorizeRequest(t, body, signCN(t)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	handler := HealthHandler(&fakeEngine{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %s, want healthy", resp.Status)
	}
}
