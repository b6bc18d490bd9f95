package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mid "github.com/OFFIS-RIT/kiwi-insure/internal/server/middleware"
	"github.com/OFFIS-RIT/kiwi-insure/internal/storage"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/ai"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/graph"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/query"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store/memory"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rabbitmq/amqp091-go"
)

const (
	masterKey = "test-master-key"
	jwtSecret = "test-secret"
)

const extraction = `{
  "entities": [
    {"name": "John", "type": "Person", "description": "John lives in Mapo-gu.", "confidence": 0.9, "properties": {"user_id": "u-1"}},
    {"name": "Mapo-gu", "type": "Location", "description": "District with high flood risk.", "confidence": 0.95},
    {"name": "Flood", "type": "Risk", "description": "Flooding near the river.", "confidence": 0.85},
    {"name": "FloodGuard", "type": "Insurance", "description": "Covers flood damage.", "confidence": 0.8}
  ],
  "relationships": [
    {"source": "John", "target": "Mapo-gu", "type": "LIVES_IN", "description": "John lives in Mapo-gu.", "confidence": 0.9},
    {"source": "Mapo-gu", "target": "Flood", "type": "HAS_RISK", "description": "High flood risk.", "confidence": 0.85},
    {"source": "FloodGuard", "target": "Flood", "type": "COVERS", "description": "FloodGuard covers floods.", "confidence": 0.8}
  ]
}`

type fixedClient struct{ response string }

func (f fixedClient) GenerateCompletion(context.Context, string, ...ai.GenerateOption) (string, error) {
	return f.response, nil
}

func (fixedClient) GenerateEmbedding(context.Context, []byte) ([]float32, error) {
	return nil, nil
}
func (fixedClient) ResetMetrics()               {}
func (fixedClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

type fakePublisher struct {
	mu   sync.Mutex
	keys []string
	msgs []amqp091.Publishing
}

func (f *fakePublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp091.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.msgs = append(f.msgs, msg)
	return nil
}

type fakeObjects struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeObjects) GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return nil, nil
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, *in.Key)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) DeleteObject(context.Context, *s3.DeleteObjectInput, ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	return &s3.DeleteObjectOutput{}, nil
}

func newTestApp(t *testing.T) *mid.App {
	t.Helper()
	s := memory.NewGraphStore()
	g, err := graph.NewGraphClient(graph.NewGraphClientParams{
		AIClient: fixedClient{response: extraction},
		Store:    s,
	})
	if err != nil {
		t.Fatal(err)
	}
	return &mid.App{
		Graph:        g,
		Search:       query.NewSearchService(s),
		Keyfunc:      func(*jwt.Token) (any, error) { return []byte(jwtSecret), nil },
		MasterAPIKey: masterKey,
	}
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func do(t *testing.T, app *mid.App, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	New(app).ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type named struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func ingest(t *testing.T, app *mid.App) {
	t.Helper()
	rec := do(t, app, http.MethodPost, "/documents", masterKey, map[string]string{
		"document_id": "ad-1",
		"text":        "John lives in Mapo-gu. Mapo-gu has high flood risk. FloodGuard covers floods.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestApp(t), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	app := newTestApp(t)
	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"Missing", "", http.StatusUnauthorized},
		{"Garbage", "not-a-token", http.StatusUnauthorized},
		{"MasterKey", masterKey, http.StatusOK},
		{"UserDefaultPermissions", signToken(t, jwt.MapClaims{"sub": "u-2"}), http.StatusOK},
		{"MissingPermission", signToken(t, jwt.MapClaims{"sub": "u-2", "permissions": []string{"claim.analyze"}}), http.StatusForbidden},
		{"Expired", signToken(t, jwt.MapClaims{"sub": "u-2", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, app, http.MethodGet, "/search/global?q=john", tt.token, nil)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestPostDocument(t *testing.T) {
	app := newTestApp(t)

	user := signToken(t, jwt.MapClaims{"sub": "u-2"})
	rec := do(t, app, http.MethodPost, "/documents", user, map[string]string{"text": "x"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("ingest without document.ingest = %d, want 403", rec.Code)
	}

	rec = do(t, app, http.MethodPost, "/documents", masterKey, map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty body = %d, want 400", rec.Code)
	}

	rec = do(t, app, http.MethodPost, "/documents", masterKey, map[string]string{
		"text": "John lives in Mapo-gu.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[struct {
		DocumentID    string `json:"document_id"`
		Chunks        int    `json:"chunks"`
		Entities      int    `json:"entities"`
		Relationships int    `json:"relationships"`
	}](t, rec)
	if !strings.HasPrefix(got.DocumentID, "doc") {
		t.Errorf("generated document id = %q", got.DocumentID)
	}
	if got.Chunks != 1 || got.Entities != 4 || got.Relationships != 3 {
		t.Errorf("report = %+v, want 1 chunk, 4 entities, 3 relationships", got)
	}
}

func TestSearch(t *testing.T) {
	app := newTestApp(t)
	ingest(t, app)

	rec := do(t, app, http.MethodGet, "/search/global?q=mapo", masterKey, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("global status = %d", rec.Code)
	}
	global := decode[struct {
		Mode        string  `json:"mode"`
		Entities    []named `json:"entities"`
		Citations   []any   `json:"citations"`
		Communities []any   `json:"communities"`
	}](t, rec)
	if global.Mode != "global" || len(global.Entities) == 0 || global.Entities[0].Name != "Mapo-gu" {
		t.Errorf("global = %+v", global)
	}
	if global.Citations == nil || global.Communities == nil {
		t.Error("citations and communities must be present")
	}

	rec = do(t, app, http.MethodGet, "/search/global", masterKey, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("global without q = %d, want 400", rec.Code)
	}

	rec = do(t, app, http.MethodGet, "/search/local?q=flood&entity=mapo-gu", masterKey, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("local status = %d", rec.Code)
	}
	local := decode[struct {
		Mode          string  `json:"mode"`
		Entities      []named `json:"entities"`
		Relationships []named `json:"relationships"`
	}](t, rec)
	if local.Mode != "local" || len(local.Entities) < 2 || local.Entities[0].Name != "Mapo-gu" || local.Entities[1].Name != "Flood" {
		t.Errorf("local = %+v", local)
	}
	if len(local.Relationships) != 2 {
		t.Errorf("local relationships = %d, want 2", len(local.Relationships))
	}

	rec = do(t, app, http.MethodGet, "/search/local?q=flood", masterKey, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("local without entity = %d, want 400", rec.Code)
	}
}

func TestAnalyzeClaim(t *testing.T) {
	app := newTestApp(t)
	user := signToken(t, jwt.MapClaims{"sub": "u-1"})

	rec := do(t, app, http.MethodPost, "/claims/analyze", user, map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty claim = %d, want 400", rec.Code)
	}

	rec = do(t, app, http.MethodPost, "/claims/analyze", user, map[string]string{
		"text": "John from Mapo-gu claims flood damage under FloodGuard.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[struct {
		ClaimID   string  `json:"claim_id"`
		Claimants []named `json:"claimants"`
		Locations []named `json:"locations"`
		Risks     []named `json:"risks"`
		Coverages []named `json:"coverages"`
	}](t, rec)
	if got.ClaimID == "" {
		t.Error("missing claim id")
	}
	if len(got.Claimants) != 1 || got.Claimants[0].Name != "John" {
		t.Errorf("claimants = %+v", got.Claimants)
	}
	if len(got.Locations) != 1 || len(got.Risks) != 1 || len(got.Coverages) != 1 {
		t.Errorf("claim = %+v", got)
	}
}

func TestRecommendations(t *testing.T) {
	app := newTestApp(t)
	ingest(t, app)

	tests := []struct {
		name  string
		token string
		user  string
		want  int
	}{
		{"Own", signToken(t, jwt.MapClaims{"sub": "u-1"}), "u-1", http.StatusOK},
		{"NumericID", signToken(t, jwt.MapClaims{"id": 7}), "7", http.StatusOK},
		{"Other", signToken(t, jwt.MapClaims{"sub": "u-2"}), "u-1", http.StatusForbidden},
		{"ViewAll", signToken(t, jwt.MapClaims{"sub": "agent", "permissions": []string{"recommendation.view:all"}}), "u-1", http.StatusOK},
		{"Admin", signToken(t, jwt.MapClaims{"sub": "root", "role": "admin"}), "u-1", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, app, http.MethodGet, "/users/"+tt.user+"/recommendations", tt.token, nil)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	rec := do(t, app, http.MethodGet, "/users/u-1/recommendations", masterKey, nil)
	got := decode[struct {
		Recommendations []struct {
			Insurance named    `json:"insurance"`
			Risks     []string `json:"risks"`
			Score     int      `json:"score"`
		} `json:"recommendations"`
	}](t, rec)
	if len(got.Recommendations) != 1 {
		t.Fatalf("recommendations = %+v", got.Recommendations)
	}
	r := got.Recommendations[0]
	if r.Insurance.Name != "FloodGuard" || r.Score != 1 || len(r.Risks) != 1 || r.Risks[0] != "Flood" {
		t.Errorf("recommendation = %+v", r)
	}
}

func TestQueueDocument(t *testing.T) {
	t.Run("QueueMissing", func(t *testing.T) {
		rec := do(t, newTestApp(t), http.MethodPost, "/documents/queue", masterKey, map[string]string{"text": "x"})
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("Text", func(t *testing.T) {
		app := newTestApp(t)
		pub := &fakePublisher{}
		app.Queue = pub
		rec := do(t, app, http.MethodPost, "/documents/queue", masterKey, map[string]string{
			"document_id": "ad-9",
			"text":        "John lives in Mapo-gu.",
		})
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		if len(pub.keys) != 1 || pub.keys[0] != "ingest_queue" {
			t.Fatalf("published to %v", pub.keys)
		}
		if !bytes.Contains(pub.msgs[0].Body, []byte(`"ad-9"`)) {
			t.Errorf("body = %s", pub.msgs[0].Body)
		}
	})

	t.Run("EmptyBody", func(t *testing.T) {
		app := newTestApp(t)
		app.Queue = &fakePublisher{}
		rec := do(t, app, http.MethodPost, "/documents/queue", masterKey, map[string]string{})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("File", func(t *testing.T) {
		app := newTestApp(t)
		pub := &fakePublisher{}
		objects := &fakeObjects{}
		app.Queue = pub
		app.Bucket = storage.NewBucket(objects, "documents")

		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		_ = w.WriteField("document_id", "policy-1")
		fw, err := w.CreateFormFile("file", "policy.txt")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte("Article 1 (Purpose) This policy covers flood damage."))
		w.Close()

		req := httptest.NewRequest(http.MethodPost, "/documents/queue", &body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+masterKey)
		rec := httptest.NewRecorder()
		New(app).ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		if len(objects.keys) != 1 || objects.keys[0] != "ingest/policy-1.txt" {
			t.Fatalf("uploaded keys = %v", objects.keys)
		}
		if len(pub.msgs) != 1 || !bytes.Contains(pub.msgs[0].Body, []byte("ingest/policy-1.txt")) {
			t.Errorf("published = %v", pub.msgs)
		}
	})
}
