package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lattica-ai/ragline/internal/domain"
	"github.com/lattica-ai/ragline/internal/usecase/chat"
	collectionuc "github.com/lattica-ai/ragline/internal/usecase/collection"
	"github.com/lattica-ai/ragline/internal/usecase/ingest"
	"github.com/lattica-ai/ragline/internal/vecindex"
)

type memCollRepo struct {
	mu          sync.Mutex
	collections map[string]domain.Collection
}

func (r *memCollRepo) Create(_ context.Context, col domain.Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections[col.ID] = col
	return nil
}

func (r *memCollRepo) Get(_ context.Context, id string) (domain.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	col, ok := r.collections[id]
	if !ok {
		return domain.Collection{}, domain.ErrNotFound
	}
	return col, nil
}

func (r *memCollRepo) List(_ context.Context) ([]domain.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Collection, 0, len(r.collections))
	for _, col := range r.collections {
		out = append(out, col)
	}
	return out, nil
}

func (r *memCollRepo) Update(_ context.Context, col domain.Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.collections[col.ID]; !ok {
		return domain.ErrNotFound
	}
	r.collections[col.ID] = col
	return nil
}

func (r *memCollRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.collections[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.collections, id)
	return nil
}

type memDocRepo struct {
	mu   sync.Mutex
	docs map[string]domain.Document
}

func (r *memDocRepo) Create(_ context.Context, doc domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
	return nil
}

func (r *memDocRepo) Get(_ context.Context, id string) (domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return domain.Document{}, domain.ErrNotFound
	}
	return doc, nil
}

func (r *memDocRepo) ListByCollection(_ context.Context, collectionID string) ([]domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Document
	for _, doc := range r.docs {
		if doc.CollectionID == collectionID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *memDocRepo) Update(_ context.Context, doc domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		return domain.ErrNotFound
	}
	r.docs[doc.ID] = doc
	return nil
}

func (r *memDocRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

type memBlobStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (b *memBlobStore) Put(_ context.Context, path string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[path] = append([]byte(nil), data...)
	return nil
}

func (b *memBlobStore) Get(_ context.Context, path string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.data[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (b *memBlobStore) Delete(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, path)
	return nil
}

type textExtractor struct{}

func (textExtractor) Extract(_ context.Context, data []byte, _ string) (string, error) {
	return string(data), nil
}

type memIndex struct {
	mu     sync.Mutex
	chunks map[string][]domain.Chunk
}

func (x *memIndex) EnsureCollection(_ context.Context, _ string) error { return nil }

func (x *memIndex) Add(_ context.Context, collection string, chunks []domain.Chunk) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.chunks[collection] = append(x.chunks[collection], chunks...)
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids, nil
}

func (x *memIndex) Delete(_ context.Context, collection string, _ []string, filter map[string]string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	docID := filter[domain.MetaDocumentID]
	kept := x.chunks[collection][:0]
	for _, c := range x.chunks[collection] {
		if c.DocumentID != docID {
			kept = append(kept, c)
		}
	}
	x.chunks[collection] = kept
	return nil
}

func (x *memIndex) Search(
	_ context.Context, collection, _ string, k int, filter map[string]string,
) ([]vecindex.SearchHit, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	var hits []vecindex.SearchHit
	for _, c := range x.chunks[collection] {
		if docID, ok := filter[domain.MetaDocumentID]; ok && c.DocumentID != docID {
			continue
		}
		hits = append(hits, vecindex.SearchHit{Chunk: c})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

func (x *memIndex) DropCollection(_ context.Context, collection string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.chunks, collection)
	return nil
}

type memConvRepo struct {
	mu    sync.Mutex
	convs map[string]domain.Conversation
	msgs  map[string][]domain.Message
}

func (r *memConvRepo) Create(_ context.Context, conv domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs[conv.ID] = conv
	return nil
}

func (r *memConvRepo) Get(_ context.Context, id string) (domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.convs[id]
	if !ok {
		return domain.Conversation{}, domain.ErrNotFound
	}
	return conv, nil
}

func (r *memConvRepo) List(_ context.Context) ([]domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Conversation, 0, len(r.convs))
	for _, conv := range r.convs {
		out = append(out, conv)
	}
	return out, nil
}

func (r *memConvRepo) Update(_ context.Context, conv domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.convs[conv.ID]; !ok {
		return domain.ErrNotFound
	}
	r.convs[conv.ID] = conv
	return nil
}

func (r *memConvRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.convs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.convs, id)
	delete(r.msgs, id)
	return nil
}

func (r *memConvRepo) AppendMessage(_ context.Context, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[msg.ConversationID] = append(r.msgs[msg.ConversationID], msg)
	return nil
}

func (r *memConvRepo) Messages(_ context.Context, conversationID string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Message(nil), r.msgs[conversationID]...), nil
}

func (r *memConvRepo) LastMessages(_ context.Context, conversationID string, n int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.msgs[conversationID]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return append([]domain.Message(nil), msgs...), nil
}

type scriptedModel struct {
	deltas []string
	answer string
}

func (m *scriptedModel) Stream(
	ctx context.Context, _ string, _ []domain.Message, _ float64, _ int,
	onDelta func(ctx context.Context, chunk []byte) error,
) (string, error) {
	for _, d := range m.deltas {
		if err := onDelta(ctx, []byte(d)); err != nil {
			return "", err
		}
	}
	return m.answer, nil
}

type staticCheck struct{ err error }

func (c staticCheck) HealthCheck(_ context.Context) error { return c.err }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := zap.NewNop()

	collRepo := &memCollRepo{collections: make(map[string]domain.Collection)}
	docRepo := &memDocRepo{docs: make(map[string]domain.Document)}
	blobs := &memBlobStore{data: make(map[string][]byte)}
	index := &memIndex{chunks: make(map[string][]domain.Chunk)}
	convRepo := &memConvRepo{
		convs: make(map[string]domain.Conversation),
		msgs:  make(map[string][]domain.Message),
	}

	collections := collectionuc.New(collRepo, docRepo, blobs, index, log)
	documents, err := ingest.New(docRepo, collRepo, blobs, textExtractor{}, index, ingest.Config{
		Workers:           2,
		MaxFileSizeBytes:  1 << 20,
		AllowedExtensions: []string{"pdf", "docx", "txt", "md"},
	}, log)
	if err != nil {
		t.Fatalf("ingest.New: %v", err)
	}
	t.Cleanup(documents.Close)

	model := &scriptedModel{deltas: []string{"an ", "answer"}, answer: "an answer"}
	engine := chat.New(convRepo, collRepo, index, model, chat.Options{}, log)

	srv := NewServer(collections, documents, engine,
		map[string]HealthChecker{"records": staticCheck{}}, log)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func createTestCollection(t *testing.T, ts *httptest.Server) domain.Collection {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/collections", map[string]any{
		"name": "manuals",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create collection status %d", resp.StatusCode)
	}
	return decodeBody[domain.Collection](t, resp)
}

func uploadTestDocument(t *testing.T, ts *httptest.Server, collectionID, filename, content string) domain.Document {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	resp, err := http.Post(
		ts.URL+"/api/v1/collections/"+collectionID+"/documents",
		mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status %d", resp.StatusCode)
	}
	return decodeBody[domain.Document](t, resp)
}

func TestCollectionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	col := createTestCollection(t, ts)
	if col.ID == "" || col.Name != "manuals" {
		t.Fatalf("unexpected collection: %+v", col)
	}
	if col.ChunkSize != domain.DefaultChunkSize {
		t.Errorf("chunk size %d, want default", col.ChunkSize)
	}

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/v1/collections", nil)
	list := decodeBody[struct {
		Items []domain.Collection `json:"items"`
	}](t, resp)
	if len(list.Items) != 1 {
		t.Fatalf("listed %d collections, want 1", len(list.Items))
	}

	resp = doJSON(t, http.MethodPatch, ts.URL+"/api/v1/collections/"+col.ID, map[string]any{
		"name": "renamed",
	})
	updated := decodeBody[domain.Collection](t, resp)
	if updated.Name != "renamed" {
		t.Errorf("rename not applied: %+v", updated)
	}

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/collections/"+col.ID, nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/collections/"+col.ID, nil)
	body := decodeBody[errorResponse](t, resp)
	if resp.StatusCode != http.StatusNotFound || body.Code != codeNotFound {
		t.Fatalf("expected 404 %s, got %d %+v", codeNotFound, resp.StatusCode, body)
	}
}

func TestCreateCollectionValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/collections", map[string]any{
		"name": "   ",
	})
	body := decodeBody[errorResponse](t, resp)
	if resp.StatusCode != http.StatusBadRequest || body.Code != codeValidationFailed {
		t.Fatalf("expected 400 %s, got %d %+v", codeValidationFailed, resp.StatusCode, body)
	}
}

func TestDocumentUploadAndProcessing(t *testing.T) {
	ts := newTestServer(t)
	col := createTestCollection(t, ts)

	doc := uploadTestDocument(t, ts, col.ID, "notes.txt", "some text worth indexing")
	if doc.Status != domain.StatusPending {
		t.Fatalf("uploaded document status %s, want pending", doc.Status)
	}

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/documents/"+doc.ID+"/process", nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("process status %d, want 202", resp.StatusCode)
	}

	final := waitForDocStatus(t, ts, doc.ID, domain.StatusCompleted)
	if final.ChunkCount == 0 {
		t.Error("chunk count should be set after processing")
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/documents/"+doc.ID+"/chunks", nil)
	chunks := decodeBody[struct {
		Items []chunkResponse `json:"items"`
	}](t, resp)
	if len(chunks.Items) != final.ChunkCount {
		t.Fatalf("listed %d chunks, record says %d", len(chunks.Items), final.ChunkCount)
	}

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/documents/"+doc.ID, nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d", resp.StatusCode)
	}
}

func waitForDocStatus(t *testing.T, ts *httptest.Server, id string, want domain.Status) domain.Document {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	var last domain.Document
	for time.Now().Before(deadline) {
		resp := doJSON(t, http.MethodGet, ts.URL+"/api/v1/documents/"+id, nil)
		last = decodeBody[domain.Document](t, resp)
		if last.Status == want {
			return last
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("document %s never reached %s, last seen %+v", id, want, last)
	return domain.Document{}
}

func TestUploadUnsupportedExtension(t *testing.T) {
	ts := newTestServer(t)
	col := createTestCollection(t, ts)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "malware.exe")
	_, _ = fw.Write([]byte("boom"))
	_ = mw.Close()

	resp, err := http.Post(
		ts.URL+"/api/v1/collections/"+col.ID+"/documents",
		mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	body := decodeBody[errorResponse](t, resp)
	if resp.StatusCode != http.StatusUnsupportedMediaType || body.Code != codeUnsupportedFormat {
		t.Fatalf("expected 415 %s, got %d %+v", codeUnsupportedFormat, resp.StatusCode, body)
	}
}

func TestUploadMissingFilePart(t *testing.T) {
	ts := newTestServer(t)
	col := createTestCollection(t, ts)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("note", "no file here")
	_ = mw.Close()

	resp, err := http.Post(
		ts.URL+"/api/v1/collections/"+col.ID+"/documents",
		mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	body := decodeBody[errorResponse](t, resp)
	if resp.StatusCode != http.StatusBadRequest || body.Code != codeBadRequest {
		t.Fatalf("expected 400 %s, got %d %+v", codeBadRequest, resp.StatusCode, body)
	}
}

func TestChatStream(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/chat", map[string]any{
		"question": "say something",
	})
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q, want text/event-stream", ct)
	}

	frames := readSSEFrames(t, resp)
	if len(frames) < 3 {
		t.Fatalf("expected at least start, content and done frames, got %v", frames)
	}
	if frames[len(frames)-1] != "[DONE]" {
		t.Fatalf("stream must end with [DONE], got %q", frames[len(frames)-1])
	}

	var first chat.Event
	if err := json.Unmarshal([]byte(frames[0]), &first); err != nil {
		t.Fatalf("decode first frame: %v", err)
	}
	if first.Type != chat.EventStart || first.ConversationID == "" {
		t.Fatalf("first frame should be start with a conversation id, got %+v", first)
	}

	var content strings.Builder
	for _, frame := range frames[1 : len(frames)-1] {
		var ev chat.Event
		if err := json.Unmarshal([]byte(frame), &ev); err != nil {
			t.Fatalf("decode frame %q: %v", frame, err)
		}
		switch ev.Type {
		case chat.EventContent:
			content.WriteString(ev.Content)
		case chat.EventDone:
		default:
			t.Fatalf("unexpected event %+v", ev)
		}
	}
	if content.String() != "an answer" {
		t.Errorf("streamed content %q, want %q", content.String(), "an answer")
	}

	// The conversation and both messages are now retrievable.
	msgsResp := doJSON(t, http.MethodGet,
		ts.URL+"/api/v1/conversations/"+first.ConversationID+"/messages", nil)
	msgs := decodeBody[struct {
		Items []domain.Message `json:"items"`
	}](t, msgsResp)
	if len(msgs.Items) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(msgs.Items))
	}
}

func readSSEFrames(t *testing.T, resp *http.Response) []string {
	t.Helper()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read stream: %v", err)
	}
	var frames []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if payload, ok := strings.CutPrefix(line, "data: "); ok {
			frames = append(frames, payload)
		}
	}
	return frames
}

func TestChatEmptyQuestion(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/chat", map[string]any{
		"question": "  ",
	})
	body := decodeBody[errorResponse](t, resp)
	if resp.StatusCode != http.StatusBadRequest || body.Code != codeValidationFailed {
		t.Fatalf("expected 400 %s, got %d %+v", codeValidationFailed, resp.StatusCode, body)
	}
}

func TestChatUnknownCollection(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/chat", map[string]any{
		"question":      "hello",
		"collection_id": "missing",
	})
	body := decodeBody[errorResponse](t, resp)
	if resp.StatusCode != http.StatusNotFound || body.Code != codeNotFound {
		t.Fatalf("expected 404 %s, got %d %+v", codeNotFound, resp.StatusCode, body)
	}
}

func TestConversationLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/chat", map[string]any{
		"question": "first question",
	})
	frames := readSSEFrames(t, resp)
	_ = resp.Body.Close()
	var first chat.Event
	if err := json.Unmarshal([]byte(frames[0]), &first); err != nil {
		t.Fatalf("decode first frame: %v", err)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/conversations", nil)
	list := decodeBody[struct {
		Items []domain.Conversation `json:"items"`
	}](t, resp)
	if len(list.Items) != 1 {
		t.Fatalf("listed %d conversations, want 1", len(list.Items))
	}

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/conversations/"+first.ConversationID, nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/conversations/"+first.ConversationID, nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestHealthCheck(t *testing.T) {
	log := zap.NewNop()
	srv := NewServer(nil, nil, nil, map[string]HealthChecker{
		"records": staticCheck{},
		"index":   staticCheck{err: errors.New("down")},
	}, log)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	body := decodeBody[struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}](t, resp)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503 with a failing check", resp.StatusCode)
	}
	if body.Status != "unhealthy" || body.Checks["index"] != "unhealthy" || body.Checks["records"] != "healthy" {
		t.Fatalf("unexpected health body: %+v", body)
	}
}
