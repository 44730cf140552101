package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"brainsim/internal/cases"
	"brainsim/internal/clinical"
	"brainsim/internal/domain"
	"brainsim/internal/domain/jsoncfg"
	"brainsim/internal/infra"
	"brainsim/internal/providers/genai"
	"brainsim/internal/providers/prompt"
	"brainsim/internal/providers/video"
	"brainsim/internal/storage"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

type fakePrompts struct {
	in     clinical.Input
	res    prompt.Result
	ctxErr error
}

func (f *fakePrompts) Generate(ctx context.Context, in clinical.Input) prompt.Result {
	f.in = in
	f.ctxErr = ctx.Err()
	return f.res
}

type fakeImages struct {
	credErr error
	calls   int
	labels  []string
	field   jsoncfg.PromptField
	out     []domain.Outcome
	ctxErr  error
}

func (f *fakeImages) CheckCredentials() error { return f.credErr }

func (f *fakeImages) Generate(ctx context.Context, field jsoncfg.PromptField, labels []string) []domain.Outcome {
	f.calls++
	f.ctxErr = ctx.Err()
	f.field = field
	f.labels = labels
	return f.out
}

type fakeVideos struct {
	req    video.Request
	res    *video.Result
	err    error
	ctxErr error
}

func (f *fakeVideos) Generate(ctx context.Context, req video.Request) (*video.Result, error) {
	f.req = req
	f.ctxErr = ctx.Err()
	return f.res, f.err
}

type fakeCases struct {
	prompts map[string]string
	files   map[string][]domain.FileMeta
	images  map[string]map[string]*string
	videos  map[string]string
	getErr  error
}

func newFakeCases() *fakeCases {
	return &fakeCases{prompts: map[string]string{}, files: map[string][]domain.FileMeta{}, images: map[string]map[string]*string{}, videos: map[string]string{}}
}

func (f *fakeCases) Create(_ context.Context, in cases.NewCase) (*cases.Case, error) {
	return &cases.Case{ID: "c1", Patient: in.Patient, BasePrompt: in.BasePrompt}, nil
}

func (f *fakeCases) Get(_ context.Context, id string) (*cases.Case, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &cases.Case{ID: id}, nil
}

func (f *fakeCases) List(context.Context, int) ([]cases.Case, error) { return nil, nil }

func (f *fakeCases) UpdatePrompt(_ context.Context, id, p string, ehr, ct []domain.FileMeta) error {
	f.prompts[id] = p
	f.files[id] = append(append([]domain.FileMeta{}, ehr...), ct...)
	return nil
}

func (f *fakeCases) MergeImages(_ context.Context, id string, images map[string]*string) error {
	f.images[id] = images
	return nil
}

func (f *fakeCases) UpdateVideo(_ context.Context, id, url string) error {
	f.videos[id] = url
	return nil
}

func testConfig() *infra.Config {
	return &infra.Config{MaxUploadBytes: 8 << 20, StaticDir: "static"}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestModelPromptReadsMultipartInputs(t *testing.T) {
	prompts := &fakePrompts{res: prompt.Result{Prompt: "generated"}}
	store := newFakeCases()
	app := &App{Config: testConfig(), Prompts: prompts, Cases: store}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("base_prompt", "brain")
	_ = mw.WriteField("patient", `{"firstName":"Evelyn","lastName":"Reed"}`)
	_ = mw.WriteField("case_id", "case-1")
	for _, name := range []string{"a.txt", "b.json"} {
		fw, _ := mw.CreateFormFile("ehr_files", name)
		_, _ = fw.Write([]byte("notes " + name))
	}
	fw, _ := mw.CreateFormFile("ct_scans", "ct.png")
	_, _ = fw.Write([]byte{0x89, 'P', 'N', 'G'})
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/model/prompt", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	app.ModelPrompt(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	if got := decodeBody(t, rec)["generated_prompt"]; got != "generated" {
		t.Fatalf("generated_prompt = %v", got)
	}
	in := prompts.in
	if in.BasePrompt != "brain" || in.Patient.DisplayName() != "Evelyn Reed" {
		t.Fatalf("input = %+v", in)
	}
	if len(in.EHRFiles) != 2 || len(in.CTScans) != 1 {
		t.Fatalf("ehr = %d ct = %d, want 2 and 1", len(in.EHRFiles), len(in.CTScans))
	}
	if string(in.EHRFiles[1].Bytes()) != "notes b.json" {
		t.Fatalf("ehr[1] = %q", in.EHRFiles[1].Bytes())
	}
	if store.prompts["case-1"] != "generated" {
		t.Fatalf("case prompt = %q", store.prompts["case-1"])
	}
	files := store.files["case-1"]
	if len(files) != 3 {
		t.Fatalf("case files = %+v, want 3", files)
	}
	if files[1].Name != "b.json" || files[1].Size != len("notes b.json") {
		t.Fatalf("case files[1] = %+v", files[1])
	}
	if files[2].Name != "ct.png" || files[2].Size != 4 {
		t.Fatalf("case files[2] = %+v", files[2])
	}
}

func TestModelPromptWithoutMultipartUsesDefaults(t *testing.T) {
	prompts := &fakePrompts{res: prompt.Result{Prompt: " [patient:n/a]", FallbackReason: "empty_response"}}
	app := &App{Config: testConfig(), Prompts: prompts}

	req := httptest.NewRequest(http.MethodPost, "/model/prompt", strings.NewReader("garbage"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	app.ModelPrompt(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	if len(prompts.in.Patient) != 0 || prompts.in.EHRFiles != nil {
		t.Fatalf("input = %+v, want defaults", prompts.in)
	}
}

func TestModelGenerateImagesMissingCredential(t *testing.T) {
	images := &fakeImages{credErr: domain.MissingCredential("BFL_API_KEY")}
	app := &App{Config: testConfig(), Images: images}

	rec := httptest.NewRecorder()
	app.ModelGenerateImages(rec, httptest.NewRequest(http.MethodPost, "/model/generate_images", strings.NewReader(`{"prompt":"brain"}`)))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "Missing BFL_API_KEY" {
		t.Fatalf("error = %v", got)
	}
	if images.calls != 0 {
		t.Fatal("no job should run without a credential")
	}
}

func TestModelGenerateImagesRelaysOutcomes(t *testing.T) {
	images := &fakeImages{out: []domain.Outcome{
		domain.Ready("now", "https://cdn.example.com/now.jpg"),
		domain.Failed("3m", errors.New("flux: submit status 500")),
	}}
	store := newFakeCases()
	app := &App{Config: testConfig(), Images: images, Cases: store}

	body := `{"prompt":[{"time_point":"now","prompt":"a"}],"timepoints":["now","3m","now"],"case_id":"case-1"}`
	rec := httptest.NewRecorder()
	app.ModelGenerateImages(rec, httptest.NewRequest(http.MethodPost, "/model/generate_images", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	got := decodeBody(t, rec)["images"].(map[string]any)
	if got["now"] != "https://cdn.example.com/now.jpg" {
		t.Fatalf("now = %v", got["now"])
	}
	if v, ok := got["3m"]; !ok || v != nil {
		t.Fatalf("3m = %v (present %t), want null", v, ok)
	}
	if len(images.labels) != 2 {
		t.Fatalf("labels = %v, want deduplicated", images.labels)
	}
	if images.field.Shape() != jsoncfg.ShapeList {
		t.Fatalf("shape = %s, want list", images.field.Shape())
	}
	recorded := store.images["case-1"]
	if len(recorded) != 1 || recorded["now"] == nil {
		t.Fatalf("recorded = %v, want only the ready timepoint", recorded)
	}
}

func TestModelGenerateImagesMalformedBodyUsesDefaults(t *testing.T) {
	images := &fakeImages{}
	app := &App{Config: testConfig(), Images: images}

	rec := httptest.NewRecorder()
	app.ModelGenerateImages(rec, httptest.NewRequest(http.MethodPost, "/model/generate_images", strings.NewReader(`[1,2`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	if strings.Join(images.labels, ",") != "now,3m,6m,12m" {
		t.Fatalf("labels = %v, want defaults", images.labels)
	}
}

func TestModelGenerateImagesKeepsEmptyLabel(t *testing.T) {
	images := &fakeImages{out: []domain.Outcome{
		domain.Ready("now", "https://cdn.example.com/now.jpg"),
		domain.Failed("", errors.New("image: empty timepoint label")),
	}}
	app := &App{Config: testConfig(), Images: images}

	body := `{"prompt":"brain","timepoints":["now","","now"]}`
	rec := httptest.NewRecorder()
	app.ModelGenerateImages(rec, httptest.NewRequest(http.MethodPost, "/model/generate_images", strings.NewReader(body)))

	if len(images.labels) != 2 || images.labels[0] != "now" || images.labels[1] != "" {
		t.Fatalf("labels = %#v, want [now \"\"]", images.labels)
	}
	got := decodeBody(t, rec)["images"].(map[string]any)
	if v, ok := got[""]; !ok || v != nil {
		t.Fatalf("empty label = %v (present %t), want null", v, ok)
	}
}

func TestModelGenerateVideoMissingCredentialMakesNoExternalCall(t *testing.T) {
	outbound := 0
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		outbound++
		return nil, errors.New("unexpected outbound request")
	})
	client, err := genai.NewClient(genai.Options{
		Credential: "GOOGLE_API_KEY",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("genai.NewClient returned error: %v", err)
	}
	store, _ := storage.NewFileStore(t.TempDir())
	gen, err := video.NewGenerator(video.Options{
		Model:      client,
		Store:      store,
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("video.NewGenerator returned error: %v", err)
	}
	app := &App{Config: testConfig(), Videos: gen}

	body := `{"image_url":"https://cdn.example.com/ct.png","prompt":"orbit"}`
	rec := httptest.NewRecorder()
	app.ModelGenerateVideo(rec, httptest.NewRequest(http.MethodPost, "/model/generate_video", strings.NewReader(body)))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "Missing GOOGLE_API_KEY" {
		t.Fatalf("error = %v", got)
	}
	if outbound != 0 {
		t.Fatalf("outbound requests = %d, want 0", outbound)
	}
}

func TestModelGenerateVideoFailureIsReportedInBody(t *testing.T) {
	app := &App{Config: testConfig(), Videos: &fakeVideos{err: errors.New("genai: job failed: blocked")}}

	rec := httptest.NewRecorder()
	app.ModelGenerateVideo(rec, httptest.NewRequest(http.MethodPost, "/model/generate_video", strings.NewReader(`{}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "genai: job failed: blocked" {
		t.Fatalf("error = %v", got)
	}
}

func TestModelGenerateVideoReturnsPublicURL(t *testing.T) {
	videos := &fakeVideos{res: &video.Result{Filename: "brain_abc.mp4"}}
	store := newFakeCases()
	app := &App{Config: testConfig(), Videos: videos, Cases: store}

	body := `{"prompt":[{"time_point":"3m","prompt":"three"},{"time_point":"6m","prompt":"six"}],"time_point":"6m","seconds":"9","case_id":"case-1"}`
	req := httptest.NewRequest(http.MethodPost, "/model/generate_video", strings.NewReader(body))
	req.Host = "localhost:5001"
	rec := httptest.NewRecorder()
	app.ModelGenerateVideo(rec, req)

	want := "http://localhost:5001/static/videos/brain_abc.mp4"
	if got := decodeBody(t, rec)["video_url"]; got != want {
		t.Fatalf("video_url = %v, want %s", got, want)
	}
	if videos.req.Prompt != "six" || videos.req.Seconds != 9 || videos.req.Timepoint != "6m" {
		t.Fatalf("request = %+v", videos.req)
	}
	if store.videos["case-1"] != want {
		t.Fatalf("case video = %q", store.videos["case-1"])
	}
}

func TestGenerationOutlivesClientDisconnect(t *testing.T) {
	prompts := &fakePrompts{res: prompt.Result{Prompt: "generated"}}
	images := &fakeImages{out: []domain.Outcome{domain.Ready("now", "https://cdn.example.com/now.jpg")}}
	videos := &fakeVideos{res: &video.Result{Filename: "brain_abc.mp4"}}
	app := &App{Config: testConfig(), Prompts: prompts, Images: images, Videos: videos}

	cancelled := func(path, body string) *http.Request {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		return req.WithContext(ctx)
	}

	app.ModelPrompt(httptest.NewRecorder(), cancelled("/model/prompt", ""))
	app.ModelGenerateImages(httptest.NewRecorder(), cancelled("/model/generate_images", `{"prompt":"brain","timepoints":["now"]}`))
	app.ModelGenerateVideo(httptest.NewRecorder(), cancelled("/model/generate_video", `{"prompt":"orbit"}`))

	if images.calls != 1 {
		t.Fatalf("image calls = %d, want 1", images.calls)
	}
	for name, err := range map[string]error{
		"prompt": prompts.ctxErr,
		"images": images.ctxErr,
		"video":  videos.ctxErr,
	} {
		if err != nil {
			t.Fatalf("%s generator saw ctx err %v, want nil", name, err)
		}
	}
}

func TestPublicURLHonoursForwardedProto(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Host = "brain.example.com"
	req.Header.Set("X-Forwarded-Proto", "https")
	if got := publicURL(req, "/static/videos/a.mp4"); got != "https://brain.example.com/static/videos/a.mp4" {
		t.Fatalf("publicURL = %q", got)
	}
}

func TestCasesGetNotFound(t *testing.T) {
	app := &App{Config: testConfig(), Cases: &fakeCases{getErr: domain.ErrNotFound}}
	r := chi.NewRouter()
	r.Get("/cases/{id}", app.CasesGet)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cases/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", rec.Code)
	}
}

func TestCasesCreate(t *testing.T) {
	app := &App{Config: testConfig(), Cases: newFakeCases()}
	rec := httptest.NewRecorder()
	app.CasesCreate(rec, httptest.NewRequest(http.MethodPost, "/cases", strings.NewReader(`{"patient":{"firstName":"Evelyn"},"base_prompt":"brain"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d, want 201", rec.Code)
	}
	if got := decodeBody(t, rec)["base_prompt"]; got != "brain" {
		t.Fatalf("base_prompt = %v", got)
	}
}

func TestHealthListsMissingCredentials(t *testing.T) {
	app := &App{
		Config: testConfig(),
		Cases:  newFakeCases(),
		Credentials: []CredentialCheck{
			&fakeImages{credErr: domain.MissingCredential("BFL_API_KEY")},
			&fakeImages{},
		},
	}

	rec := httptest.NewRecorder()
	app.Health(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))

	body := decodeBody(t, rec)
	if body["status"] != "ok" || body["cases"] != true {
		t.Fatalf("body = %v", body)
	}
	missing, _ := body["missing_credentials"].([]any)
	if len(missing) != 1 || missing[0] != "BFL_API_KEY" {
		t.Fatalf("missing_credentials = %v, want [BFL_API_KEY]", body["missing_credentials"])
	}
}

func TestOpenAPIJSONReflectsHostAndCases(t *testing.T) {
	app := &App{Config: testConfig()}
	req := httptest.NewRequest(http.MethodGet, "/v1/openapi.json", nil)
	req.Host = "brain.example:5001"

	rec := httptest.NewRecorder()
	app.OpenAPIJSON(rec, req)

	body := decodeBody(t, rec)
	servers, _ := body["servers"].([]any)
	if len(servers) != 1 {
		t.Fatalf("servers = %v", body["servers"])
	}
	if url := servers[0].(map[string]any)["url"]; url != "http://brain.example:5001" {
		t.Fatalf("server url = %v, want http://brain.example:5001", url)
	}
	paths, _ := body["paths"].(map[string]any)
	if _, ok := paths["/model/prompt"]; !ok {
		t.Fatal("expected /model/prompt in paths")
	}
	if _, ok := paths["/cases"]; ok {
		t.Fatal("case paths should be hidden without a case store")
	}
}
