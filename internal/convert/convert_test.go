// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docconv/internal/httputil"
	"github.com/pdiddy/docconv/internal/readiness"
	"github.com/pdiddy/docconv/pkg/types"
)

// --- test doubles ---

type fakeReadiness struct {
	verdict readiness.Verdict
}

func (f fakeReadiness) Verdict(context.Context) readiness.Verdict { return f.verdict }

type fakeCapabilities map[string]bool

func (f fakeCapabilities) IsSupported(_ context.Context, ext string) bool {
	return f[types.NormalizeExtension(ext)]
}

// fakeTransport records calls and answers with canned JSON bodies.
type fakeTransport struct {
	postBody string
	postErr  error
	getBody  string
	getErr   error

	posts     []map[string]string
	postURLs  []string
	fetchURLs []string
}

func (f *fakeTransport) FetchJSON(_ context.Context, url string, v any) error {
	f.fetchURLs = append(f.fetchURLs, url)
	if f.getErr != nil {
		return f.getErr
	}
	return json.Unmarshal([]byte(f.getBody), v)
}

func (f *fakeTransport) PostMultipart(_ context.Context, url string, fields []httputil.Field, v any) error {
	f.postURLs = append(f.postURLs, url)
	got := map[string]string{}
	for _, field := range fields {
		if field.Content != nil {
			data, err := io.ReadAll(field.Content)
			if err != nil {
				return err
			}
			got[field.Name] = string(data)
			got[field.Name+".filename"] = field.Filename
			continue
		}
		got[field.Name] = field.Value
	}
	f.posts = append(f.posts, got)
	if f.postErr != nil {
		return f.postErr
	}
	return json.Unmarshal([]byte(f.postBody), v)
}

// memFiles serves sources from memory and stores artifacts under dir.
type memFiles struct {
	dir     string
	sources map[string]string
	openErr error
}

func (m *memFiles) OpenSource(_ context.Context, src types.SourceFile) (io.ReadCloser, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	content, ok := m.sources[src.ID]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (m *memFiles) StoreArtifact(_ context.Context, job *types.ConversionJob, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(m.dir, job.ID+filepath.Ext(path))
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

type memJobs struct {
	mu    sync.Mutex
	saved []types.ConversionJob
}

func (m *memJobs) Save(_ context.Context, job *types.ConversionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, *job)
	return nil
}

func (m *memJobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

// --- helpers ---

const serviceURL = "https://svc.example.com/"

type fixture struct {
	conv      *Converter
	transport *fakeTransport
	files     *memFiles
	jobs      *memJobs
	scratch   string
}

func newFixture(t *testing.T, verdict readiness.Verdict, caps fakeCapabilities) *fixture {
	t.Helper()
	f := &fixture{
		transport: &fakeTransport{},
		files: &memFiles{
			dir:     t.TempDir(),
			sources: map[string]string{"src-1": "docx content"},
		},
		jobs:    &memJobs{},
		scratch: t.TempDir(),
	}
	conv, err := New(Config{
		BaseURL:      serviceURL,
		ScratchDir:   f.scratch,
		Readiness:    fakeReadiness{verdict: verdict},
		Capabilities: caps,
		Transport:    f.transport,
		Files:        f.files,
		Jobs:         f.jobs,
		Now:          func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	f.conv = conv
	return f
}

func readyFixture(t *testing.T) *fixture {
	return newFixture(t, readiness.Verdict{Status: readiness.StatusOK},
		fakeCapabilities{"docx": true, "pdf": true, "odt": true})
}

func newPendingJob() *types.ConversionJob {
	src := types.SourceFile{ID: "src-1", Filename: "report.docx", Path: "sources/src-1/report.docx"}
	return types.NewJob("job-1", src, "pdf", time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))
}

func inProgressJob() *types.ConversionJob {
	job := newPendingJob()
	job.Status = types.StatusInProgress
	job.RemoteHandle = "973006fa-f133-4403-bbc0-c39da3415727"
	return job
}

// assertInvariants checks the handle and destination invariants.
func assertInvariants(t *testing.T, job *types.ConversionJob) {
	t.Helper()
	assert.Equal(t, job.Status == types.StatusComplete, job.DestFile != "",
		"destFile set iff complete (status %s)", job.Status)
	if job.Status == types.StatusInProgress || job.Status == types.StatusComplete {
		assert.NotEmpty(t, job.RemoteHandle, "in-progress or complete job must carry a handle")
	}
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directories are removed after each call")
}

func byteArrayJSON(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprint(b)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// --- Submit ---

func TestSubmit_Accepted(t *testing.T) {
	f := readyFixture(t)
	f.transport.postBody = `{"conversionId":"abc-123"}`
	job := newPendingJob()

	require.NoError(t, f.conv.Submit(context.Background(), job))

	assert.Equal(t, types.StatusInProgress, job.Status)
	assert.Equal(t, "abc-123", job.RemoteHandle)
	assert.Equal(t, "In Progress", job.StatusMessage)
	assert.Empty(t, job.DestFile)
	assertInvariants(t, job)

	require.Len(t, f.transport.posts, 1)
	assert.Equal(t, "https://svc.example.com/conversion", f.transport.postURLs[0])
	assert.Equal(t, map[string]string{
		"file":           "docx content",
		"file.filename":  "report.docx",
		"filename":       "report.docx",
		"originalFormat": "docx",
		"targetFormat":   "pdf",
	}, f.transport.posts[0])

	require.Equal(t, 1, f.jobs.count())
	assert.Equal(t, types.StatusInProgress, f.jobs.saved[0].Status)
	assertScratchEmpty(t, f.scratch)
}

func TestSubmit_NotReady(t *testing.T) {
	tests := []struct {
		name    string
		verdict readiness.Verdict
		wantMsg string
	}{
		{"empty config", readiness.Verdict{Status: readiness.StatusEmptyConfig, Message: readiness.MsgEmptyConfig}, readiness.MsgEmptyConfig},
		{"not found", readiness.Verdict{Status: readiness.StatusNotFound, Message: readiness.MsgNotFound}, readiness.MsgNotFound},
		{"no message", readiness.Verdict{Status: readiness.StatusOtherError}, "not ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.verdict, fakeCapabilities{"docx": true, "pdf": true})
			job := newPendingJob()

			require.NoError(t, f.conv.Submit(context.Background(), job))

			assert.Equal(t, types.StatusFailed, job.Status)
			assert.Contains(t, job.StatusMessage, tt.wantMsg)
			assert.Equal(t, ErrConfiguration, FailureKind(job.StatusMessage))
			assert.Empty(t, job.RemoteHandle)
			assert.Empty(t, f.transport.postURLs, "no network call when not ready")
			assertInvariants(t, job)
		})
	}
}

func TestSubmit_UnsupportedFormat(t *testing.T) {
	tests := []struct {
		name   string
		caps   fakeCapabilities
		target string
	}{
		{"unsupported target", fakeCapabilities{"docx": true, "pdf": true}, "xyz"},
		{"unsupported source", fakeCapabilities{"pdf": true}, "pdf"},
		{"empty capability set", fakeCapabilities{}, "pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, readiness.Verdict{Status: readiness.StatusOK}, tt.caps)
			job := newPendingJob()
			job.TargetFormat = tt.target

			require.NoError(t, f.conv.Submit(context.Background(), job))

			assert.Equal(t, types.StatusFailed, job.Status)
			assert.Equal(t, ErrUnsupportedFormat, FailureKind(job.StatusMessage))
			assert.Empty(t, job.RemoteHandle)
			assert.Empty(t, f.transport.postURLs, "no POST for unsupported formats")
			assertInvariants(t, job)
		})
	}
}

func TestSubmit_RemoteRejection(t *testing.T) {
	f := readyFixture(t)
	f.transport.postBody = `{"status":422,"name":"UnsupportedConversionError","message":"cannot convert"}`
	job := newPendingJob()

	require.NoError(t, f.conv.Submit(context.Background(), job))

	assert.Equal(t, types.StatusFailed, job.Status)
	assert.Equal(t, ErrRemoteRejection, FailureKind(job.StatusMessage))
	assert.Contains(t, job.StatusMessage, "UnsupportedConversionError")
	assert.Contains(t, job.StatusMessage, "cannot convert")
	assert.Empty(t, job.RemoteHandle)
	assertInvariants(t, job)
}

func TestSubmit_MissingConversionID(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"status 200 triple without id", `{"status":200,"name":"OK","message":"fine"}`},
		{"partial triple", `{"status":500,"message":"no name"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := readyFixture(t)
			f.transport.postBody = tt.body
			job := newPendingJob()

			require.NoError(t, f.conv.Submit(context.Background(), job))

			assert.Equal(t, types.StatusPending, job.Status)
			assert.Empty(t, job.RemoteHandle)
			assert.Equal(t, 0, f.jobs.count(), "no state change to persist")
			assertInvariants(t, job)
		})
	}
}

func TestSubmit_TransportFailure(t *testing.T) {
	f := readyFixture(t)
	f.transport.postErr = &httputil.TransportError{Kind: httputil.ErrNetwork, Err: errors.New("connection reset")}
	job := newPendingJob()

	require.NoError(t, f.conv.Submit(context.Background(), job))

	assert.Equal(t, types.StatusFailed, job.Status)
	assert.Equal(t, ErrTransport, FailureKind(job.StatusMessage))
	assert.Empty(t, job.RemoteHandle)
	assert.Len(t, f.transport.postURLs, 1, "no automatic retry")
}

func TestSubmit_StagingFailure(t *testing.T) {
	f := readyFixture(t)
	f.files.openErr = errors.New("permission denied")
	job := newPendingJob()

	err := f.conv.Submit(context.Background(), job)

	var se *StagingError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, types.StatusPending, job.Status, "job untouched on hard staging error")
	assert.Empty(t, f.transport.postURLs)
}

func TestSubmit_UnwritableScratch(t *testing.T) {
	f := readyFixture(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	f.conv.scratchDir = blocker

	err := f.conv.Submit(context.Background(), newPendingJob())

	var se *StagingError
	assert.ErrorAs(t, err, &se)
}

func TestSubmit_AlreadySubmitted(t *testing.T) {
	f := readyFixture(t)
	job := inProgressJob()
	before := *job

	err := f.conv.Submit(context.Background(), job)

	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, before, *job)
	assert.Empty(t, f.transport.postURLs)
}

// --- Poll ---

func TestPoll_NonTerminalStatuses(t *testing.T) {
	tests := []struct {
		remote     string
		wantStatus types.Status
	}{
		{"processing", types.StatusInProgress},
		{"in queue", types.StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			f := readyFixture(t)
			f.transport.getBody = fmt.Sprintf(`{"status":%q}`, tt.remote)
			job := inProgressJob()

			require.NoError(t, f.conv.Poll(context.Background(), job))

			assert.Equal(t, tt.wantStatus, job.Status)
			assert.Empty(t, job.DestFile)
			assert.Equal(t, 1, f.jobs.count())
			assert.Equal(t, "https://svc.example.com/conversion/973006fa-f133-4403-bbc0-c39da3415727", f.transport.fetchURLs[0])
		})
	}
}

func TestPoll_UnknownStatusFails(t *testing.T) {
	for _, remote := range []string{"error", "failed", "", "CONVERTED"} {
		t.Run(remote, func(t *testing.T) {
			f := readyFixture(t)
			f.transport.getBody = fmt.Sprintf(`{"status":%q}`, remote)
			job := inProgressJob()

			require.NoError(t, f.conv.Poll(context.Background(), job))

			assert.Equal(t, types.StatusFailed, job.Status)
			assert.Equal(t, ErrRemoteRejection, FailureKind(job.StatusMessage))
			assert.Empty(t, job.DestFile)
		})
	}
}

func TestPoll_Converted(t *testing.T) {
	pdf := []byte("%PDF-1.4 converted")
	tests := []struct {
		name string
		body string
	}{
		{"byte array", fmt.Sprintf(`{"status":"converted","resultFile":{"type":"Buffer","data":%s}}`, byteArrayJSON(pdf))},
		{"base64", fmt.Sprintf(`{"status":"converted","resultFile":{"data":%q}}`, "JVBERi0xLjQgY29udmVydGVk")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := readyFixture(t)
			f.transport.getBody = tt.body
			job := inProgressJob()

			require.NoError(t, f.conv.Poll(context.Background(), job))

			assert.Equal(t, types.StatusComplete, job.Status)
			require.NotEmpty(t, job.DestFile)
			assertInvariants(t, job)

			data, err := os.ReadFile(job.DestFile)
			require.NoError(t, err)
			assert.Equal(t, pdf, data)
			assert.Equal(t, ".pdf", filepath.Ext(job.DestFile))
			assertScratchEmpty(t, f.scratch)
		})
	}
}

func TestPoll_ConvertedButEmpty(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"zero bytes", `{"status":"converted","resultFile":{"data":[]}}`, "0 bytes"},
		{"empty base64", `{"status":"converted","resultFile":{"data":""}}`, "0 bytes"},
		{"no result file", `{"status":"converted"}`, "output file was not found"},
		{"no data field", `{"status":"converted","resultFile":{}}`, "output file was not found"},
		{"null data", `{"status":"converted","resultFile":{"data":null}}`, "output file was not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := readyFixture(t)
			f.transport.getBody = tt.body
			job := inProgressJob()

			require.NoError(t, f.conv.Poll(context.Background(), job))

			assert.Equal(t, types.StatusFailed, job.Status)
			assert.Equal(t, ErrArtifactIntegrity, FailureKind(job.StatusMessage))
			assert.Contains(t, job.StatusMessage, tt.wantMsg)
			assert.Empty(t, job.DestFile)
			assertScratchEmpty(t, f.scratch)
			assertInvariants(t, job)
		})
	}
}

func TestPoll_TerminalIsNoOp(t *testing.T) {
	for _, status := range []types.Status{types.StatusComplete, types.StatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			f := readyFixture(t)
			f.transport.getBody = `{"status":"processing"}`
			job := inProgressJob()
			job.Status = status
			if status == types.StatusComplete {
				job.DestFile = "artifacts/job-1/report.pdf"
			}
			before := *job

			require.NoError(t, f.conv.Poll(context.Background(), job))
			require.NoError(t, f.conv.Poll(context.Background(), job))

			assert.Equal(t, before, *job)
			assert.Empty(t, f.transport.fetchURLs)
			assert.Equal(t, 0, f.jobs.count())
		})
	}
}

func TestPoll_NotSubmitted(t *testing.T) {
	f := readyFixture(t)
	job := newPendingJob()

	err := f.conv.Poll(context.Background(), job)

	assert.ErrorIs(t, err, ErrNotSubmitted)
	assert.Equal(t, types.StatusPending, job.Status)
	assert.Empty(t, f.transport.fetchURLs)
}

func TestPoll_TransportFailure(t *testing.T) {
	f := readyFixture(t)
	f.transport.getErr = &httputil.TransportError{Kind: httputil.ErrDecode, Err: errors.New("invalid character")}
	job := inProgressJob()

	require.NoError(t, f.conv.Poll(context.Background(), job))

	assert.Equal(t, types.StatusFailed, job.Status)
	assert.Equal(t, ErrTransport, FailureKind(job.StatusMessage))
	assert.Equal(t, "973006fa-f133-4403-bbc0-c39da3415727", job.RemoteHandle, "handle is immutable")
}

func TestPoll_EscapesHandle(t *testing.T) {
	f := readyFixture(t)
	f.transport.getBody = `{"status":"processing"}`
	job := inProgressJob()
	job.RemoteHandle = "a/b c"

	require.NoError(t, f.conv.Poll(context.Background(), job))
	assert.Equal(t, "https://svc.example.com/conversion/a%2Fb%20c", f.transport.fetchURLs[0])
}

// --- status mapping and decoding ---

func TestMapRemoteStatus(t *testing.T) {
	tests := []struct {
		remote string
		want   types.Status
	}{
		{"converted", types.StatusComplete},
		{"in queue", types.StatusPending},
		{"processing", types.StatusInProgress},
		{"failed", types.StatusFailed},
		{"error", types.StatusFailed},
		{"", types.StatusFailed},
		{"Processing", types.StatusFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapRemoteStatus(tt.remote), "remote %q", tt.remote)
	}
}

func TestByteSequence(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{"array", `[72,105]`, []byte("Hi"), false},
		{"base64", `"SGk="`, []byte("Hi"), false},
		{"null", `null`, nil, false},
		{"out of range", `[256]`, nil, true},
		{"negative", `[-1]`, nil, true},
		{"bad base64", `"%%%"`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b byteSequence
			err := json.Unmarshal([]byte(tt.input), &b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.want, b))
		})
	}
}

func TestFailureKind(t *testing.T) {
	assert.Equal(t, ErrTransport, FailureKind(failureMessage(ErrTransport, "boom")))
	assert.Equal(t, ErrArtifactIntegrity, FailureKind(failureMessage(ErrArtifactIntegrity, "empty")))
	assert.Nil(t, FailureKind("In Progress"))
	assert.Nil(t, FailureKind(""))
}

// --- lifecycle ---

func TestLifecycle_SubmitPollComplete(t *testing.T) {
	f := readyFixture(t)
	f.transport.postBody = `{"conversionId":"remote-1"}`
	job := newPendingJob()
	ctx := context.Background()

	require.NoError(t, f.conv.Submit(ctx, job))
	assertInvariants(t, job)

	for _, body := range []string{
		`{"status":"in queue"}`,
		`{"status":"processing"}`,
		`{"status":"converted","resultFile":{"data":[37,80,68,70]}}`,
	} {
		f.transport.getBody = body
		require.NoError(t, f.conv.Poll(ctx, job))
		assertInvariants(t, job)
		assert.Equal(t, "remote-1", job.RemoteHandle)
	}
	assert.Equal(t, types.StatusComplete, job.Status)

	dest := job.DestFile
	f.transport.getBody = `{"status":"error"}`
	require.NoError(t, f.conv.Poll(ctx, job))
	assert.Equal(t, types.StatusComplete, job.Status, "terminal state is never left")
	assert.Equal(t, dest, job.DestFile)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

// --- resubmission and batch accounting ---

func TestResubmission(t *testing.T) {
	now := time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC)

	failed := inProgressJob()
	failed.Status = types.StatusFailed
	failed.StatusMessage = failureMessage(ErrTransport, "timeout")

	next, err := Resubmission(failed, "job-2", now)
	require.NoError(t, err)
	assert.Equal(t, "job-2", next.ID)
	assert.Equal(t, types.StatusPending, next.Status)
	assert.Equal(t, failed.Source, next.Source)
	assert.Equal(t, failed.TargetFormat, next.TargetFormat)
	assert.Empty(t, next.RemoteHandle)
	assert.Equal(t, types.StatusFailed, failed.Status, "original job untouched")

	_, err = Resubmission(inProgressJob(), "job-3", now)
	assert.ErrorIs(t, err, ErrNotFailed)
}

func TestBatchResult(t *testing.T) {
	var r BatchResult
	for _, s := range []types.Status{types.StatusComplete, types.StatusFailed, types.StatusInProgress, types.StatusPending, types.StatusComplete} {
		r.Add(&types.ConversionJob{Status: s})
	}
	assert.Equal(t, 2, r.Converted)
	assert.Equal(t, 2, r.Pending)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 5, r.Total())
	assert.True(t, r.HasFailures())

	var buf bytes.Buffer
	r.Summary(&buf)
	assert.Contains(t, buf.String(), "2 converted, 2 pending, 1 failed (total: 5)")
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	job := newPendingJob()
	job.Status = types.StatusComplete
	job.DestFile = "artifacts/job-1/report.pdf"
	Report(&buf, job)
	assert.Contains(t, buf.String(), "converted: report.docx -> artifacts/job-1/report.pdf")

	buf.Reset()
	job.Status = types.StatusFailed
	job.StatusMessage = "remote rejection: nope"
	Report(&buf, job)
	assert.Contains(t, buf.String(), "failed:")
	assert.Contains(t, buf.String(), "remote rejection: nope")
}
