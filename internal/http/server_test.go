package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/chartalabs/chartad/internal/corpus"
	"github.com/chartalabs/chartad/internal/gateway"
	"github.com/chartalabs/chartad/internal/prompt"
	"github.com/chartalabs/chartad/internal/similarity"
	"github.com/chartalabs/chartad/internal/stream"
)

type fakeRetriever struct {
	sections []similarity.Scored
	gotQuery string
	gotK     int
}

func (f *fakeRetriever) FindRelevantSections(_ context.Context, query string, k int) []similarity.Scored {
	f.gotQuery = query
	f.gotK = k
	return f.sections
}

type fakeCompleter struct {
	deltas []string
	result gateway.Result
	err    error

	gotMessages []llms.MessageContent
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []llms.MessageContent, onDelta gateway.DeltaFunc) (gateway.Result, error) {
	f.gotMessages = messages
	for _, d := range f.deltas {
		if err := onDelta(ctx, d); err != nil {
			return gateway.Result{}, err
		}
	}
	return f.result, f.err
}

func newTestServer(t *testing.T, retriever Retriever, completer Completer) *Server {
	t.Helper()
	srv, err := NewServer(&Config{TopK: 2}, retriever, prompt.NewBuilder("the test document"), completer, zap.NewNop())
	require.NoError(t, err)
	return srv
}

func postChat(srv *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func scoredSections() []similarity.Scored {
	return []similarity.Scored{
		{Section: corpus.Section{Section: "§51", Content: "Parliament powers"}, Similarity: 0.99},
		{Section: corpus.Section{Section: "§75", Content: "Judicial review"}, Similarity: 0.42},
	}
}

func readFrames(t *testing.T, body io.Reader) []stream.Frame {
	t.Helper()
	d := stream.NewDecoder(body)
	var frames []stream.Frame
	for {
		f, err := d.Next()
		if errors.Is(err, io.EOF) {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &fakeRetriever{}, &fakeCompleter{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeRetriever{}, &fakeCompleter{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleChat(t *testing.T) {
	t.Run("streams the answer with sources header", func(t *testing.T) {
		retriever := &fakeRetriever{sections: scoredSections()}
		completer := &fakeCompleter{
			deltas: []string{"The Parliament ", "shall have power."},
			result: gateway.Result{
				Text:             "The Parliament shall have power.",
				FinishReason:     "stop",
				PromptTokens:     100,
				CompletionTokens: 8,
			},
		}
		srv := newTestServer(t, retriever, completer)

		rec := postChat(srv, `{"messages":[{"role":"user","content":"What can Parliament do?"}]}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "51,75", rec.Header().Get(HeaderRetrievedSections))
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
		assert.Equal(t, "What can Parliament do?", retriever.gotQuery)
		assert.Equal(t, 2, retriever.gotK)

		frames := readFrames(t, rec.Body)
		require.Len(t, frames, 5)
		assert.Equal(t, byte(stream.TagStart), frames[0].Tag)
		assert.NotEmpty(t, frames[0].MessageID)
		assert.Equal(t, "The Parliament ", frames[1].Text)
		assert.Equal(t, "shall have power.", frames[2].Text)
		assert.Equal(t, byte(stream.TagFinishStep), frames[3].Tag)
		assert.Equal(t, byte(stream.TagFinishMessage), frames[4].Tag)
		assert.Equal(t, "stop", frames[4].FinishReason)
		assert.Equal(t, stream.Usage{PromptTokens: 100, CompletionTokens: 8}, frames[4].Usage)
	})

	t.Run("system message carries the retrieved context", func(t *testing.T) {
		completer := &fakeCompleter{result: gateway.Result{FinishReason: "stop"}}
		srv := newTestServer(t, &fakeRetriever{sections: scoredSections()}, completer)

		postChat(srv, `{"messages":[{"role":"user","content":"q"}]}`)

		require.NotEmpty(t, completer.gotMessages)
		system := completer.gotMessages[0]
		assert.Equal(t, llms.ChatMessageTypeSystem, system.Role)
		part, ok := system.Parts[0].(llms.TextContent)
		require.True(t, ok)
		assert.Contains(t, part.Text, "Parliament powers")
	})

	t.Run("invalid body returns 400", func(t *testing.T) {
		srv := newTestServer(t, &fakeRetriever{}, &fakeCompleter{})

		rec := postChat(srv, `{"messages": not-json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid request body")
	})

	t.Run("empty conversation returns 400", func(t *testing.T) {
		srv := newTestServer(t, &fakeRetriever{}, &fakeCompleter{})

		rec := postChat(srv, `{"messages":[]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("conversation not ending with user returns 400", func(t *testing.T) {
		srv := newTestServer(t, &fakeRetriever{}, &fakeCompleter{})

		rec := postChat(srv, `{"messages":[{"role":"user","content":"q"},{"role":"assistant","content":"a"}]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "user")
	})

	t.Run("missing credential returns 500 before streaming", func(t *testing.T) {
		srv := newTestServer(t, &fakeRetriever{}, nil)

		rec := postChat(srv, `{"messages":[{"role":"user","content":"q"}]}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"model credentials are not configured"}`, rec.Body.String())
	})

	t.Run("completion failure becomes a generic error frame", func(t *testing.T) {
		completer := &fakeCompleter{
			deltas: []string{"partial "},
			err:    errors.New("upstream 500: api key rejected for org acme"),
		}
		srv := newTestServer(t, &fakeRetriever{}, completer)

		rec := postChat(srv, `{"messages":[{"role":"user","content":"q"}]}`)
		assert.Equal(t, http.StatusOK, rec.Code)

		body := rec.Body.String()
		assert.NotContains(t, body, "acme", "provider detail must not reach the wire")

		frames := readFrames(t, rec.Body)
		last := frames[len(frames)-1]
		assert.Equal(t, byte(stream.TagError), last.Tag)
		assert.Equal(t, "the model request failed", last.Text)
	})

	t.Run("client abort ends the stream without an error frame", func(t *testing.T) {
		completer := &fakeCompleter{deltas: []string{"partial"}, err: gateway.ErrAborted}
		srv := newTestServer(t, &fakeRetriever{}, completer)

		rec := postChat(srv, `{"messages":[{"role":"user","content":"q"}]}`)

		frames := readFrames(t, rec.Body)
		for _, f := range frames {
			assert.NotEqual(t, byte(stream.TagError), f.Tag)
			assert.NotEqual(t, byte(stream.TagFinishMessage), f.Tag)
		}
	})

	t.Run("no retrieved sections yields empty header and contextless prompt", func(t *testing.T) {
		completer := &fakeCompleter{result: gateway.Result{FinishReason: "stop"}}
		srv := newTestServer(t, &fakeRetriever{}, completer)

		rec := postChat(srv, `{"messages":[{"role":"user","content":"q"}]}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get(HeaderRetrievedSections))

		frames := readFrames(t, rec.Body)
		assert.Equal(t, byte(stream.TagFinishMessage), frames[len(frames)-1].Tag)
	})
}

func TestNewServerValidation(t *testing.T) {
	builder := prompt.NewBuilder("doc")

	_, err := NewServer(&Config{}, nil, builder, &fakeCompleter{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewServer(&Config{}, &fakeRetriever{}, nil, &fakeCompleter{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewServer(&Config{}, &fakeRetriever{}, builder, &fakeCompleter{}, nil)
	assert.Error(t, err)

	// nil completer is allowed: the daemon runs without the credential.
	srv, err := NewServer(&Config{}, &fakeRetriever{}, builder, nil, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, srv)
}
