package voicevox

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hmori/siriusd/internal/config"
)

const sampleQuery = `{
	"accent_phrases": [{
		"moras": [
			{"text": "コ", "consonant": "k", "consonant_length": 0.05, "vowel": "o", "vowel_length": 0.1, "pitch": 5.4},
			{"text": "ン", "consonant": null, "consonant_length": null, "vowel": "N", "vowel_length": 0.08, "pitch": 5.2}
		],
		"accent": 1,
		"pause_mora": null,
		"is_interrogative": false
	}],
	"speedScale": 1.0,
	"pitchScale": 0.0,
	"intonationScale": 1.0,
	"volumeScale": 1.0,
	"prePhonemeLength": 0.1,
	"postPhonemeLength": 0.1,
	"outputSamplingRate": 24000,
	"outputStereo": false,
	"kana": "コ'ン"
}`

func testClient(endpoint string) *Client {
	return NewClient(config.SynthesisConfig{
		Endpoint:        endpoint,
		StyleID:         54,
		SpeedScale:      1.0,
		PitchScale:      0.0,
		IntonationScale: 0.9,
		TimeoutMS:       5000,
	})
}

func TestAudioQueryAppliesScales(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audio_query", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "こんにちは", r.URL.Query().Get("text"))
		require.Equal(t, "54", r.URL.Query().Get("speaker"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleQuery))
	}))
	defer server.Close()

	query, err := testClient(server.URL).AudioQuery(context.Background(), "こんにちは")
	require.NoError(t, err)

	require.InDelta(t, 1.0, query.SpeedScale, 1e-9)
	require.InDelta(t, 0.9, query.IntonationScale, 1e-9)
	require.Len(t, query.AccentPhrases, 1)

	moras := query.AccentPhrases[0].Moras
	require.Len(t, moras, 2)
	require.NotNil(t, moras[0].Consonant)
	require.Equal(t, "k", *moras[0].Consonant)
	require.InDelta(t, 0.05, *moras[0].ConsonantLength, 1e-9)
	require.Nil(t, moras[1].Consonant)
	require.Equal(t, "N", moras[1].Vowel)
}

func TestAudioQueryRejectsEmptyText(t *testing.T) {
	_, err := testClient("http://127.0.0.1:1").AudioQuery(context.Background(), "  ")
	require.Error(t, err)
}

func TestSynthesizePreservesUnknownQueryFields(t *testing.T) {
	fakeWAV := []byte("RIFFfakewav")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio_query":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(sampleQuery))
		case "/synthesis":
			require.Equal(t, "54", r.URL.Query().Get("speaker"))
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)

			var doc map[string]any
			require.NoError(t, json.Unmarshal(body, &doc))
			require.InDelta(t, 0.9, doc["intonationScale"].(float64), 1e-9)
			require.InDelta(t, 24000, doc["outputSamplingRate"].(float64), 1e-9)
			require.Equal(t, "コ'ン", doc["kana"])

			_, _ = w.Write(fakeWAV)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := testClient(server.URL)
	query, err := client.AudioQuery(context.Background(), "こんにちは")
	require.NoError(t, err)

	wav, err := client.Synthesize(context.Background(), query)
	require.NoError(t, err)
	require.Equal(t, fakeWAV, wav)
}

func TestSynthesizeErrorPropagation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/audio_query" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(sampleQuery))
			return
		}
		http.Error(w, "engine busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := testClient(server.URL)
	query, err := client.AudioQuery(context.Background(), "テスト")
	require.NoError(t, err)

	_, err = client.Synthesize(context.Background(), query)
	require.Error(t, err)
	require.Contains(t, err.Error(), "engine busy")
}

func TestVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/version", r.URL.Path)
		_, _ = w.Write([]byte(`"0.24.1"`))
	}))
	defer server.Close()

	version, err := testClient(server.URL).Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, "0.24.1", version)
}
