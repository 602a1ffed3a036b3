package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/font-crawler/internal/crawler"
)

func TestCrawlCommandStatic(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><p style="font-family: 'Fira Code', monospace">x</p></body></html>`)
	}))
	defer site.Close()

	t.Setenv("FONTCRAWLER_LOGGING_LEVEL", "error")
	t.Setenv("FONTCRAWLER_PROGRESS_ENABLED", "false")

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"crawl", site.URL, "--fetcher", "static"})
	require.NoError(t, cmd.Execute())

	var body map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	require.Equal(t, true, body["ok"])
	require.Equal(t, []any{"fira code", "monospace"}, body["fontFamilies"])
}

func TestCrawlCommandReportsFailure(t *testing.T) {
	t.Setenv("FONTCRAWLER_LOGGING_LEVEL", "error")
	t.Setenv("FONTCRAWLER_PROGRESS_ENABLED", "false")

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"crawl", "https://example.com", "--fetcher", "disabled"})
	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), `"ok": false`)
	require.Contains(t, out.String(), "browser unavailable")
}

func TestCrawlCommandValidatesArgs(t *testing.T) {
	t.Setenv("FONTCRAWLER_LOGGING_LEVEL", "error")

	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"crawl"})
	require.ErrorContains(t, cmd.Execute(), "a url is required")

	cmd = NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"crawl", "https://example.com", "--strategy", "zigzag"})
	require.ErrorContains(t, cmd.Execute(), "unknown crawl strategy")

	cmd = NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"crawl", "https://example.com", "--fetcher", "lynx"})
	require.ErrorContains(t, cmd.Execute(), "crawler.fetcher")
}

type failingCloser struct{ err error }

func (c failingCloser) Close(context.Context) error { return c.err }

func TestCloseAppLogsShutdownErrors(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.ErrorLevel)
	closeApp(context.Background(), failingCloser{err: errors.New("close progress hub: deadline exceeded")}, zap.New(core))

	entries := logs.FilterMessage("app shutdown failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, "close progress hub: deadline exceeded", entries[0].ContextMap()["error"])

	closeApp(context.Background(), failingCloser{}, zap.New(core))
	require.Equal(t, 1, logs.Len())
}

func TestWriteResultMatchesAPIShape(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, writeResult(&out, crawler.CrawlRecord{}, nil))
	require.JSONEq(t, `{"ok":true,"fontFamilies":[]}`, out.String())

	out.Reset()
	require.NoError(t, writeResult(&out, crawler.CrawlRecord{Fonts: []string{"x"}}, errors.New("seed crawl: discovery failed")))
	require.JSONEq(t, `{"ok":false,"reason":"seed crawl: discovery failed"}`, out.String())
}
